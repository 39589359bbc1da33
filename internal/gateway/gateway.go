package gateway

import (
	"context"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/Alturino/hiicart/internal/cart"
)

// EventKind classifies a canonical notification event after the
// gateway-specific payload has been verified and parsed.
type EventKind string

const (
	EventPaymentCompleted      EventKind = "payment-completed"
	EventPaymentPending        EventKind = "payment-pending"
	EventPaymentFailed         EventKind = "payment-failed"
	EventPaymentRefunded       EventKind = "payment-refunded"
	EventSubscriptionActivated EventKind = "subscription-activated"
	EventSubscriptionCancelled EventKind = "subscription-cancelled"
)

// Event is the canonical form of a gateway notification. Core code never
// depends on gateway-specific field names past this boundary.
type Event struct {
	Kind          EventKind `json:"kind"`
	CartID        uuid.UUID `json:"cart_id"`
	TransactionID string    `json:"transaction_id"`
	// Token identifies the subscription at the gateway for later charge and
	// cancel calls. Only subscription events carry one.
	Token    string           `json:"token,omitempty"`
	Amount   decimal.Decimal  `json:"amount"`
	SKU      string           `json:"sku"`
	Customer cart.ContactInfo `json:"customer"`
	Note     string           `json:"note"`
	// ResponseCode and ResponseText carry the gateway's confirmation round
	// verbatim; they overwrite the cart's scratch record when present.
	ResponseCode int    `json:"response_code,omitempty"`
	ResponseText string `json:"response_text,omitempty"`
}

type SubmitKind string

const (
	// SubmitRedirect: send the buyer to the returned URL to pay.
	SubmitRedirect SubmitKind = "redirect"
	// SubmitDirect: the gateway charges in-place, no redirect needed.
	SubmitDirect SubmitKind = "direct"
)

type SubmitResult struct {
	Kind SubmitKind `json:"kind"`
	URL  string     `json:"url,omitempty"`
}

// Result is the outcome of an outbound gateway call (charge, refund,
// subscription cancel).
type Result struct {
	Success       bool   `json:"success"`
	TransactionID string `json:"transaction_id,omitempty"`
	Status        string `json:"status,omitempty"`
	Message       string `json:"message,omitempty"`
}

// CartIDFromInvoice resolves a cart id from the invoice string a gateway
// echoes back. Resubmissions append a retry suffix past the uuid, so only
// the first 36 characters are parsed.
func CartIDFromInvoice(invoice string) (uuid.UUID, error) {
	if len(invoice) > 36 {
		invoice = invoice[:36]
	}
	return uuid.Parse(invoice)
}

// Adapter is the capability the core requires from each payment gateway.
// Implementations own wire formats, signature schemes and SDK calls; they
// must apply their own timeout and retry policy to outbound calls.
type Adapter interface {
	Name() string
	Submit(c context.Context, crt *cart.Cart) (SubmitResult, error)
	VerifySignature(c context.Context, raw []byte) (bool, error)
	ParseNotification(c context.Context, raw []byte) (Event, error)
	Charge(c context.Context, token string, amount decimal.Decimal) (Result, error)
	Refund(c context.Context, payment *cart.Payment, amount decimal.Decimal) (Result, error)
	CancelSubscription(c context.Context, token string) (Result, error)
}
