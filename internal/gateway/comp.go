package gateway

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/Alturino/hiicart/internal/cart"
)

const CompName = "comp"

// Comp is the complimentary gateway: it charges nothing and accepts
// everything, used to comp purchases and to exercise the notification
// pipeline without a network. Its notifications are produced by this
// process, so signature verification always passes.
type Comp struct {
	allowRecurring bool
}

func NewComp(settings map[string]string) (Adapter, error) {
	return &Comp{allowRecurring: settings["allow_recurring"] == "true"}, nil
}

func (g *Comp) Name() string { return CompName }

func (g *Comp) Submit(c context.Context, crt *cart.Cart) (SubmitResult, error) {
	return SubmitResult{Kind: SubmitDirect}, nil
}

func (g *Comp) VerifySignature(c context.Context, raw []byte) (bool, error) {
	return true, nil
}

func (g *Comp) ParseNotification(c context.Context, raw []byte) (Event, error) {
	payload := struct {
		Event
		Invoice string `json:"invoice"`
	}{}
	if err := json.Unmarshal(raw, &payload); err != nil {
		return Event{}, fmt.Errorf("failed parsing comp notification with error=%w", err)
	}
	event := payload.Event
	if event.CartID == uuid.Nil && payload.Invoice != "" {
		cartId, err := CartIDFromInvoice(payload.Invoice)
		if err != nil {
			return Event{}, fmt.Errorf("failed parsing comp invoice with error=%w", err)
		}
		event.CartID = cartId
	}
	return event, nil
}

func (g *Comp) Charge(c context.Context, token string, amount decimal.Decimal) (Result, error) {
	return Result{
		Success:       true,
		TransactionID: newCompTransactionID(),
		Status:        "settled",
	}, nil
}

func (g *Comp) Refund(c context.Context, payment *cart.Payment, amount decimal.Decimal) (Result, error) {
	return Result{
		Success:       true,
		TransactionID: payment.TransactionID,
		Status:        "refunded",
	}, nil
}

func (g *Comp) CancelSubscription(c context.Context, token string) (Result, error) {
	return Result{Success: true, TransactionID: token, Status: "canceled"}, nil
}

// AllowRecurring reports whether comped subscriptions are enabled; when
// false a comped recurring cart is left inactive and drops to PENDCANCEL
// or CANCELLED through state derivation.
func (g *Comp) AllowRecurring() bool { return g.allowRecurring }

func newCompTransactionID() string {
	return "comp-" + uuid.NewString()
}

// CompPaymentEvent synthesizes the payment-completed notification a comped
// submission produces for the cart's full total.
func CompPaymentEvent(crt *cart.Cart) Event {
	return Event{
		Kind:          EventPaymentCompleted,
		CartID:        crt.ID,
		TransactionID: newCompTransactionID(),
		Amount:        crt.Total,
	}
}

// CompActivationEvent synthesizes the subscription-activated notification
// for a comped recurring item.
func CompActivationEvent(crt *cart.Cart, li *cart.RecurringLineItem) Event {
	return Event{
		Kind:          EventSubscriptionActivated,
		CartID:        crt.ID,
		TransactionID: newCompTransactionID(),
		SKU:           li.SKU,
	}
}
