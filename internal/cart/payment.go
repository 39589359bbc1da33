package cart

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type PaymentState string

const (
	PaymentPending   PaymentState = "PENDING"
	PaymentPaid      PaymentState = "PAID"
	PaymentFailed    PaymentState = "FAILED"
	PaymentRefund    PaymentState = "REFUND"
	PaymentCancelled PaymentState = "CANCELLED"
)

// Payment is a single payment attempt or result against a cart. Amount is
// signed, a refund is recorded as a fresh payment with a negative amount
// and state REFUND rather than mutating the original PAID row.
// TransactionID is stored exactly as the gateway sent it; it is the
// idempotency key notification processing deduplicates on.
type Payment struct {
	ID            uuid.UUID       `json:"id"`
	CartID        uuid.UUID       `json:"cart_id"`
	Amount        decimal.Decimal `json:"amount"`
	State         PaymentState    `json:"state"`
	Gateway       string          `json:"gateway"`
	TransactionID string          `json:"transaction_id"`
	Notes         []string        `json:"notes,omitempty"`
	CreatedAt     time.Time       `json:"created_at"`
	UpdatedAt     time.Time       `json:"updated_at"`
}

// SetState transitions the payment and hands back the change event for the
// caller to publish after a successful save, or nil when nothing changed.
func (p *Payment) SetState(newState PaymentState) *PaymentStateChanged {
	if p.State == newState {
		return nil
	}
	oldState := p.State
	p.State = newState
	p.UpdatedAt = now()
	return &PaymentStateChanged{
		PaymentID: p.ID,
		CartID:    p.CartID,
		OldState:  oldState,
		NewState:  newState,
	}
}

// AddPayment records a payment attempt against the cart.
func (c *Cart) AddPayment(amount decimal.Decimal, transactionID string, state PaymentState) *Payment {
	createdAt := now()
	payment := &Payment{
		ID:            uuid.New(),
		CartID:        c.ID,
		Amount:        amount,
		State:         state,
		Gateway:       c.Gateway,
		TransactionID: transactionID,
		CreatedAt:     createdAt,
		UpdatedAt:     createdAt,
	}
	c.Payments = append(c.Payments, payment)
	return payment
}

// PaymentsByTransactionID returns all payments recorded under the gateway's
// transaction id.
func (c *Cart) PaymentsByTransactionID(transactionID string) []*Payment {
	matches := []*Payment{}
	for _, p := range c.Payments {
		if p.TransactionID == transactionID {
			matches = append(matches, p)
		}
	}
	return matches
}

// TotalPaid sums all PAID payments. Subscriptions involve multiple
// payments, so the sum may exceed the cart total.
func (c *Cart) TotalPaid() decimal.Decimal {
	total := decimal.Zero
	for _, p := range c.Payments {
		if p.State == PaymentPaid {
			total = total.Add(p.Amount)
		}
	}
	return total
}

// TotalRefunded sums all REFUND payments as a positive magnitude.
func (c *Cart) TotalRefunded() decimal.Decimal {
	total := decimal.Zero
	for _, p := range c.Payments {
		if p.State == PaymentRefund {
			total = total.Add(p.Amount)
		}
	}
	return total.Abs()
}

// lastPaidDate is the creation time of the most recent PAID payment with a
// positive amount.
func (c *Cart) lastPaidDate() (time.Time, bool) {
	var latest time.Time
	found := false
	for _, p := range c.Payments {
		if p.State != PaymentPaid || !p.Amount.IsPositive() {
			continue
		}
		if !found || p.CreatedAt.After(latest) {
			latest = p.CreatedAt
			found = true
		}
	}
	return latest, found
}
