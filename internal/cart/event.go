package cart

import (
	"time"

	"github.com/google/uuid"
)

// StateChanged reports a cart state transition. The state machine returns
// it from a successful transition; callers forward it to subscribers (in
// process observers, redis channels) after the cart is saved, at most once
// per save where the state actually changed.
type StateChanged struct {
	CartID     uuid.UUID `json:"cart_id"`
	OldState   State     `json:"old_state"`
	NewState   State     `json:"new_state"`
	OccurredAt time.Time `json:"occurred_at"`
}

// PaymentStateChanged reports a payment state transition, consumed by
// fulfillment subscribers.
type PaymentStateChanged struct {
	PaymentID uuid.UUID    `json:"payment_id"`
	CartID    uuid.UUID    `json:"cart_id"`
	OldState  PaymentState `json:"old_state"`
	NewState  PaymentState `json:"new_state"`
}
