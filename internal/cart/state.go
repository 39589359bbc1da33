package cart

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/Alturino/hiicart/internal/errors"
	"github.com/Alturino/hiicart/internal/log"
)

type State string

const (
	// StateOpen: the cart has been created but not yet submitted to the
	// gateway.
	StateOpen State = "OPEN"
	// StateSubmitted: the user has been sent to the gateway, but the
	// gateway has not yet notified us that they completed their part of
	// the payment process.
	StateSubmitted State = "SUBMITTED"
	// StatePending: the gateway reported a transaction was started and the
	// final payment is pending (echecks, credit delays, etc).
	StatePending State = "PENDING"
	// StateAbandoned: the cart was never submitted and has been given up on.
	StateAbandoned State = "ABANDONED"
	// StateCompleted: payment has been made and the gateway notified us.
	StateCompleted State = "COMPLETED"
	// StateRecurring: active subscription.
	StateRecurring State = "RECURRING"
	// StatePendCancel: subscription cancelled at the gateway but not
	// expired yet.
	StatePendCancel State = "PENDCANCEL"
	StateRefund     State = "REFUND"
	StatePartRefund State = "PARTREFUND"
	StateCancelled  State = "CANCELLED"
)

// validTransitions lists the only new states allowed from each current
// state. ABANDONED and CANCELLED are terminal.
var validTransitions = map[State][]State{
	// PENDING is reachable from OPEN because the submission step appears
	// to be skippable with some gateways; generally we only expect to get
	// to PENDING from SUBMITTED.
	StateOpen:       {StateSubmitted, StateAbandoned, StateCompleted, StateRecurring, StatePending, StatePendCancel, StateCancelled},
	StateSubmitted:  {StateCompleted, StatePending, StateRecurring, StatePendCancel, StateCancelled},
	StatePending:    {StateCompleted, StatePending, StateRecurring, StatePendCancel, StateCancelled},
	StateAbandoned:  {},
	StateCompleted:  {StateRecurring, StatePendCancel, StateCancelled, StateRefund, StatePartRefund},
	StatePartRefund: {StateRefund, StateCancelled},
	StateRefund:     {StateCancelled},
	StateRecurring:  {StatePendCancel, StateCancelled},
	StatePendCancel: {StateCancelled},
	StateCancelled:  {},
}

// IsValidTransition reports whether old -> new is in the transition table.
// This prevents cases like a cart going from CANCELLED to PENDCANCEL when a
// user cancels a subscription already marked cancelled by an admin.
func IsValidTransition(old, new State) bool {
	for _, s := range validTransitions[old] {
		if s == new {
			return true
		}
	}
	return false
}

// SetState transitions the cart, recalculating totals, and returns the
// change event for the caller to publish after a successful save. An
// invalid transition is rejected without mutating the cart.
func (c *Cart) SetState(newState State) (*StateChanged, error) {
	if newState == c.State {
		return nil, nil
	}
	if !IsValidTransition(c.State, newState) {
		return nil, fmt.Errorf(
			"%w: %s -> %s", errors.ErrInvalidTransition, c.State, newState,
		)
	}
	return c.applyState(newState), nil
}

// ForceState bypasses transition validation for controlled administrative
// corrections. The bypass is always logged.
func (c *Cart) ForceState(cx context.Context, newState State) *StateChanged {
	if newState == c.State {
		return nil
	}
	logger := zerolog.Ctx(cx).
		With().
		Str(log.KeyTag, "Cart ForceState").
		Str(log.KeyCartID, c.ID.String()).
		Str(log.KeyOldState, string(c.State)).
		Str(log.KeyNewState, string(newState)).
		Logger()
	logger.Warn().Msg("bypassing state transition validation")
	return c.applyState(newState)
}

func (c *Cart) applyState(newState State) *StateChanged {
	oldState := c.State
	c.State = newState
	c.Recalc()
	return &StateChanged{
		CartID:     c.ID,
		OldState:   oldState,
		NewState:   newState,
		OccurredAt: now(),
	}
}

// UpdateState derives the should-be cart state from payments and recurring
// line item expirations and applies it when it differs and the transition
// is valid. An invalid derived transition is skipped silently. Calling it
// twice with unchanged underlying data yields no further transition.
//
// The precedence below is deliberate: refunds override completion, an
// all-PENDING ledger overrides both, and an active subscription overrides
// everything. An all-PENDING ledger cannot coexist with a refund, so the
// ordering between those two rules is never exercised.
func (c *Cart) UpdateState() *StateChanged {
	var newState State
	totalPaid := c.TotalPaid()
	totalRefund := c.TotalRefunded()
	// Subscriptions involve multiple payments, therefore diff may be < 0.
	if c.Total.Sub(totalPaid).LessThanOrEqual(decimal.Zero) {
		newState = StateCompleted
	}
	// If refunds exist determine if they represent a partial or full.
	if totalRefund.IsPositive() && totalRefund.LessThan(totalPaid) {
		newState = StatePartRefund
	} else if totalRefund.IsPositive() {
		newState = StateRefund
	}
	if len(c.Payments) > 0 && c.allPaymentsPending() {
		newState = StatePending
	}
	// Account for recurring state changes.
	if c.ActiveRecurringItem() != nil {
		newState = StateRecurring
	} else if len(c.RecurringItems) > 0 {
		switch {
		// Paid and then cancelled, but not expired.
		case refundableState(newState) && !c.allRecurringExpired():
			newState = StatePendCancel
		// Could be cancelled manually, a re-subscription since cancelled,
		// or expired.
		case refundableState(newState) || c.State == StateRecurring:
			newState = StateCancelled
		}
	}
	if newState == "" || newState == c.State || !IsValidTransition(c.State, newState) {
		return nil
	}
	return c.applyState(newState)
}

func refundableState(s State) bool {
	return s == StateCompleted || s == StatePartRefund || s == StateRefund
}

func (c *Cart) allPaymentsPending() bool {
	for _, p := range c.Payments {
		if p.State != PaymentPending {
			return false
		}
	}
	return true
}
