package cart

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"

	"github.com/Alturino/hiicart/internal/errors"
)

func TestIsValidTransition(t *testing.T) {
	tests := []struct {
		name     string
		from     State
		to       State
		expected bool
	}{
		{name: "open to submitted", from: StateOpen, to: StateSubmitted, expected: true},
		{name: "open to abandoned", from: StateOpen, to: StateAbandoned, expected: true},
		{name: "open to completed", from: StateOpen, to: StateCompleted, expected: true},
		{name: "open to pending skips submission", from: StateOpen, to: StatePending, expected: true},
		{name: "open to refund", from: StateOpen, to: StateRefund, expected: false},
		{name: "submitted to completed", from: StateSubmitted, to: StateCompleted, expected: true},
		{name: "submitted to abandoned", from: StateSubmitted, to: StateAbandoned, expected: false},
		{name: "pending to completed", from: StatePending, to: StateCompleted, expected: true},
		{name: "pending to pending", from: StatePending, to: StatePending, expected: true},
		{name: "completed to recurring", from: StateCompleted, to: StateRecurring, expected: true},
		{name: "completed to refund", from: StateCompleted, to: StateRefund, expected: true},
		{name: "completed to partrefund", from: StateCompleted, to: StatePartRefund, expected: true},
		{name: "completed to open", from: StateCompleted, to: StateOpen, expected: false},
		{name: "partrefund to refund", from: StatePartRefund, to: StateRefund, expected: true},
		{name: "partrefund to completed", from: StatePartRefund, to: StateCompleted, expected: false},
		{name: "refund to cancelled", from: StateRefund, to: StateCancelled, expected: true},
		{name: "refund to partrefund", from: StateRefund, to: StatePartRefund, expected: false},
		{name: "recurring to pendcancel", from: StateRecurring, to: StatePendCancel, expected: true},
		{name: "recurring to cancelled", from: StateRecurring, to: StateCancelled, expected: true},
		{name: "recurring to completed", from: StateRecurring, to: StateCompleted, expected: false},
		{name: "pendcancel to cancelled", from: StatePendCancel, to: StateCancelled, expected: true},
		{name: "pendcancel to recurring", from: StatePendCancel, to: StateRecurring, expected: false},
		{name: "abandoned is terminal", from: StateAbandoned, to: StateOpen, expected: false},
		{name: "cancelled is terminal", from: StateCancelled, to: StatePendCancel, expected: false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, IsValidTransition(tt.from, tt.to))
		})
	}
}

func TestSetState(t *testing.T) {
	t.Run("valid transition mutates and returns one event", func(t *testing.T) {
		crt := New()
		event, err := crt.SetState(StateSubmitted)
		assert.NoError(t, err)
		assert.NotNil(t, event)
		assert.Equal(t, StateOpen, event.OldState)
		assert.Equal(t, StateSubmitted, event.NewState)
		assert.Equal(t, crt.ID, event.CartID)
		assert.Equal(t, StateSubmitted, crt.State)
	})
	t.Run("same state is a no-op without event", func(t *testing.T) {
		crt := New()
		event, err := crt.SetState(StateOpen)
		assert.NoError(t, err)
		assert.Nil(t, event)
		assert.Equal(t, StateOpen, crt.State)
	})
	t.Run("invalid transition rejected without mutation", func(t *testing.T) {
		crt := New()
		event, err := crt.SetState(StateRefund)
		assert.ErrorIs(t, err, errors.ErrInvalidTransition)
		assert.Nil(t, event)
		assert.Equal(t, StateOpen, crt.State)
	})
}

func TestForceState(t *testing.T) {
	crt := New()
	assert.False(t, IsValidTransition(StateOpen, StateRefund))

	event := crt.ForceState(context.Background(), StateRefund)
	assert.NotNil(t, event)
	assert.Equal(t, StateRefund, crt.State)
	assert.Equal(t, StateOpen, event.OldState)

	assert.Nil(t, crt.ForceState(context.Background(), StateRefund))
}

func cartWithTotal(t *testing.T, total int64) *Cart {
	t.Helper()
	crt := New()
	crt.LineItems = append(crt.LineItems, &LineItem{
		CartID:    crt.ID,
		SKU:       "SKU-1",
		Name:      "widget",
		Quantity:  1,
		UnitPrice: decimal.NewFromInt(total),
	})
	crt.Recalc()
	return crt
}

func TestUpdateState(t *testing.T) {
	t.Run("full payment completes the cart", func(t *testing.T) {
		crt := cartWithTotal(t, 100)
		crt.State = StateSubmitted
		crt.AddPayment(decimal.NewFromInt(100), "tx-1", PaymentPaid)

		event := crt.UpdateState()
		assert.NotNil(t, event)
		assert.Equal(t, StateCompleted, crt.State)
	})
	t.Run("overpayment still completes", func(t *testing.T) {
		crt := cartWithTotal(t, 100)
		crt.State = StateSubmitted
		crt.AddPayment(decimal.NewFromInt(150), "tx-1", PaymentPaid)

		crt.UpdateState()
		assert.Equal(t, StateCompleted, crt.State)
	})
	t.Run("partial payment does not complete", func(t *testing.T) {
		crt := cartWithTotal(t, 100)
		crt.State = StateSubmitted
		crt.AddPayment(decimal.NewFromInt(40), "tx-1", PaymentPaid)

		event := crt.UpdateState()
		assert.Nil(t, event)
		assert.Equal(t, StateSubmitted, crt.State)
	})
	t.Run("partial refund", func(t *testing.T) {
		crt := cartWithTotal(t, 100)
		crt.State = StateCompleted
		crt.AddPayment(decimal.NewFromInt(100), "tx-1", PaymentPaid)
		crt.AddPayment(decimal.NewFromInt(-40), "tx-2", PaymentRefund)

		crt.UpdateState()
		assert.Equal(t, StatePartRefund, crt.State)
	})
	t.Run("full refund", func(t *testing.T) {
		crt := cartWithTotal(t, 100)
		crt.State = StateCompleted
		crt.AddPayment(decimal.NewFromInt(100), "tx-1", PaymentPaid)
		crt.AddPayment(decimal.NewFromInt(-100), "tx-2", PaymentRefund)

		crt.UpdateState()
		assert.Equal(t, StateRefund, crt.State)
	})
	t.Run("all payments pending", func(t *testing.T) {
		crt := cartWithTotal(t, 100)
		crt.State = StateSubmitted
		crt.AddPayment(decimal.NewFromInt(100), "tx-1", PaymentPending)

		crt.UpdateState()
		assert.Equal(t, StatePending, crt.State)
	})
	t.Run("active subscription overrides completion", func(t *testing.T) {
		crt := cartWithTotal(t, 100)
		crt.State = StateSubmitted
		crt.RecurringItems = append(crt.RecurringItems, &RecurringLineItem{
			CartID:         crt.ID,
			SKU:            "SUB-1",
			Quantity:       1,
			Duration:       1,
			DurationUnit:   UnitMonth,
			IsActive:       true,
			RecurringPrice: decimal.NewFromInt(10),
		})
		crt.AddPayment(decimal.NewFromInt(110), "tx-1", PaymentPaid)

		crt.UpdateState()
		assert.Equal(t, StateRecurring, crt.State)
	})
	t.Run("inactive unexpired subscription goes to pendcancel", func(t *testing.T) {
		grace := 48 * time.Hour
		crt := cartWithTotal(t, 100)
		crt.State = StateRecurring
		crt.GracePeriod = &grace
		crt.RecurringItems = append(crt.RecurringItems, &RecurringLineItem{
			CartID:         crt.ID,
			SKU:            "SUB-1",
			Quantity:       1,
			Duration:       1,
			DurationUnit:   UnitMonth,
			IsActive:       false,
			RecurringPrice: decimal.NewFromInt(100),
		})
		crt.Recalc()
		crt.AddPayment(crt.Total, "tx-1", PaymentPaid)

		crt.UpdateState()
		assert.Equal(t, StatePendCancel, crt.State)
	})
	t.Run("inactive subscription cancelled from recurring when expiry unknown", func(t *testing.T) {
		crt := cartWithTotal(t, 0)
		crt.State = StateRecurring
		crt.RecurringItems = append(crt.RecurringItems, &RecurringLineItem{
			CartID:         crt.ID,
			SKU:            "SUB-1",
			Quantity:       1,
			Duration:       1,
			DurationUnit:   UnitMonth,
			IsActive:       false,
			RecurringPrice: decimal.NewFromInt(100),
		})

		crt.UpdateState()
		assert.Equal(t, StateCancelled, crt.State)
	})
	t.Run("idempotent on unchanged data", func(t *testing.T) {
		crt := cartWithTotal(t, 100)
		crt.State = StateSubmitted
		crt.AddPayment(decimal.NewFromInt(100), "tx-1", PaymentPaid)

		first := crt.UpdateState()
		second := crt.UpdateState()
		assert.NotNil(t, first)
		assert.Nil(t, second)
		assert.Equal(t, StateCompleted, crt.State)
	})
	t.Run("empty cart derives completed", func(t *testing.T) {
		crt := New()
		event := crt.UpdateState()
		assert.NotNil(t, event)
		assert.Equal(t, StateCompleted, crt.State)
	})
	t.Run("invalid derived transition skipped silently", func(t *testing.T) {
		crt := cartWithTotal(t, 100)
		crt.State = StateAbandoned
		crt.AddPayment(decimal.NewFromInt(100), "tx-1", PaymentPaid)

		event := crt.UpdateState()
		assert.Nil(t, event)
		assert.Equal(t, StateAbandoned, crt.State)
	})
}
