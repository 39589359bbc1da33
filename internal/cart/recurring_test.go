package cart

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func fixedClock(t *testing.T, at time.Time) {
	t.Helper()
	now = func() time.Time { return at }
	t.Cleanup(func() { now = time.Now })
}

func subscriptionCart(t *testing.T, duration int, unit DurationUnit) (*Cart, *RecurringLineItem) {
	t.Helper()
	crt := New()
	li := &RecurringLineItem{
		CartID:         crt.ID,
		SKU:            "SUB-1",
		Name:           "subscription",
		Quantity:       1,
		Duration:       duration,
		DurationUnit:   unit,
		IsActive:       true,
		RecurringPrice: decimal.NewFromInt(10),
	}
	crt.RecurringItems = append(crt.RecurringItems, li)
	crt.Recalc()
	return crt, li
}

func TestAddDuration(t *testing.T) {
	tests := []struct {
		name     string
		start    time.Time
		duration int
		unit     DurationUnit
		expected time.Time
	}{
		{
			name:     "days",
			start:    time.Date(2024, 3, 10, 12, 0, 0, 0, time.UTC),
			duration: 7,
			unit:     UnitDay,
			expected: time.Date(2024, 3, 17, 12, 0, 0, 0, time.UTC),
		},
		{
			name:     "plain month",
			start:    time.Date(2024, 3, 10, 12, 0, 0, 0, time.UTC),
			duration: 1,
			unit:     UnitMonth,
			expected: time.Date(2024, 4, 10, 12, 0, 0, 0, time.UTC),
		},
		{
			name:     "month end clamps to february",
			start:    time.Date(2023, 1, 31, 0, 0, 0, 0, time.UTC),
			duration: 1,
			unit:     UnitMonth,
			expected: time.Date(2023, 2, 28, 0, 0, 0, 0, time.UTC),
		},
		{
			name:     "month end clamps to leap february",
			start:    time.Date(2024, 1, 31, 0, 0, 0, 0, time.UTC),
			duration: 1,
			unit:     UnitMonth,
			expected: time.Date(2024, 2, 29, 0, 0, 0, 0, time.UTC),
		},
		{
			name:     "months across year boundary",
			start:    time.Date(2024, 11, 15, 0, 0, 0, 0, time.UTC),
			duration: 3,
			unit:     UnitMonth,
			expected: time.Date(2025, 2, 15, 0, 0, 0, 0, time.UTC),
		},
		{
			name:     "negative month",
			start:    time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC),
			duration: -1,
			unit:     UnitMonth,
			expected: time.Date(2023, 12, 15, 0, 0, 0, 0, time.UTC),
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, addDuration(tt.start, tt.duration, tt.unit))
		})
	}
}

func TestExpirationOf(t *testing.T) {
	t.Run("from last paid payment", func(t *testing.T) {
		at := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)
		fixedClock(t, at)

		crt, li := subscriptionCart(t, 1, UnitMonth)
		crt.AddPayment(decimal.NewFromInt(10), "tx-1", PaymentPaid)

		assert.Equal(t, time.Date(2024, 7, 1, 0, 0, 0, 0, time.UTC), crt.ExpirationOf(li))
	})
	t.Run("latest paid payment wins", func(t *testing.T) {
		first := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)
		second := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)

		fixedClock(t, first)
		crt, li := subscriptionCart(t, 1, UnitMonth)
		crt.AddPayment(decimal.NewFromInt(10), "tx-1", PaymentPaid)

		now = func() time.Time { return second }
		crt.AddPayment(decimal.NewFromInt(10), "tx-2", PaymentPaid)

		assert.Equal(t, time.Date(2024, 7, 1, 0, 0, 0, 0, time.UTC), crt.ExpirationOf(li))
	})
	t.Run("refunds and pendings do not count as paid", func(t *testing.T) {
		at := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)
		fixedClock(t, at)

		crt, li := subscriptionCart(t, 1, UnitMonth)
		li.RecurringStart = time.Date(2024, 6, 15, 0, 0, 0, 0, time.UTC)
		crt.AddPayment(decimal.NewFromInt(10), "tx-1", PaymentPending)
		crt.AddPayment(decimal.NewFromInt(-10), "tx-2", PaymentRefund)

		assert.Equal(t, li.RecurringStart, crt.ExpirationOf(li))
	})
	t.Run("no payment falls back to recurring start", func(t *testing.T) {
		at := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)
		fixedClock(t, at)

		crt, li := subscriptionCart(t, 1, UnitMonth)
		li.RecurringStart = time.Date(2024, 6, 15, 0, 0, 0, 0, time.UTC)

		// recurring_start - duration is treated as the last payment, so the
		// expiration lands on recurring_start itself.
		assert.Equal(t, li.RecurringStart, crt.ExpirationOf(li))
	})
	t.Run("no payment and no start falls back to creation", func(t *testing.T) {
		at := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)
		fixedClock(t, at)

		crt, li := subscriptionCart(t, 1, UnitMonth)

		assert.Equal(t, time.Date(2024, 7, 1, 0, 0, 0, 0, time.UTC), crt.ExpirationOf(li))
	})
}

func TestIsItemExpired(t *testing.T) {
	paidAt := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)

	build := func(t *testing.T) (*Cart, *RecurringLineItem) {
		fixedClock(t, paidAt)
		crt, li := subscriptionCart(t, 1, UnitMonth)
		crt.AddPayment(decimal.NewFromInt(10), "tx-1", PaymentPaid)
		return crt, li
	}

	t.Run("zero explicit grace means expired right at expiration", func(t *testing.T) {
		crt, li := build(t)
		now = func() time.Time { return time.Date(2024, 6, 2, 0, 0, 0, 0, time.UTC) }
		grace := time.Duration(0)
		assert.True(t, crt.IsItemExpired(li, &grace))
	})
	t.Run("explicit grace keeps it alive", func(t *testing.T) {
		crt, li := build(t)
		now = func() time.Time { return time.Date(2024, 6, 2, 0, 0, 0, 0, time.UTC) }
		grace := 48 * time.Hour
		assert.False(t, crt.IsItemExpired(li, &grace))
	})
	t.Run("explicit grace wins over cart default", func(t *testing.T) {
		crt, li := build(t)
		cartGrace := time.Duration(0)
		crt.GracePeriod = &cartGrace
		now = func() time.Time { return time.Date(2024, 6, 2, 0, 0, 0, 0, time.UTC) }
		grace := 48 * time.Hour
		assert.False(t, crt.IsItemExpired(li, &grace))
	})
	t.Run("cart default applies without explicit grace", func(t *testing.T) {
		crt, li := build(t)
		cartGrace := time.Duration(0)
		crt.GracePeriod = &cartGrace
		now = func() time.Time { return time.Date(2024, 6, 2, 0, 0, 0, 0, time.UTC) }
		assert.True(t, crt.IsItemExpired(li, nil))
	})
	t.Run("no grace anywhere never expires", func(t *testing.T) {
		crt, li := build(t)
		now = func() time.Time { return time.Date(2030, 1, 1, 0, 0, 0, 0, time.UTC) }
		assert.False(t, crt.IsItemExpired(li, nil))
	})
	t.Run("before expiration is not expired", func(t *testing.T) {
		crt, li := build(t)
		now = func() time.Time { return time.Date(2024, 5, 20, 0, 0, 0, 0, time.UTC) }
		grace := time.Duration(0)
		assert.False(t, crt.IsItemExpired(li, &grace))
	})
}

func TestCancelIfExpired(t *testing.T) {
	paidAt := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)

	t.Run("expired pendcancel cart is cancelled", func(t *testing.T) {
		fixedClock(t, paidAt)
		crt, _ := subscriptionCart(t, 1, UnitMonth)
		crt.State = StatePendCancel
		crt.AddPayment(decimal.NewFromInt(10), "tx-1", PaymentPaid)

		now = func() time.Time { return time.Date(2024, 6, 5, 0, 0, 0, 0, time.UTC) }
		grace := time.Duration(0)
		event, err := crt.CancelIfExpired(&grace)
		assert.NoError(t, err)
		assert.NotNil(t, event)
		assert.Equal(t, StateCancelled, crt.State)
	})
	t.Run("unexpired cart is left alone", func(t *testing.T) {
		fixedClock(t, paidAt)
		crt, _ := subscriptionCart(t, 1, UnitMonth)
		crt.State = StatePendCancel
		crt.AddPayment(decimal.NewFromInt(10), "tx-1", PaymentPaid)

		now = func() time.Time { return time.Date(2024, 5, 20, 0, 0, 0, 0, time.UTC) }
		grace := time.Duration(0)
		event, err := crt.CancelIfExpired(&grace)
		assert.NoError(t, err)
		assert.Nil(t, event)
		assert.Equal(t, StatePendCancel, crt.State)
	})
	t.Run("states without live subscriptions are ignored", func(t *testing.T) {
		fixedClock(t, paidAt)
		crt, _ := subscriptionCart(t, 1, UnitMonth)
		crt.State = StateCompleted

		grace := time.Duration(0)
		event, err := crt.CancelIfExpired(&grace)
		assert.NoError(t, err)
		assert.Nil(t, event)
		assert.Equal(t, StateCompleted, crt.State)
	})
}

func TestDeactivateRecurring(t *testing.T) {
	crt, li := subscriptionCart(t, 1, UnitMonth)
	assert.True(t, li.IsActive)
	assert.True(t, crt.DeactivateRecurring())
	assert.False(t, li.IsActive)
	assert.False(t, crt.DeactivateRecurring())
}
