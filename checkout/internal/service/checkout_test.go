package service

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Alturino/hiicart/checkout/pkg/request"
	"github.com/Alturino/hiicart/internal/cart"
	"github.com/Alturino/hiicart/internal/config"
	commonErrors "github.com/Alturino/hiicart/internal/errors"
	"github.com/Alturino/hiicart/internal/events"
	"github.com/Alturino/hiicart/internal/gateway"
	"github.com/Alturino/hiicart/internal/reconcile"
	"github.com/Alturino/hiicart/internal/store"
)

func newService(t *testing.T, cfg config.Checkout) *CheckoutService {
	t.Helper()
	memStore := store.NewMemoryStore()
	bus := events.NewBus(nil)
	registry := gateway.NewRegistry()
	registry.Register(gateway.CompName, gateway.NewComp)
	reconciler := reconcile.NewReconciler(memStore, bus, nil)
	return NewCheckoutService(memStore, bus, registry, reconciler, cfg, map[string]map[string]string{
		gateway.CompName: {"allow_recurring": "true"},
	})
}

func simpleCart() request.CreateCart {
	return request.CreateCart{
		LineItems: []request.LineItem{
			{SKU: "SKU-1", Name: "widget", Quantity: 2, UnitPrice: decimal.NewFromInt(25)},
		},
		BillTo: request.ContactInfo{FirstName: "Ada", Email: "ada@example.com"},
	}
}

func recurringCart() request.CreateCart {
	return request.CreateCart{
		RecurringItems: []request.RecurringLineItem{
			{
				SKU:            "SUB-1",
				Name:           "subscription",
				Quantity:       1,
				Duration:       1,
				DurationUnit:   "MONTH",
				RecurringPrice: decimal.NewFromInt(10),
			},
		},
	}
}

func TestCreateCart(t *testing.T) {
	svc := newService(t, config.Checkout{})

	crt, err := svc.CreateCart(context.Background(), simpleCart())
	require.NoError(t, err)

	assert.Equal(t, cart.StateOpen, crt.State)
	assert.True(t, decimal.NewFromInt(50).Equal(crt.Total))
	assert.Equal(t, "Ada", crt.BillTo.FirstName)

	found, err := svc.FindCart(context.Background(), crt.ID)
	require.NoError(t, err)
	assert.Equal(t, crt.ID, found.ID)
}

func TestSubmitCartComp(t *testing.T) {
	svc := newService(t, config.Checkout{})

	crt, err := svc.CreateCart(context.Background(), simpleCart())
	require.NoError(t, err)

	submitted, result, err := svc.SubmitCart(
		context.Background(), crt.ID, request.SubmitCart{Gateway: gateway.CompName},
	)
	require.NoError(t, err)
	assert.Equal(t, gateway.SubmitDirect, result.Kind)

	// The comp gateway settles in-place; the synthetic notification runs
	// through the same reconciliation as a real one.
	assert.Equal(t, cart.StateCompleted, submitted.State)
	require.Len(t, submitted.Payments, 1)
	assert.Equal(t, cart.PaymentPaid, submitted.Payments[0].State)
	assert.True(t, crt.Total.Equal(submitted.Payments[0].Amount))
}

func TestSubmitCartCompRecurring(t *testing.T) {
	svc := newService(t, config.Checkout{})

	crt, err := svc.CreateCart(context.Background(), recurringCart())
	require.NoError(t, err)

	submitted, _, err := svc.SubmitCart(
		context.Background(), crt.ID, request.SubmitCart{Gateway: gateway.CompName},
	)
	require.NoError(t, err)

	assert.Equal(t, cart.StateRecurring, submitted.State)
	require.Len(t, submitted.RecurringItems, 1)
	assert.True(t, submitted.RecurringItems[0].IsActive)
	assert.NotEmpty(t, submitted.RecurringItems[0].PaymentToken)
}

func TestSubmitCartRejectsNonOpen(t *testing.T) {
	svc := newService(t, config.Checkout{})

	crt, err := svc.CreateCart(context.Background(), simpleCart())
	require.NoError(t, err)

	_, _, err = svc.SubmitCart(
		context.Background(), crt.ID, request.SubmitCart{Gateway: gateway.CompName},
	)
	require.NoError(t, err)

	_, _, err = svc.SubmitCart(
		context.Background(), crt.ID, request.SubmitCart{Gateway: gateway.CompName},
	)
	assert.ErrorIs(t, err, commonErrors.ErrInvalidTransition)
}

func TestSubmitCartUnknownGateway(t *testing.T) {
	svc := newService(t, config.Checkout{})

	crt, err := svc.CreateCart(context.Background(), simpleCart())
	require.NoError(t, err)

	_, _, err = svc.SubmitCart(
		context.Background(), crt.ID, request.SubmitCart{Gateway: "paypal"},
	)
	assert.ErrorIs(t, err, commonErrors.ErrUnknownGateway)
}

func TestCloneCart(t *testing.T) {
	svc := newService(t, config.Checkout{})

	crt, err := svc.CreateCart(context.Background(), simpleCart())
	require.NoError(t, err)
	_, _, err = svc.SubmitCart(
		context.Background(), crt.ID, request.SubmitCart{Gateway: gateway.CompName},
	)
	require.NoError(t, err)

	dupe, err := svc.CloneCart(context.Background(), crt.ID)
	require.NoError(t, err)
	assert.NotEqual(t, crt.ID, dupe.ID)
	assert.Equal(t, cart.StateOpen, dupe.State)
	assert.Empty(t, dupe.Payments)

	found, err := svc.FindCart(context.Background(), dupe.ID)
	require.NoError(t, err)
	assert.Equal(t, dupe.ID, found.ID)
}

func TestCancelRecurring(t *testing.T) {
	t.Run("skip pendcancel goes straight to cancelled", func(t *testing.T) {
		svc := newService(t, config.Checkout{})
		crt, err := svc.CreateCart(context.Background(), recurringCart())
		require.NoError(t, err)
		_, _, err = svc.SubmitCart(
			context.Background(), crt.ID, request.SubmitCart{Gateway: gateway.CompName},
		)
		require.NoError(t, err)

		cancelled, err := svc.CancelRecurring(
			context.Background(), crt.ID, request.CancelRecurring{SkipPendCancel: true},
		)
		require.NoError(t, err)
		assert.Equal(t, cart.StateCancelled, cancelled.State)
		assert.False(t, cancelled.RecurringItems[0].IsActive)
	})
	t.Run("paid through period waits in pendcancel", func(t *testing.T) {
		svc := newService(t, config.Checkout{GracePeriodDays: 2})
		crt, err := svc.CreateCart(context.Background(), recurringCart())
		require.NoError(t, err)
		_, _, err = svc.SubmitCart(
			context.Background(), crt.ID, request.SubmitCart{Gateway: gateway.CompName},
		)
		require.NoError(t, err)

		cancelled, err := svc.CancelRecurring(
			context.Background(), crt.ID, request.CancelRecurring{},
		)
		require.NoError(t, err)
		assert.Equal(t, cart.StatePendCancel, cancelled.State)
	})
	t.Run("unsubmitted cart cannot cancel", func(t *testing.T) {
		svc := newService(t, config.Checkout{})
		crt, err := svc.CreateCart(context.Background(), recurringCart())
		require.NoError(t, err)

		_, err = svc.CancelRecurring(context.Background(), crt.ID, request.CancelRecurring{})
		assert.ErrorIs(t, err, commonErrors.ErrCartNotSubmitted)
	})
}

func TestHandleNotification(t *testing.T) {
	svc := newService(t, config.Checkout{})

	crt, err := svc.CreateCart(context.Background(), simpleCart())
	require.NoError(t, err)
	_, err = svc.store.FindCartByID(context.Background(), crt.ID)
	require.NoError(t, err)

	// Move the cart along so the notification is plausible.
	_, _, err = svc.SubmitCart(
		context.Background(), crt.ID, request.SubmitCart{Gateway: gateway.CompName},
	)
	require.NoError(t, err)

	t.Run("refund notification", func(t *testing.T) {
		payload, err := json.Marshal(gateway.Event{
			Kind:          gateway.EventPaymentRefunded,
			CartID:        crt.ID,
			TransactionID: "refund-1",
			Amount:        decimal.NewFromInt(50),
		})
		require.NoError(t, err)

		require.NoError(t, svc.HandleNotification(context.Background(), gateway.CompName, payload))

		saved, err := svc.FindCart(context.Background(), crt.ID)
		require.NoError(t, err)
		assert.Equal(t, cart.StateRefund, saved.State)
	})
	t.Run("malformed payload", func(t *testing.T) {
		err := svc.HandleNotification(context.Background(), gateway.CompName, []byte("not json"))
		assert.ErrorIs(t, err, commonErrors.ErrMalformedPayload)
	})
	t.Run("unknown gateway", func(t *testing.T) {
		err := svc.HandleNotification(context.Background(), "paypal", []byte("{}"))
		assert.ErrorIs(t, err, commonErrors.ErrUnknownGateway)
	})
}
