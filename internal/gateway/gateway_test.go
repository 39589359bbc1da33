package gateway

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Alturino/hiicart/internal/cart"
	commonErrors "github.com/Alturino/hiicart/internal/errors"
)

func TestRegistry(t *testing.T) {
	registry := NewRegistry()
	registry.Register(CompName, NewComp)

	t.Run("registered gateway is constructed with settings", func(t *testing.T) {
		adapter, err := registry.Get(CompName, map[string]string{"allow_recurring": "true"})
		require.NoError(t, err)
		assert.Equal(t, CompName, adapter.Name())

		comp, ok := adapter.(*Comp)
		require.True(t, ok)
		assert.True(t, comp.AllowRecurring())
	})
	t.Run("nil settings default recurring off", func(t *testing.T) {
		adapter, err := registry.Get(CompName, nil)
		require.NoError(t, err)
		comp, ok := adapter.(*Comp)
		require.True(t, ok)
		assert.False(t, comp.AllowRecurring())
	})
	t.Run("unknown gateway", func(t *testing.T) {
		_, err := registry.Get("paypal", nil)
		assert.ErrorIs(t, err, commonErrors.ErrUnknownGateway)
	})
	t.Run("names", func(t *testing.T) {
		assert.Equal(t, []string{CompName}, registry.Names())
	})
}

func TestCompAdapter(t *testing.T) {
	comp := &Comp{allowRecurring: true}

	t.Run("submit is direct", func(t *testing.T) {
		result, err := comp.Submit(context.Background(), cart.New())
		require.NoError(t, err)
		assert.Equal(t, SubmitDirect, result.Kind)
		assert.Empty(t, result.URL)
	})
	t.Run("signatures always verify", func(t *testing.T) {
		ok, err := comp.VerifySignature(context.Background(), []byte("anything"))
		require.NoError(t, err)
		assert.True(t, ok)
	})
	t.Run("notifications parse the canonical event", func(t *testing.T) {
		crt := cart.New()
		payload, err := json.Marshal(CompPaymentEvent(crt))
		require.NoError(t, err)

		event, err := comp.ParseNotification(context.Background(), payload)
		require.NoError(t, err)
		assert.Equal(t, EventPaymentCompleted, event.Kind)
		assert.Equal(t, crt.ID, event.CartID)
		assert.NotEmpty(t, event.TransactionID)
	})
	t.Run("invoice resolves the cart id when none is set", func(t *testing.T) {
		crt := cart.New()
		payload := []byte(`{"kind":"payment-completed","transaction_id":"tx-1","invoice":"` +
			crt.ID.String() + `-retry-2"}`)

		event, err := comp.ParseNotification(context.Background(), payload)
		require.NoError(t, err)
		assert.Equal(t, crt.ID, event.CartID)
	})
	t.Run("malformed notification", func(t *testing.T) {
		_, err := comp.ParseNotification(context.Background(), []byte("not json"))
		assert.Error(t, err)
	})
	t.Run("charge settles with fresh transaction id", func(t *testing.T) {
		first, err := comp.Charge(context.Background(), "token", decimal.NewFromInt(10))
		require.NoError(t, err)
		second, err := comp.Charge(context.Background(), "token", decimal.NewFromInt(10))
		require.NoError(t, err)

		assert.True(t, first.Success)
		assert.NotEqual(t, first.TransactionID, second.TransactionID)
	})
}

func TestCartIDFromInvoice(t *testing.T) {
	id := uuid.New()

	parsed, err := CartIDFromInvoice(id.String())
	require.NoError(t, err)
	assert.Equal(t, id, parsed)

	parsed, err = CartIDFromInvoice(id.String() + "-retry-3")
	require.NoError(t, err)
	assert.Equal(t, id, parsed)

	_, err = CartIDFromInvoice("not-a-uuid")
	assert.Error(t, err)
}

func TestCompActivationEvent(t *testing.T) {
	crt := cart.New()
	li := &cart.RecurringLineItem{CartID: crt.ID, SKU: "SUB-1"}

	event := CompActivationEvent(crt, li)
	assert.Equal(t, EventSubscriptionActivated, event.Kind)
	assert.Equal(t, crt.ID, event.CartID)
	assert.Equal(t, "SUB-1", event.SKU)
}
