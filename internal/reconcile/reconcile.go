package reconcile

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/Alturino/hiicart/internal/cart"
	commonErrors "github.com/Alturino/hiicart/internal/errors"
	"github.com/Alturino/hiicart/internal/events"
	"github.com/Alturino/hiicart/internal/gateway"
	"github.com/Alturino/hiicart/internal/log"
	"github.com/Alturino/hiicart/internal/otel"
	"github.com/Alturino/hiicart/internal/store"
)

// Reconciler folds verified gateway events into cart state. Each Apply runs
// under the store's per-cart lock, so replays and concurrent deliveries of
// the same transaction id resolve to a single payment record. State change
// events are published only after the aggregate has been saved.
type Reconciler struct {
	store store.Store
	bus   *events.Bus
	// grace is the configured default expiration tolerance applied to
	// loaded carts so state derivation can tell a lapsed subscription from
	// a merely cancelled one. Nil means subscriptions never expire.
	grace *time.Duration
}

func NewReconciler(store store.Store, bus *events.Bus, grace *time.Duration) *Reconciler {
	return &Reconciler{store: store, bus: bus, grace: grace}
}

func (r *Reconciler) Apply(c context.Context, event gateway.Event) error {
	c, span := otel.Tracer.Start(c, "Reconciler Apply")
	defer span.End()

	logger := zerolog.Ctx(c).
		With().
		Str(log.KeyTag, "Reconciler Apply").
		Str(log.KeyEventKind, string(event.Kind)).
		Str(log.KeyCartID, event.CartID.String()).
		Str(log.KeyTransactionID, event.TransactionID).
		Logger()
	c = logger.WithContext(c)

	cartEvents := []cart.StateChanged{}
	paymentEvents := []cart.PaymentStateChanged{}
	collect := func(stateEvent *cart.StateChanged, paymentEvent *cart.PaymentStateChanged) {
		if stateEvent != nil {
			cartEvents = append(cartEvents, *stateEvent)
		}
		if paymentEvent != nil {
			paymentEvents = append(paymentEvents, *paymentEvent)
		}
	}

	err := r.store.WithCartLock(c, event.CartID, func(c context.Context, crt *cart.Cart) error {
		crt.GracePeriod = r.grace
		if event.ResponseCode != 0 || event.ResponseText != "" {
			crt.SetPaymentResponse(event.ResponseCode, event.ResponseText)
		}
		switch event.Kind {
		case gateway.EventPaymentCompleted:
			return r.acceptPayment(c, crt, event, cart.PaymentPaid, collect)
		case gateway.EventPaymentFailed:
			return r.acceptPayment(c, crt, event, cart.PaymentFailed, collect)
		case gateway.EventPaymentRefunded:
			return r.acceptPayment(c, crt, event, cart.PaymentRefund, collect)
		case gateway.EventPaymentPending:
			return r.acceptPending(c, crt, event, collect)
		case gateway.EventSubscriptionActivated:
			return r.activateSubscription(c, crt, event, collect)
		case gateway.EventSubscriptionCancelled:
			return r.cancelSubscription(c, crt, event, collect)
		default:
			return fmt.Errorf("%w: unknown event kind=%s", commonErrors.ErrMalformedPayload, event.Kind)
		}
	})
	if err != nil {
		commonErrors.HandleError(err, span)
		logger.Error().Err(err).Msg(err.Error())
		return err
	}

	for _, paymentEvent := range paymentEvents {
		if err := r.bus.PublishPaymentStateChanged(c, paymentEvent); err != nil {
			logger.Error().Err(err).Msg("failed publishing payment state event")
		}
	}
	for _, cartEvent := range cartEvents {
		if err := r.bus.PublishCartStateChanged(c, cartEvent); err != nil {
			logger.Error().Err(err).Msg("failed publishing cart state event")
		}
	}
	return nil
}

type collector func(*cart.StateChanged, *cart.PaymentStateChanged)

// acceptPayment records a terminal payment outcome idempotently. A replayed
// transaction id whose payments already left PENDING is logged and dropped
// without touching the cart. A fresh transaction id is recorded in two
// steps, created PENDING then transitioned, so the payment transition event
// fires for new and updated payments alike.
func (r *Reconciler) acceptPayment(
	c context.Context,
	crt *cart.Cart,
	event gateway.Event,
	target cart.PaymentState,
	collect collector,
) error {
	logger := zerolog.Ctx(c).
		With().
		Str(log.KeyTag, "Reconciler acceptPayment").
		Str(log.KeyPaymentState, string(target)).
		Str(log.KeyAmount, event.Amount.String()).
		Logger()

	amount := event.Amount
	if target == cart.PaymentRefund && amount.IsPositive() {
		amount = amount.Neg()
	}

	var payment *cart.Payment
	existing := crt.PaymentsByTransactionID(event.TransactionID)
	switch {
	case len(existing) > 0 && !allPending(existing):
		logger.Info().Msg("duplicate notification for settled transaction, skipping")
		return nil
	case len(existing) == 1:
		payment = existing[0]
		payment.Amount = amount
	default:
		payment = crt.AddPayment(amount, event.TransactionID, cart.PaymentPending)
	}
	collect(nil, payment.SetState(target))

	if event.Note != "" {
		payment.Notes = append(payment.Notes, event.Note)
	}
	crt.MergeCustomerInfo(event.Customer)
	collect(crt.UpdateState(), nil)
	return nil
}

// acceptPending records that a transaction started but has not settled. A
// pending notification for a transaction id we already know is a replay.
func (r *Reconciler) acceptPending(
	c context.Context,
	crt *cart.Cart,
	event gateway.Event,
	collect collector,
) error {
	logger := zerolog.Ctx(c).
		With().
		Str(log.KeyTag, "Reconciler acceptPending").
		Str(log.KeyAmount, event.Amount.String()).
		Logger()

	if existing := crt.PaymentsByTransactionID(event.TransactionID); len(existing) > 0 {
		logger.Info().Msg("duplicate pending notification, skipping")
		return nil
	}
	payment := crt.AddPayment(event.Amount, event.TransactionID, cart.PaymentPending)
	if event.Note != "" {
		payment.Notes = append(payment.Notes, event.Note)
	}
	crt.MergeCustomerInfo(event.Customer)
	collect(crt.UpdateState(), nil)
	return nil
}

func (r *Reconciler) activateSubscription(
	c context.Context,
	crt *cart.Cart,
	event gateway.Event,
	collect collector,
) error {
	li, err := recurringItemFor(crt, event)
	if err != nil {
		return err
	}
	if token := subscriptionToken(event); token != "" {
		li.PaymentToken = token
	}
	li.IsActive = true
	crt.MergeCustomerInfo(event.Customer)
	collect(crt.UpdateState(), nil)
	return nil
}

func (r *Reconciler) cancelSubscription(
	c context.Context,
	crt *cart.Cart,
	event gateway.Event,
	collect collector,
) error {
	li, err := recurringItemFor(crt, event)
	if err != nil {
		return err
	}
	li.IsActive = false
	collect(crt.UpdateState(), nil)
	return nil
}

// recurringItemFor resolves the recurring item a subscription event targets:
// by SKU when the event names one, otherwise the cart's single recurring
// item.
func recurringItemFor(crt *cart.Cart, event gateway.Event) (*cart.RecurringLineItem, error) {
	if event.SKU != "" {
		for _, li := range crt.RecurringItems {
			if li.SKU == event.SKU {
				return li, nil
			}
		}
		return nil, fmt.Errorf(
			"%w: no recurring line item with sku=%s on cart=%s",
			commonErrors.ErrNoRecurringLineItem, event.SKU, crt.ID,
		)
	}
	if len(crt.RecurringItems) == 0 {
		return nil, fmt.Errorf(
			"%w: cart=%s", commonErrors.ErrNoRecurringLineItem, crt.ID,
		)
	}
	return crt.RecurringItems[0], nil
}

func subscriptionToken(event gateway.Event) string {
	if event.Token != "" {
		return event.Token
	}
	return event.TransactionID
}

func allPending(payments []*cart.Payment) bool {
	for _, p := range payments {
		if p.State != cart.PaymentPending {
			return false
		}
	}
	return true
}
