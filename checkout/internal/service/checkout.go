package service

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/Alturino/hiicart/checkout/internal/otel"
	"github.com/Alturino/hiicart/checkout/pkg/request"
	"github.com/Alturino/hiicart/internal/cart"
	"github.com/Alturino/hiicart/internal/config"
	commonErrors "github.com/Alturino/hiicart/internal/errors"
	"github.com/Alturino/hiicart/internal/events"
	"github.com/Alturino/hiicart/internal/gateway"
	"github.com/Alturino/hiicart/internal/log"
	"github.com/Alturino/hiicart/internal/reconcile"
	"github.com/Alturino/hiicart/internal/store"
)

// CheckoutService drives the cart lifecycle: creation, submission to a
// gateway, notification intake, recurring charges and cancellation. All
// mutations go through the store's per-cart lock; state change events are
// published after the save they belong to.
type CheckoutService struct {
	store         store.Store
	bus           *events.Bus
	registry      *gateway.Registry
	reconciler    *reconcile.Reconciler
	gatewayConfig map[string]map[string]string
	gracePeriod   *time.Duration
}

func NewCheckoutService(
	store store.Store,
	bus *events.Bus,
	registry *gateway.Registry,
	reconciler *reconcile.Reconciler,
	cfg config.Checkout,
	gatewayConfig map[string]map[string]string,
) *CheckoutService {
	var grace *time.Duration
	if cfg.GracePeriodDays > 0 {
		period := time.Duration(cfg.GracePeriodDays) * 24 * time.Hour
		grace = &period
	}
	return &CheckoutService{
		store:         store,
		bus:           bus,
		registry:      registry,
		reconciler:    reconciler,
		gatewayConfig: gatewayConfig,
		gracePeriod:   grace,
	}
}

func (s *CheckoutService) adapter(name string) (gateway.Adapter, error) {
	return s.registry.Get(name, s.gatewayConfig[name])
}

func (s *CheckoutService) CreateCart(
	c context.Context,
	param request.CreateCart,
) (*cart.Cart, error) {
	c, span := otel.Tracer.Start(c, "CheckoutService CreateCart")
	defer span.End()

	logger := zerolog.Ctx(c).
		With().
		Str(log.KeyTag, "CheckoutService CreateCart").
		Logger()

	crt := cart.New()
	crt.Discount = param.Discount
	crt.Tax = param.Tax
	crt.ShippingCost = param.ShippingCost
	crt.BillTo = contactFromRequest(param.BillTo)
	crt.ShipTo = contactFromRequest(param.ShipTo)
	crt.SuccessURL = param.SuccessURL
	crt.FailureURL = param.FailureURL
	crt.GracePeriod = s.gracePeriod
	for i, li := range param.LineItems {
		ordering := li.Ordering
		if ordering == 0 {
			ordering = i
		}
		crt.LineItems = append(crt.LineItems, &cart.LineItem{
			ID:          uuid.New(),
			CartID:      crt.ID,
			SKU:         li.SKU,
			Name:        li.Name,
			Description: li.Description,
			Quantity:    li.Quantity,
			UnitPrice:   li.UnitPrice,
			Discount:    li.Discount,
			Ordering:    ordering,
		})
	}
	for i, li := range param.RecurringItems {
		ordering := li.Ordering
		if ordering == 0 {
			ordering = i
		}
		crt.RecurringItems = append(crt.RecurringItems, &cart.RecurringLineItem{
			ID:                uuid.New(),
			CartID:            crt.ID,
			SKU:               li.SKU,
			Name:              li.Name,
			Description:       li.Description,
			Quantity:          li.Quantity,
			Discount:          li.Discount,
			Duration:          li.Duration,
			DurationUnit:      cart.DurationUnit(li.DurationUnit),
			RecurringPrice:    li.RecurringPrice,
			RecurringShipping: li.RecurringShipping,
			RecurringTimes:    li.RecurringTimes,
			Trial:             li.Trial,
			TrialPrice:        li.TrialPrice,
			TrialLength:       li.TrialLength,
			TrialTimes:        li.TrialTimes,
			Ordering:          ordering,
		})
	}
	crt.Recalc()

	if err := s.store.SaveCart(c, crt); err != nil {
		err = fmt.Errorf("failed saving cart with error=%w", err)
		commonErrors.HandleError(err, span)
		logger.Error().Err(err).Msg(err.Error())
		return nil, err
	}
	logger.Info().Str(log.KeyCartID, crt.ID.String()).Msg("created cart")
	return crt, nil
}

func (s *CheckoutService) FindCart(c context.Context, id uuid.UUID) (*cart.Cart, error) {
	c, span := otel.Tracer.Start(c, "CheckoutService FindCart")
	defer span.End()

	crt, err := s.store.FindCartByID(c, id)
	if err != nil {
		commonErrors.HandleError(err, span)
		return nil, err
	}
	crt.GracePeriod = s.gracePeriod
	return crt, nil
}

// SubmitCart hands the cart to the named gateway. A redirecting gateway
// leaves the cart SUBMITTED with a URL to send the buyer to; the comp
// gateway settles in-place by feeding its own synthetic notifications back
// through reconciliation.
func (s *CheckoutService) SubmitCart(
	c context.Context,
	id uuid.UUID,
	param request.SubmitCart,
) (*cart.Cart, gateway.SubmitResult, error) {
	c, span := otel.Tracer.Start(c, "CheckoutService SubmitCart")
	defer span.End()

	logger := zerolog.Ctx(c).
		With().
		Str(log.KeyTag, "CheckoutService SubmitCart").
		Str(log.KeyCartID, id.String()).
		Str(log.KeyGateway, param.Gateway).
		Logger()
	c = logger.WithContext(c)

	adapter, err := s.adapter(param.Gateway)
	if err != nil {
		commonErrors.HandleError(err, span)
		logger.Error().Err(err).Msg(err.Error())
		return nil, gateway.SubmitResult{}, err
	}

	var submitted *cart.Cart
	var result gateway.SubmitResult
	cartEvents := []cart.StateChanged{}
	err = s.store.WithCartLock(c, id, func(c context.Context, crt *cart.Cart) error {
		if crt.State != cart.StateOpen {
			return fmt.Errorf(
				"%w: cart=%s is %s, only OPEN carts can be submitted",
				commonErrors.ErrInvalidTransition, crt.ID, crt.State,
			)
		}
		crt.GracePeriod = s.gracePeriod
		crt.Gateway = param.Gateway

		var submitErr error
		result, submitErr = adapter.Submit(c, crt)
		if submitErr != nil {
			return fmt.Errorf("failed submitting cart to gateway with error=%w", submitErr)
		}
		stateEvent, stateErr := crt.SetState(cart.StateSubmitted)
		if stateErr != nil {
			return stateErr
		}
		if stateEvent != nil {
			cartEvents = append(cartEvents, *stateEvent)
		}
		submitted = crt
		return nil
	})
	if err != nil {
		commonErrors.HandleError(err, span)
		logger.Error().Err(err).Msg(err.Error())
		return nil, gateway.SubmitResult{}, err
	}
	for _, cartEvent := range cartEvents {
		if err := s.bus.PublishCartStateChanged(c, cartEvent); err != nil {
			logger.Error().Err(err).Msg("failed publishing cart state event")
		}
	}
	logger.Info().Str(log.KeyCartState, string(submitted.State)).Msg("submitted cart")

	if result.Kind == gateway.SubmitDirect {
		if err := s.settleDirect(c, adapter, submitted); err != nil {
			commonErrors.HandleError(err, span)
			logger.Error().Err(err).Msg(err.Error())
			return nil, gateway.SubmitResult{}, err
		}
		submitted, err = s.FindCart(c, id)
		if err != nil {
			commonErrors.HandleError(err, span)
			return nil, gateway.SubmitResult{}, err
		}
	}
	return submitted, result, nil
}

// settleDirect runs a direct gateway's synthetic notifications through the
// same reconciliation path real notifications take.
func (s *CheckoutService) settleDirect(
	c context.Context,
	adapter gateway.Adapter,
	crt *cart.Cart,
) error {
	if err := s.reconciler.Apply(c, gateway.CompPaymentEvent(crt)); err != nil {
		return fmt.Errorf("failed settling direct payment with error=%w", err)
	}
	recurringAllowed := true
	if comp, ok := adapter.(interface{ AllowRecurring() bool }); ok {
		recurringAllowed = comp.AllowRecurring()
	}
	if !recurringAllowed {
		return nil
	}
	for _, li := range crt.RecurringItems {
		if err := s.reconciler.Apply(c, gateway.CompActivationEvent(crt, li)); err != nil {
			return fmt.Errorf("failed activating direct subscription with error=%w", err)
		}
	}
	return nil
}

// CloneCart copies a cart's goods and customer data into a fresh OPEN cart,
// the path a re-subscription takes after a cancelled subscription.
func (s *CheckoutService) CloneCart(c context.Context, id uuid.UUID) (*cart.Cart, error) {
	c, span := otel.Tracer.Start(c, "CheckoutService CloneCart")
	defer span.End()

	logger := zerolog.Ctx(c).
		With().
		Str(log.KeyTag, "CheckoutService CloneCart").
		Str(log.KeyCartID, id.String()).
		Logger()

	crt, err := s.FindCart(c, id)
	if err != nil {
		commonErrors.HandleError(err, span)
		logger.Error().Err(err).Msg(err.Error())
		return nil, err
	}
	dupe := crt.Clone()
	if err := s.store.SaveCart(c, dupe); err != nil {
		err = fmt.Errorf("failed saving cloned cart with error=%w", err)
		commonErrors.HandleError(err, span)
		logger.Error().Err(err).Msg(err.Error())
		return nil, err
	}
	logger.Info().Str(log.KeyCartID, dupe.ID.String()).Msg("cloned cart")
	return dupe, nil
}

// CancelRecurring cancels the cart's subscriptions at the gateway and
// deactivates them locally. With SkipPendCancel the cart jumps straight to
// CANCELLED instead of waiting out the paid-through period in PENDCANCEL.
func (s *CheckoutService) CancelRecurring(
	c context.Context,
	id uuid.UUID,
	param request.CancelRecurring,
) (*cart.Cart, error) {
	c, span := otel.Tracer.Start(c, "CheckoutService CancelRecurring")
	defer span.End()

	logger := zerolog.Ctx(c).
		With().
		Str(log.KeyTag, "CheckoutService CancelRecurring").
		Str(log.KeyCartID, id.String()).
		Logger()
	c = logger.WithContext(c)

	var cancelled *cart.Cart
	cartEvents := []cart.StateChanged{}
	err := s.store.WithCartLock(c, id, func(c context.Context, crt *cart.Cart) error {
		crt.GracePeriod = s.gracePeriod
		if crt.Gateway == "" {
			return fmt.Errorf("%w: cart=%s", commonErrors.ErrCartNotSubmitted, crt.ID)
		}

		adapter, err := s.adapter(crt.Gateway)
		if err != nil {
			return err
		}
		for _, li := range crt.RecurringItems {
			if !li.IsActive || li.PaymentToken == "" {
				continue
			}
			result, err := adapter.CancelSubscription(c, li.PaymentToken)
			if err != nil {
				return fmt.Errorf("failed cancelling subscription at gateway with error=%w", err)
			}
			if !result.Success {
				return fmt.Errorf(
					"gateway declined subscription cancel: status=%s message=%s",
					result.Status, result.Message,
				)
			}
		}
		crt.DeactivateRecurring()

		var stateEvent *cart.StateChanged
		if param.SkipPendCancel {
			stateEvent, err = crt.SetState(cart.StateCancelled)
			if err != nil {
				return err
			}
		} else {
			stateEvent = crt.UpdateState()
		}
		if stateEvent != nil {
			cartEvents = append(cartEvents, *stateEvent)
		}
		cancelled = crt
		return nil
	})
	if err != nil {
		commonErrors.HandleError(err, span)
		logger.Error().Err(err).Msg(err.Error())
		return nil, err
	}
	for _, cartEvent := range cartEvents {
		if err := s.bus.PublishCartStateChanged(c, cartEvent); err != nil {
			logger.Error().Err(err).Msg("failed publishing cart state event")
		}
	}
	logger.Info().Str(log.KeyCartState, string(cancelled.State)).Msg("cancelled recurring")
	return cancelled, nil
}

// ChargeRecurring bills the cart's first active subscription when its
// billing period has lapsed. Carts with multiple active subscriptions only
// have the first one charged; that mirrors the one-subscription-per-cart
// limitation elsewhere.
func (s *CheckoutService) ChargeRecurring(
	c context.Context,
	id uuid.UUID,
	grace *time.Duration,
) error {
	c, span := otel.Tracer.Start(c, "CheckoutService ChargeRecurring")
	defer span.End()

	logger := zerolog.Ctx(c).
		With().
		Str(log.KeyTag, "CheckoutService ChargeRecurring").
		Str(log.KeyCartID, id.String()).
		Logger()
	c = logger.WithContext(c)

	crt, err := s.FindCart(c, id)
	if err != nil {
		commonErrors.HandleError(err, span)
		logger.Error().Err(err).Msg(err.Error())
		return err
	}
	li := crt.ActiveRecurringItem()
	if li == nil {
		return fmt.Errorf("%w: cart=%s", commonErrors.ErrNoRecurringLineItem, id)
	}
	if !crt.IsItemExpired(li, grace) {
		logger.Info().Msg("subscription not due, skipping charge")
		return nil
	}

	adapter, err := s.adapter(crt.Gateway)
	if err != nil {
		commonErrors.HandleError(err, span)
		logger.Error().Err(err).Msg(err.Error())
		return err
	}
	amount := li.Total()
	result, err := adapter.Charge(c, li.PaymentToken, amount)
	if err != nil {
		err = fmt.Errorf("failed charging subscription with error=%w", err)
		commonErrors.HandleError(err, span)
		logger.Error().Err(err).Msg(err.Error())
		return err
	}

	event := gateway.Event{
		Kind:          gateway.EventPaymentCompleted,
		CartID:        crt.ID,
		TransactionID: result.TransactionID,
		Amount:        amount,
		SKU:           li.SKU,
		ResponseText:  result.Status,
	}
	if !result.Success {
		event.Kind = gateway.EventPaymentFailed
		event.Note = result.Message
	}
	if err := s.reconciler.Apply(c, event); err != nil {
		commonErrors.HandleError(err, span)
		logger.Error().Err(err).Msg(err.Error())
		return err
	}
	logger.Info().
		Str(log.KeyTransactionID, result.TransactionID).
		Str(log.KeyAmount, amount.String()).
		Bool("success", result.Success).
		Msg("charged subscription")
	return nil
}

// HandleNotification is the inbound path for gateway callbacks: verify,
// parse into the canonical event, reconcile.
func (s *CheckoutService) HandleNotification(
	c context.Context,
	gatewayName string,
	raw []byte,
) error {
	c, span := otel.Tracer.Start(c, "CheckoutService HandleNotification")
	defer span.End()

	logger := zerolog.Ctx(c).
		With().
		Str(log.KeyTag, "CheckoutService HandleNotification").
		Str(log.KeyGateway, gatewayName).
		Logger()
	c = logger.WithContext(c)

	adapter, err := s.adapter(gatewayName)
	if err != nil {
		commonErrors.HandleError(err, span)
		logger.Error().Err(err).Msg(err.Error())
		return err
	}

	ok, err := adapter.VerifySignature(c, raw)
	if err != nil {
		err = fmt.Errorf("failed verifying notification signature with error=%w", err)
		commonErrors.HandleError(err, span)
		logger.Error().Err(err).Msg(err.Error())
		return err
	}
	if !ok {
		err = fmt.Errorf("%w: gateway=%s", commonErrors.ErrVerificationFailed, gatewayName)
		commonErrors.HandleError(err, span)
		logger.Error().Err(err).Msg(err.Error())
		return err
	}

	event, err := adapter.ParseNotification(c, raw)
	if err != nil {
		err = fmt.Errorf("%w: %s", commonErrors.ErrMalformedPayload, err)
		commonErrors.HandleError(err, span)
		logger.Error().Err(err).Msg(err.Error())
		return err
	}
	return s.reconciler.Apply(c, event)
}

// ChargeDueSubscriptions bills every RECURRING cart whose subscription has
// lapsed past the configured grace period. Failures on one cart do not stop
// the rest.
func (s *CheckoutService) ChargeDueSubscriptions(c context.Context) error {
	c, span := otel.Tracer.Start(c, "CheckoutService ChargeDueSubscriptions")
	defer span.End()

	logger := zerolog.Ctx(c).
		With().
		Str(log.KeyTag, "CheckoutService ChargeDueSubscriptions").
		Logger()
	c = logger.WithContext(c)

	ids, err := s.store.ListCartIDsByState(c, cart.StateRecurring)
	if err != nil {
		commonErrors.HandleError(err, span)
		logger.Error().Err(err).Msg(err.Error())
		return err
	}
	for _, id := range ids {
		if err := s.ChargeRecurring(c, id, nil); err != nil {
			logger.Error().Err(err).Str(log.KeyCartID, id.String()).
				Msg("failed charging subscription, continuing")
		}
	}
	logger.Info().Int("examined", len(ids)).Msg("charged due subscriptions")
	return nil
}

// SweepExpired walks carts with live subscription state and cancels the
// ones whose subscriptions have all lapsed.
func (s *CheckoutService) SweepExpired(c context.Context) error {
	c, span := otel.Tracer.Start(c, "CheckoutService SweepExpired")
	defer span.End()

	logger := zerolog.Ctx(c).
		With().
		Str(log.KeyTag, "CheckoutService SweepExpired").
		Logger()
	c = logger.WithContext(c)

	ids, err := s.store.ListCartIDsByState(c, cart.StateRecurring, cart.StatePendCancel)
	if err != nil {
		commonErrors.HandleError(err, span)
		logger.Error().Err(err).Msg(err.Error())
		return err
	}

	cancelled := 0
	for _, id := range ids {
		cartEvents := []cart.StateChanged{}
		err := s.store.WithCartLock(c, id, func(c context.Context, crt *cart.Cart) error {
			crt.GracePeriod = s.gracePeriod
			stateEvent, err := crt.CancelIfExpired(nil)
			if err != nil {
				return err
			}
			if stateEvent != nil {
				crt.DeactivateRecurring()
				cartEvents = append(cartEvents, *stateEvent)
			}
			return nil
		})
		if err != nil {
			logger.Error().Err(err).Str(log.KeyCartID, id.String()).
				Msg("failed sweeping cart, continuing")
			continue
		}
		if len(cartEvents) > 0 {
			cancelled++
		}
		for _, cartEvent := range cartEvents {
			if err := s.bus.PublishCartStateChanged(c, cartEvent); err != nil {
				logger.Error().Err(err).Msg("failed publishing cart state event")
			}
		}
	}
	logger.Info().
		Int("examined", len(ids)).
		Int("cancelled", cancelled).
		Msg("swept recurring carts")
	return nil
}

func contactFromRequest(info request.ContactInfo) cart.ContactInfo {
	return cart.ContactInfo{
		FirstName:  info.FirstName,
		LastName:   info.LastName,
		Email:      info.Email,
		Phone:      info.Phone,
		Street1:    info.Street1,
		Street2:    info.Street2,
		City:       info.City,
		Region:     info.Region,
		PostalCode: info.PostalCode,
		Country:    info.Country,
	}
}
