package events

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/Alturino/hiicart/internal/cart"
	"github.com/Alturino/hiicart/internal/constants"
	commonErrors "github.com/Alturino/hiicart/internal/errors"
	"github.com/Alturino/hiicart/internal/log"
	"github.com/Alturino/hiicart/internal/otel"
)

// CartStateListener receives cart transitions after the cart they belong to
// has been saved. Listeners run synchronously on the publishing goroutine.
type CartStateListener func(c context.Context, event cart.StateChanged)

// PaymentStateListener receives payment transitions after save.
type PaymentStateListener func(c context.Context, event cart.PaymentStateChanged)

// Bus fans state change events out to in-process listeners and, when a redis
// client is attached, to the shared pub/sub channels other services consume.
// Publication happens after the owning save commits, so a consumer never
// observes an event for state that was rolled back.
type Bus struct {
	mu               sync.RWMutex
	cartListeners    []CartStateListener
	paymentListeners []PaymentStateListener
	cache            *redis.Client
}

func NewBus(cache *redis.Client) *Bus {
	return &Bus{cache: cache}
}

func (b *Bus) SubscribeCartState(listener CartStateListener) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.cartListeners = append(b.cartListeners, listener)
}

func (b *Bus) SubscribePaymentState(listener PaymentStateListener) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.paymentListeners = append(b.paymentListeners, listener)
}

func (b *Bus) PublishCartStateChanged(c context.Context, event cart.StateChanged) error {
	c, span := otel.Tracer.Start(c, "Bus PublishCartStateChanged")
	defer span.End()

	logger := zerolog.Ctx(c).
		With().
		Str(log.KeyTag, "Bus PublishCartStateChanged").
		Str(log.KeyCartID, event.CartID.String()).
		Str(log.KeyOldState, string(event.OldState)).
		Str(log.KeyNewState, string(event.NewState)).
		Str(log.KeyChannel, constants.CHANNEL_CART_STATE_CHANGED).
		Logger()

	b.mu.RLock()
	listeners := b.cartListeners
	b.mu.RUnlock()
	for _, listener := range listeners {
		listener(c, event)
	}

	if b.cache == nil {
		return nil
	}
	payload, err := json.Marshal(event)
	if err != nil {
		err = fmt.Errorf("failed marshaling cart state event with error=%w", err)
		commonErrors.HandleError(err, span)
		logger.Error().Err(err).Msg(err.Error())
		return err
	}
	if err = b.cache.Publish(c, constants.CHANNEL_CART_STATE_CHANGED, payload).Err(); err != nil {
		err = fmt.Errorf("failed publishing cart state event with error=%w", err)
		commonErrors.HandleError(err, span)
		logger.Error().Err(err).Msg(err.Error())
		return err
	}
	logger.Info().Msg("published cart state event")
	return nil
}

func (b *Bus) PublishPaymentStateChanged(
	c context.Context,
	event cart.PaymentStateChanged,
) error {
	c, span := otel.Tracer.Start(c, "Bus PublishPaymentStateChanged")
	defer span.End()

	logger := zerolog.Ctx(c).
		With().
		Str(log.KeyTag, "Bus PublishPaymentStateChanged").
		Str(log.KeyCartID, event.CartID.String()).
		Str(log.KeyPaymentID, event.PaymentID.String()).
		Str(log.KeyOldState, string(event.OldState)).
		Str(log.KeyNewState, string(event.NewState)).
		Str(log.KeyChannel, constants.CHANNEL_PAYMENT_STATE_CHANGED).
		Logger()

	b.mu.RLock()
	listeners := b.paymentListeners
	b.mu.RUnlock()
	for _, listener := range listeners {
		listener(c, event)
	}

	if b.cache == nil {
		return nil
	}
	payload, err := json.Marshal(event)
	if err != nil {
		err = fmt.Errorf("failed marshaling payment state event with error=%w", err)
		commonErrors.HandleError(err, span)
		logger.Error().Err(err).Msg(err.Error())
		return err
	}
	if err = b.cache.Publish(c, constants.CHANNEL_PAYMENT_STATE_CHANGED, payload).Err(); err != nil {
		err = fmt.Errorf("failed publishing payment state event with error=%w", err)
		commonErrors.HandleError(err, span)
		logger.Error().Err(err).Msg(err.Error())
		return err
	}
	logger.Info().Msg("published payment state event")
	return nil
}
