package cmd

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/Alturino/hiicart/checkout/internal/otel"
	"github.com/Alturino/hiicart/internal/config"
	"github.com/Alturino/hiicart/internal/constants"
	"github.com/Alturino/hiicart/internal/infra"
	"github.com/Alturino/hiicart/internal/log"
	inOtel "github.com/Alturino/hiicart/internal/otel"
)

// RunRecurringSweeper periodically bills lapsed subscriptions and cancels
// carts whose subscriptions have all expired. It is the scheduled
// counterpart of the notification-driven lifecycle.
func RunRecurringSweeper(c context.Context) {
	c, span := otel.Tracer.Start(c, "RunRecurringSweeper")
	defer span.End()

	logger := log.InitLogger(filepath.Join("/var/log/", constants.APP_RECURRING_SWEEPER+".log")).
		With().
		Str(log.KeyAppName, constants.APP_RECURRING_SWEEPER).
		Str(log.KeyTag, "main RunRecurringSweeper").
		Logger()
	c = logger.WithContext(c)

	cfg := config.InitConfig(c, constants.APP_CHECKOUT_SERVICE)

	logger = logger.With().Str(log.KeyProcess, "initializing otel sdk").Logger()
	logger.Info().Msg("initializing otel sdk")
	c = logger.WithContext(c)
	shutdownFuncs, err := inOtel.InitOtelSdk(c, constants.APP_RECURRING_SWEEPER, cfg.Otel)
	if err != nil {
		err = fmt.Errorf("failed initializing otel sdk with error=%w", err)
		inOtel.RecordError(err, span)
		logger.Error().Err(err).Msg(err.Error())
		return
	}
	defer func() {
		logger.Info().Msg("shutting down otel")
		c = logger.WithContext(c)
		if err := inOtel.ShutdownOtel(c, shutdownFuncs); err != nil {
			err = fmt.Errorf("failed shutting down otel with error=%w", err)
			inOtel.RecordError(err, span)
			logger.Error().Err(err).Msg(err.Error())
		}
		logger.Info().Msg("shutdown otel")
	}()
	logger.Info().Msg("initialized otel sdk")

	logger = logger.With().Str(log.KeyProcess, "initializing database").Logger()
	logger.Info().Msg("initializing database")
	c = logger.WithContext(c)
	pool := infra.NewDatabaseClient(c, cfg.Database)
	defer func() {
		logger.Info().Msg("closing database")
		pool.Close()
		logger.Info().Msg("closed database")
	}()
	logger.Info().Msg("initialized database")

	logger = logger.With().Str(log.KeyProcess, "initializing cache").Logger()
	logger.Info().Msg("initializing cache")
	c = logger.WithContext(c)
	cache := infra.NewCacheClient(c, cfg.Cache)
	defer func() {
		logger.Info().Msg("closing cache")
		if err := cache.Close(); err != nil {
			err = fmt.Errorf("failed closing cache with error=%w", err)
			inOtel.RecordError(err, span)
			logger.Error().Err(err).Msg(err.Error())
			return
		}
		logger.Info().Msg("closed cache")
	}()
	logger.Info().Msg("initialized cache")

	checkoutService := newCheckoutService(pool, cache, cfg)

	interval := time.Duration(cfg.Checkout.SweepIntervalHours) * time.Hour
	if interval <= 0 {
		interval = 24 * time.Hour
	}
	logger = logger.With().Str(log.KeyProcess, "sweeping").Logger()
	logger.Info().Msgf("starting sweep loop with interval=%s", interval)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		c := logger.WithContext(c)
		if err := checkoutService.ChargeDueSubscriptions(c); err != nil {
			logger.Error().Err(err).Msg("failed charging due subscriptions")
		}
		if err := checkoutService.SweepExpired(c); err != nil {
			logger.Error().Err(err).Msg("failed sweeping expired carts")
		}

		select {
		case <-c.Done():
			logger.Info().Msg("received interruption signal shutting down")
			return
		case <-ticker.C:
		}
	}
}
