package cmd

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"path/filepath"
	"time"

	"github.com/gorilla/mux"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gorilla/mux/otelmux"

	"github.com/Alturino/hiicart/checkout/internal/controller"
	"github.com/Alturino/hiicart/checkout/internal/otel"
	"github.com/Alturino/hiicart/checkout/internal/service"
	"github.com/Alturino/hiicart/internal/config"
	"github.com/Alturino/hiicart/internal/constants"
	"github.com/Alturino/hiicart/internal/events"
	"github.com/Alturino/hiicart/internal/gateway"
	"github.com/Alturino/hiicart/internal/infra"
	"github.com/Alturino/hiicart/internal/log"
	"github.com/Alturino/hiicart/internal/middleware"
	inOtel "github.com/Alturino/hiicart/internal/otel"
	"github.com/Alturino/hiicart/internal/reconcile"
	"github.com/Alturino/hiicart/internal/store"
)

func RunCheckoutService(c context.Context) {
	c, span := otel.Tracer.Start(c, "RunCheckoutService")
	defer span.End()

	logger := log.InitLogger(filepath.Join("/var/log/", constants.APP_CHECKOUT_SERVICE+".log")).
		With().
		Str(log.KeyAppName, constants.APP_CHECKOUT_SERVICE).
		Str(log.KeyTag, "main RunCheckoutService").
		Logger()
	c = logger.WithContext(c)

	cfg := config.InitConfig(c, constants.APP_CHECKOUT_SERVICE)

	logger = logger.With().Str(log.KeyProcess, "initializing otel sdk").Logger()
	logger.Info().Msg("initializing otel sdk")
	c = logger.WithContext(c)
	shutdownFuncs, err := inOtel.InitOtelSdk(c, constants.APP_CHECKOUT_SERVICE, cfg.Otel)
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

	logger = logger.With().Str(log.KeyProcess, "initializing checkout service").Logger()
	logger.Info().Msg("initializing checkout service")
	checkoutService := newCheckoutService(pool, cache, cfg)
	logger.Info().Msg("initialized checkout service")

	logger = logger.With().Str(log.KeyProcess, "initializing router").Logger()
	logger.Info().Msg("initializing router")
	router := mux.NewRouter()
	router.Use(
		otelmux.Middleware(constants.APP_CHECKOUT_SERVICE),
		middleware.Logging,
		middleware.RecoverPanic,
	)
	controller.AttachCheckoutController(router, checkoutService)
	controller.AttachNotificationController(router, checkoutService)
	logger.Info().Msg("initialized router")

	logger = logger.With().Str(log.KeyProcess, "initializing server").Logger()
	logger.Info().Msg("initializing server")
	server := http.Server{
		Addr: fmt.Sprintf("%s:%d", cfg.Application.Host, cfg.Application.Port),
		BaseContext: func(net.Listener) context.Context {
			lg := logger.With().
				Reset().
				Timestamp().
				Caller().
				Stack().
				Str(log.KeyAppName, constants.APP_CHECKOUT_SERVICE).
				Logger()
			return lg.WithContext(c)
		},
		Handler:      router,
		ReadTimeout:  45 * time.Second,
		WriteTimeout: 45 * time.Second,
	}
	defer func() {
		logger.Info().Msg("shutting down server")
		if err := server.Shutdown(c); err != nil {
			err = fmt.Errorf("failed shutting down server with error=%w", err)
			inOtel.RecordError(err, span)
			logger.Error().Err(err).Msg(err.Error())
		}
		logger.Info().Msg("shutdown server")
	}()
	logger.Info().Msg("initialized server")

	go func() {
		logger := logger.With().Str(log.KeyProcess, "start server").Logger()
		logger.Info().Msgf("start listening request at %s", server.Addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			err = fmt.Errorf("encounter error=%w while running server", err)
			inOtel.RecordError(err, span)
			logger.Error().Err(err).Msg(err.Error())
			return
		}
		logger.Info().Msg("shutdown server")
	}()

	<-c.Done()
	logger = logger.With().Str(log.KeyProcess, "shutdown server").Logger()
	logger.Info().Msg("received interruption signal shutting down")
}

func newCheckoutService(
	pool *pgxpool.Pool,
	cache *redis.Client,
	cfg *config.Config,
) *service.CheckoutService {
	bus := events.NewBus(cache)
	cartStore := store.NewPostgresStore(pool)

	registry := gateway.NewRegistry()
	registry.Register(gateway.CompName, gateway.NewComp)

	var grace *time.Duration
	if cfg.Checkout.GracePeriodDays > 0 {
		period := time.Duration(cfg.Checkout.GracePeriodDays) * 24 * time.Hour
		grace = &period
	}
	reconciler := reconcile.NewReconciler(cartStore, bus, grace)
	return service.NewCheckoutService(cartStore, bus, registry, reconciler, cfg.Checkout, cfg.Gateways)
}
