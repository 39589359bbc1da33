package controller

import (
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/rs/zerolog"

	"github.com/Alturino/hiicart/checkout/internal/otel"
	"github.com/Alturino/hiicart/checkout/internal/service"
	commonErrors "github.com/Alturino/hiicart/internal/errors"
	commonHttp "github.com/Alturino/hiicart/internal/http"
	"github.com/Alturino/hiicart/internal/log"
)

type NotificationController struct {
	service *service.CheckoutService
}

func AttachNotificationController(mux *mux.Router, service *service.CheckoutService) {
	controller := NotificationController{service: service}

	router := mux.PathPrefix("/notifications").Subrouter()
	router.HandleFunc("/{gateway}", controller.HandleNotification).Methods(http.MethodPost)
}

// HandleNotification is the callback endpoint gateways post to. Gateways
// retry on non-2xx responses, so receipt is acknowledged for anything that
// was understood, duplicates and notifications for unknown carts included.
// Only verification failures and unreadable payloads are rejected.
func (s *NotificationController) HandleNotification(w http.ResponseWriter, r *http.Request) {
	c, span := otel.Tracer.Start(r.Context(), "NotificationController HandleNotification")
	defer span.End()

	gatewayName := mux.Vars(r)["gateway"]
	logger := zerolog.Ctx(c).
		With().
		Str(log.KeyTag, "NotificationController HandleNotification").
		Str(log.KeyGateway, gatewayName).
		Logger()

	logger = logger.With().Str(log.KeyProcess, "reading notification body").Logger()
	logger.Info().Msg("reading notification body")
	raw, err := io.ReadAll(r.Body)
	if err != nil {
		err = fmt.Errorf("failed reading notification body with error=%w", err)
		commonErrors.HandleError(err, span)
		logger.Error().Err(err).Msg(err.Error())
		commonHttp.WriteJsonResponse(c, w, map[string]string{}, map[string]interface{}{
			"status":     "failed",
			"statusCode": http.StatusBadRequest,
			"message":    "notification body is unreadable",
		})
		return
	}
	logger.Info().Msg("read notification body")

	logger = logger.With().Str(log.KeyProcess, "handling notification").Logger()
	logger.Info().Msg("handling notification")
	c = logger.WithContext(c)
	err = s.service.HandleNotification(c, gatewayName, raw)
	switch {
	case err == nil:
	case errors.Is(err, commonErrors.ErrUnknownCart):
		// Acknowledged so the gateway stops retrying a notification we will
		// never be able to attach to a cart.
		logger.Warn().Err(err).Msg("notification for unknown cart, acknowledging")
	case errors.Is(err, commonErrors.ErrVerificationFailed):
		commonErrors.HandleError(err, span)
		logger.Error().Err(err).Msg(err.Error())
		commonHttp.WriteJsonResponse(c, w, map[string]string{}, map[string]interface{}{
			"status":     "failed",
			"statusCode": http.StatusForbidden,
			"message":    "notification verification failed",
		})
		return
	case errors.Is(err, commonErrors.ErrMalformedPayload),
		errors.Is(err, commonErrors.ErrUnknownGateway):
		commonErrors.HandleError(err, span)
		logger.Error().Err(err).Msg(err.Error())
		commonHttp.WriteJsonResponse(c, w, map[string]string{}, map[string]interface{}{
			"status":     "failed",
			"statusCode": http.StatusBadRequest,
			"message":    err.Error(),
		})
		return
	default:
		commonErrors.HandleError(err, span)
		logger.Error().Err(err).Msg(err.Error())
		commonHttp.WriteJsonResponse(c, w, map[string]string{}, map[string]interface{}{
			"status":     "failed",
			"statusCode": http.StatusInternalServerError,
			"message":    err.Error(),
		})
		return
	}
	logger.Info().Msg("handled notification")

	commonHttp.WriteJsonResponse(c, w, map[string]string{}, map[string]interface{}{
		"status":     "success",
		"statusCode": http.StatusOK,
		"message":    "notification accepted",
	})
}
