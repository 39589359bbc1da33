package controller

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/rs/zerolog"

	"github.com/Alturino/hiicart/checkout/internal/otel"
	"github.com/Alturino/hiicart/checkout/internal/service"
	"github.com/Alturino/hiicart/checkout/pkg/request"
	"github.com/Alturino/hiicart/checkout/pkg/response"
	commonErrors "github.com/Alturino/hiicart/internal/errors"
	commonHttp "github.com/Alturino/hiicart/internal/http"
	"github.com/Alturino/hiicart/internal/log"
)

type CheckoutController struct {
	service *service.CheckoutService
}

func AttachCheckoutController(mux *mux.Router, service *service.CheckoutService) {
	controller := CheckoutController{service: service}

	router := mux.PathPrefix("/carts").Subrouter()
	router.HandleFunc("", controller.CreateCart).Methods(http.MethodPost)
	router.HandleFunc("/{cartId}", controller.FindCart).Methods(http.MethodGet)
	router.HandleFunc("/{cartId}/submit", controller.SubmitCart).Methods(http.MethodPost)
	router.HandleFunc("/{cartId}/clone", controller.CloneCart).Methods(http.MethodPost)
	router.HandleFunc("/{cartId}/cancel", controller.CancelRecurring).Methods(http.MethodPost)
}

func (s *CheckoutController) CreateCart(w http.ResponseWriter, r *http.Request) {
	c, span := otel.Tracer.Start(r.Context(), "CheckoutController CreateCart")
	defer span.End()

	logger := zerolog.Ctx(c).
		With().
		Str(log.KeyTag, "CheckoutController CreateCart").
		Logger()

	logger = logger.With().Str(log.KeyProcess, "decoding request body").Logger()
	logger.Info().Msg("decoding request body")
	param := request.CreateCart{}
	err := json.NewDecoder(r.Body).Decode(&param)
	if err != nil {
		err = fmt.Errorf("failed decoding request body with error=%w", err)
		commonErrors.HandleError(err, span)
		logger.Error().Err(err).Msg(err.Error())
		commonHttp.WriteJsonResponse(c, w, map[string]string{}, map[string]interface{}{
			"status":     "failed",
			"statusCode": http.StatusBadRequest,
			"message":    "request body is invalid",
		})
		return
	}
	logger.Info().Msg("decoded request body")

	logger = logger.With().Str(log.KeyProcess, "validating request body").Logger()
	logger.Info().Msg("validating request body")
	validate := validator.New(validator.WithRequiredStructEnabled())
	err = validate.StructCtx(c, param)
	if err != nil {
		err = fmt.Errorf("failed validating request body with error=%w", err)
		commonErrors.HandleError(err, span)
		logger.Error().Err(err).Msg(err.Error())
		commonHttp.WriteJsonResponse(c, w, map[string]string{}, map[string]interface{}{
			"status":     "failed",
			"statusCode": http.StatusBadRequest,
			"message":    "request body is invalid",
		})
		return
	}
	logger.Info().Msg("validated request body")

	logger = logger.With().Str(log.KeyProcess, "creating cart").Logger()
	logger.Info().Msg("creating cart")
	c = logger.WithContext(c)
	crt, err := s.service.CreateCart(c, param)
	if err != nil {
		err = fmt.Errorf("failed creating cart with error=%w", err)
		commonErrors.HandleError(err, span)
		logger.Error().Err(err).Msg(err.Error())
		commonHttp.WriteJsonResponse(c, w, map[string]string{}, map[string]interface{}{
			"status":     "failed",
			"statusCode": http.StatusInternalServerError,
			"message":    err.Error(),
		})
		return
	}
	logger.Info().Str(log.KeyCartID, crt.ID.String()).Msg("created cart")

	commonHttp.WriteJsonResponse(c, w, map[string]string{}, map[string]interface{}{
		"status":     "success",
		"statusCode": http.StatusCreated,
		"message":    "cart created",
		"data": map[string]interface{}{
			"cart": response.FromCart(crt),
		},
	})
}

func (s *CheckoutController) FindCart(w http.ResponseWriter, r *http.Request) {
	c, span := otel.Tracer.Start(r.Context(), "CheckoutController FindCart")
	defer span.End()

	logger := zerolog.Ctx(c).
		With().
		Str(log.KeyTag, "CheckoutController FindCart").
		Logger()

	logger = logger.With().Str(log.KeyProcess, "validating cartId").Logger()
	logger.Info().Msg("validating cartId")
	cartId, err := uuid.Parse(mux.Vars(r)["cartId"])
	if err != nil {
		err = fmt.Errorf("failed validating cartId with error=%w", err)
		commonErrors.HandleError(err, span)
		logger.Error().Err(err).Msg(err.Error())
		commonHttp.WriteJsonResponse(c, w, map[string]string{}, map[string]interface{}{
			"status":     "failed",
			"statusCode": http.StatusBadRequest,
			"message":    err.Error(),
		})
		return
	}
	logger = logger.With().Str(log.KeyCartID, cartId.String()).Logger()
	logger.Info().Msg("validated cartId")

	logger = logger.With().Str(log.KeyProcess, "finding cart").Logger()
	logger.Info().Msg("finding cart")
	c = logger.WithContext(c)
	crt, err := s.service.FindCart(c, cartId)
	if err != nil {
		commonErrors.HandleError(err, span)
		logger.Error().Err(err).Msg(err.Error())
		commonHttp.WriteJsonResponse(c, w, map[string]string{}, map[string]interface{}{
			"status":     "failed",
			"statusCode": http.StatusNotFound,
			"message":    fmt.Sprintf("cart with id=%s not found", cartId),
		})
		return
	}
	logger.Info().Msg("found cart")

	commonHttp.WriteJsonResponse(c, w, map[string]string{}, map[string]interface{}{
		"status":     "success",
		"statusCode": http.StatusOK,
		"message":    "found cart",
		"data": map[string]interface{}{
			"cart": response.FromCart(crt),
		},
	})
}

func (s *CheckoutController) SubmitCart(w http.ResponseWriter, r *http.Request) {
	c, span := otel.Tracer.Start(r.Context(), "CheckoutController SubmitCart")
	defer span.End()

	logger := zerolog.Ctx(c).
		With().
		Str(log.KeyTag, "CheckoutController SubmitCart").
		Logger()

	logger = logger.With().Str(log.KeyProcess, "validating cartId").Logger()
	logger.Info().Msg("validating cartId")
	cartId, err := uuid.Parse(mux.Vars(r)["cartId"])
	if err != nil {
		err = fmt.Errorf("failed validating cartId with error=%w", err)
		commonErrors.HandleError(err, span)
		logger.Error().Err(err).Msg(err.Error())
		commonHttp.WriteJsonResponse(c, w, map[string]string{}, map[string]interface{}{
			"status":     "failed",
			"statusCode": http.StatusBadRequest,
			"message":    err.Error(),
		})
		return
	}
	logger = logger.With().Str(log.KeyCartID, cartId.String()).Logger()
	logger.Info().Msg("validated cartId")

	logger = logger.With().Str(log.KeyProcess, "decoding request body").Logger()
	logger.Info().Msg("decoding request body")
	param := request.SubmitCart{}
	err = json.NewDecoder(r.Body).Decode(&param)
	if err != nil {
		err = fmt.Errorf("failed decoding request body with error=%w", err)
		commonErrors.HandleError(err, span)
		logger.Error().Err(err).Msg(err.Error())
		commonHttp.WriteJsonResponse(c, w, map[string]string{}, map[string]interface{}{
			"status":     "failed",
			"statusCode": http.StatusBadRequest,
			"message":    "request body is invalid",
		})
		return
	}
	logger.Info().Msg("decoded request body")

	logger = logger.With().Str(log.KeyProcess, "validating request body").Logger()
	logger.Info().Msg("validating request body")
	validate := validator.New(validator.WithRequiredStructEnabled())
	err = validate.StructCtx(c, param)
	if err != nil {
		err = fmt.Errorf("failed validating request body with error=%w", err)
		commonErrors.HandleError(err, span)
		logger.Error().Err(err).Msg(err.Error())
		commonHttp.WriteJsonResponse(c, w, map[string]string{}, map[string]interface{}{
			"status":     "failed",
			"statusCode": http.StatusBadRequest,
			"message":    "request body is invalid",
		})
		return
	}
	logger.Info().Msg("validated request body")

	logger = logger.With().
		Str(log.KeyProcess, "submitting cart").
		Str(log.KeyGateway, param.Gateway).
		Logger()
	logger.Info().Msg("submitting cart")
	c = logger.WithContext(c)
	crt, result, err := s.service.SubmitCart(c, cartId, param)
	if err != nil {
		commonErrors.HandleError(err, span)
		logger.Error().Err(err).Msg(err.Error())
		statusCode := http.StatusInternalServerError
		switch {
		case errors.Is(err, commonErrors.ErrUnknownCart):
			statusCode = http.StatusNotFound
		case errors.Is(err, commonErrors.ErrUnknownGateway),
			errors.Is(err, commonErrors.ErrInvalidTransition):
			statusCode = http.StatusBadRequest
		}
		commonHttp.WriteJsonResponse(c, w, map[string]string{}, map[string]interface{}{
			"status":     "failed",
			"statusCode": statusCode,
			"message":    err.Error(),
		})
		return
	}
	logger.Info().Str(log.KeyCartState, string(crt.State)).Msg("submitted cart")

	commonHttp.WriteJsonResponse(c, w, map[string]string{}, map[string]interface{}{
		"status":     "success",
		"statusCode": http.StatusOK,
		"message":    "cart submitted",
		"data": map[string]interface{}{
			"cart":   response.FromCart(crt),
			"submit": result,
		},
	})
}

func (s *CheckoutController) CloneCart(w http.ResponseWriter, r *http.Request) {
	c, span := otel.Tracer.Start(r.Context(), "CheckoutController CloneCart")
	defer span.End()

	logger := zerolog.Ctx(c).
		With().
		Str(log.KeyTag, "CheckoutController CloneCart").
		Logger()

	logger = logger.With().Str(log.KeyProcess, "validating cartId").Logger()
	logger.Info().Msg("validating cartId")
	cartId, err := uuid.Parse(mux.Vars(r)["cartId"])
	if err != nil {
		err = fmt.Errorf("failed validating cartId with error=%w", err)
		commonErrors.HandleError(err, span)
		logger.Error().Err(err).Msg(err.Error())
		commonHttp.WriteJsonResponse(c, w, map[string]string{}, map[string]interface{}{
			"status":     "failed",
			"statusCode": http.StatusBadRequest,
			"message":    err.Error(),
		})
		return
	}
	logger = logger.With().Str(log.KeyCartID, cartId.String()).Logger()
	logger.Info().Msg("validated cartId")

	logger = logger.With().Str(log.KeyProcess, "cloning cart").Logger()
	logger.Info().Msg("cloning cart")
	c = logger.WithContext(c)
	dupe, err := s.service.CloneCart(c, cartId)
	if err != nil {
		commonErrors.HandleError(err, span)
		logger.Error().Err(err).Msg(err.Error())
		statusCode := http.StatusInternalServerError
		if errors.Is(err, commonErrors.ErrUnknownCart) {
			statusCode = http.StatusNotFound
		}
		commonHttp.WriteJsonResponse(c, w, map[string]string{}, map[string]interface{}{
			"status":     "failed",
			"statusCode": statusCode,
			"message":    err.Error(),
		})
		return
	}
	logger.Info().Str(log.KeyCartID, dupe.ID.String()).Msg("cloned cart")

	commonHttp.WriteJsonResponse(c, w, map[string]string{}, map[string]interface{}{
		"status":     "success",
		"statusCode": http.StatusCreated,
		"message":    "cart cloned",
		"data": map[string]interface{}{
			"cart": response.FromCart(dupe),
		},
	})
}

func (s *CheckoutController) CancelRecurring(w http.ResponseWriter, r *http.Request) {
	c, span := otel.Tracer.Start(r.Context(), "CheckoutController CancelRecurring")
	defer span.End()

	logger := zerolog.Ctx(c).
		With().
		Str(log.KeyTag, "CheckoutController CancelRecurring").
		Logger()

	logger = logger.With().Str(log.KeyProcess, "validating cartId").Logger()
	logger.Info().Msg("validating cartId")
	cartId, err := uuid.Parse(mux.Vars(r)["cartId"])
	if err != nil {
		err = fmt.Errorf("failed validating cartId with error=%w", err)
		commonErrors.HandleError(err, span)
		logger.Error().Err(err).Msg(err.Error())
		commonHttp.WriteJsonResponse(c, w, map[string]string{}, map[string]interface{}{
			"status":     "failed",
			"statusCode": http.StatusBadRequest,
			"message":    err.Error(),
		})
		return
	}
	logger = logger.With().Str(log.KeyCartID, cartId.String()).Logger()
	logger.Info().Msg("validated cartId")

	logger = logger.With().Str(log.KeyProcess, "decoding request body").Logger()
	logger.Info().Msg("decoding request body")
	param := request.CancelRecurring{}
	if r.Body != nil && r.ContentLength != 0 {
		if err = json.NewDecoder(r.Body).Decode(&param); err != nil {
			err = fmt.Errorf("failed decoding request body with error=%w", err)
			commonErrors.HandleError(err, span)
			logger.Error().Err(err).Msg(err.Error())
			commonHttp.WriteJsonResponse(c, w, map[string]string{}, map[string]interface{}{
				"status":     "failed",
				"statusCode": http.StatusBadRequest,
				"message":    "request body is invalid",
			})
			return
		}
	}
	logger.Info().Msg("decoded request body")

	logger = logger.With().Str(log.KeyProcess, "cancelling recurring").Logger()
	logger.Info().Msg("cancelling recurring")
	c = logger.WithContext(c)
	crt, err := s.service.CancelRecurring(c, cartId, param)
	if err != nil {
		commonErrors.HandleError(err, span)
		logger.Error().Err(err).Msg(err.Error())
		statusCode := http.StatusInternalServerError
		switch {
		case errors.Is(err, commonErrors.ErrUnknownCart):
			statusCode = http.StatusNotFound
		case errors.Is(err, commonErrors.ErrCartNotSubmitted),
			errors.Is(err, commonErrors.ErrInvalidTransition):
			statusCode = http.StatusBadRequest
		}
		commonHttp.WriteJsonResponse(c, w, map[string]string{}, map[string]interface{}{
			"status":     "failed",
			"statusCode": statusCode,
			"message":    err.Error(),
		})
		return
	}
	logger.Info().Str(log.KeyCartState, string(crt.State)).Msg("cancelled recurring")

	commonHttp.WriteJsonResponse(c, w, map[string]string{}, map[string]interface{}{
		"status":     "success",
		"statusCode": http.StatusOK,
		"message":    "recurring cancelled",
		"data": map[string]interface{}{
			"cart": response.FromCart(crt),
		},
	})
}
