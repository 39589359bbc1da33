package errors

import (
	"errors"

	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

var (
	ErrInvalidTransition   = errors.New("invalid cart state transition")
	ErrUnknownGateway      = errors.New("unknown gateway")
	ErrUnknownCart         = errors.New("unknown cart")
	ErrVerificationFailed  = errors.New("notification verification failed")
	ErrMalformedPayload    = errors.New("malformed notification payload")
	ErrCartNotSubmitted    = errors.New("cart has not been submitted to a gateway")
	ErrNoRecurringLineItem = errors.New("cart has no recurring line items")
)

func HandleError(err error, span trace.Span) {
	if err == nil {
		return
	}
	span.AddEvent(err.Error())
	span.SetStatus(codes.Error, err.Error())
	span.RecordError(err)
}
