package otel

import (
	"go.opentelemetry.io/otel"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace"

	"github.com/Alturino/hiicart/internal/constants"
)

var Tracer = otel.Tracer(
	constants.APP_CHECKOUT_SERVICE,
	trace.WithInstrumentationAttributes(semconv.ServiceNameKey.String(constants.APP_CHECKOUT_SERVICE)),
)
