package otel

import (
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace"

	"github.com/Alturino/hiicart/internal/constants"
)

var Tracer = otel.Tracer(
	constants.APP_MAIN_HIICART,
	trace.WithInstrumentationAttributes(semconv.ServiceNameKey.String(constants.APP_MAIN_HIICART)),
)

func RecordError(err error, span trace.Span) {
	if err == nil {
		return
	}
	span.AddEvent(err.Error())
	span.SetStatus(codes.Error, err.Error())
	span.RecordError(err)
}
