package telemetry

import (
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// RecordError records err on span and marks the span failed. A nil err is a no-op.
func RecordError(span trace.Span, err error, opts ...trace.EventOption) {
	if err != nil {
		span.RecordError(err, opts...)
		span.SetStatus(codes.Error, err.Error())
	}
}

// AddEvent adds an event to the span with attributes
func AddEvent(span trace.Span, name string, attrs ...attribute.KeyValue) {
	span.AddEvent(name, trace.WithAttributes(attrs...))
}

// EndSpan records err, if any, and ends the span. Use with a named error return:
//
//	defer func() { telemetry.EndSpan(span, err) }()
func EndSpan(span trace.Span, err error) {
	RecordError(span, err)
	span.End()
}
