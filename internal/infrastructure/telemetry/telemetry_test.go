package telemetry

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestNewLogger(t *testing.T) {
	tests := []struct {
		level   string
		format  string
		want    zapcore.Level
		wantErr bool
	}{
		{"debug", "json", zapcore.DebugLevel, false},
		{"", "json", zapcore.InfoLevel, false},
		{"WARNING", "console", zapcore.WarnLevel, false},
		{"error", "console", zapcore.ErrorLevel, false},
		{"trace", "json", 0, true},
	}
	for _, tt := range tests {
		t.Run(tt.level+"/"+tt.format, func(t *testing.T) {
			logger, err := NewLogger(tt.level, tt.format)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.True(t, logger.Core().Enabled(tt.want))
			if tt.want > zapcore.DebugLevel {
				assert.False(t, logger.Core().Enabled(tt.want-1))
			}
		})
	}
}

func TestWithTrace(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	base := zap.New(core)

	WithTrace(context.Background(), base).Info("no span")

	tp := sdktrace.NewTracerProvider(sdktrace.WithSampler(sdktrace.AlwaysSample()))
	ctx, span := tp.Tracer("test").Start(context.Background(), "op")
	WithTrace(ctx, base).Info("with span")
	span.End()

	entries := logs.All()
	require.Len(t, entries, 2)
	assert.Empty(t, entries[0].ContextMap())

	fields := entries[1].ContextMap()
	assert.Equal(t, span.SpanContext().TraceID().String(), fields["trace_id"])
	assert.Equal(t, span.SpanContext().SpanID().String(), fields["span_id"])
	assert.Equal(t, true, fields["sampled"])
}

func TestEndSpan(t *testing.T) {
	recorder := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))
	tracer := tp.Tracer("test")

	_, clean := tracer.Start(context.Background(), "ok")
	EndSpan(clean, nil)

	_, failed := tracer.Start(context.Background(), "failed")
	AddEvent(failed, "samples.read")
	EndSpan(failed, errors.New("boom"))

	spans := recorder.Ended()
	require.Len(t, spans, 2)
	assert.Equal(t, codes.Unset, spans[0].Status().Code)
	assert.Equal(t, codes.Error, spans[1].Status().Code)
	assert.Equal(t, "boom", spans[1].Status().Description)
	require.Len(t, spans[1].Events(), 2)
	assert.Equal(t, "samples.read", spans[1].Events()[0].Name)
}

func TestInitializeOpenTelemetry_Disabled(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Enabled = false

	p, err := InitializeOpenTelemetry(context.Background(), cfg)
	require.NoError(t, err)
	assert.NotNil(t, p.TracerProvider)
	assert.NotNil(t, p.MeterProvider)
	assert.NoError(t, p.Shutdown(context.Background()))
}
