package observability

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"
)

func TestMessageHeaders_CarryBaggage(t *testing.T) {
	prev := otel.GetTextMapPropagator()
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))
	t.Cleanup(func() { otel.SetTextMapPropagator(prev) })

	headers := map[string]string{"event_type": "CourseCreated"}
	InjectMessageHeaders(InjectCorrelationID(context.Background(), "corr-7"), headers)
	require.Contains(t, headers, "baggage")

	ctx := ExtractMessageHeaders(context.Background(), headers)
	assert.Equal(t, "corr-7", ExtractCorrelationID(ctx))
}

func TestNewTracing_Disabled(t *testing.T) {
	for _, exporter := range []string{"", ExporterNone} {
		tr, err := NewTracing(TracingConfig{Exporter: exporter})
		require.NoError(t, err)
		require.NotNil(t, tr.Tracer())
		_, span := tr.Tracer().Start(context.Background(), "x")
		assert.False(t, span.SpanContext().IsSampled())
		span.End()

		require.NoError(t, tr.Start(context.Background()))
		assert.True(t, tr.IsRunning())
		require.NoError(t, tr.Stop(context.Background()))
		assert.False(t, tr.IsRunning())
	}
}

func TestNewTracing_UnknownExporter(t *testing.T) {
	cfg := TracingConfig{Service: "svc", Exporter: "carrier-pigeon"}
	assert.True(t, cfg.Enabled())
	_, err := NewTracing(cfg)
	assert.Error(t, err)
}
