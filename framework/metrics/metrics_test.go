package metrics

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
)

func collect(t *testing.T, reader *sdkmetric.ManualReader) map[string]metricdata.Metrics {
	t.Helper()
	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(context.Background(), &rm))

	out := make(map[string]metricdata.Metrics)
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			out[m.Name] = m
		}
	}
	return out
}

func sumOf(t *testing.T, m metricdata.Metrics) int64 {
	t.Helper()
	sum, ok := m.Data.(metricdata.Sum[int64])
	require.True(t, ok, "metric %s is not an int64 sum", m.Name)
	var total int64
	for _, dp := range sum.DataPoints {
		total += dp.Value
	}
	return total
}

func TestMetrics_RecordConsumer(t *testing.T) {
	reader := sdkmetric.NewManualReader()
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	m, err := NewMetricsWithMeter(provider.Meter("test"))
	require.NoError(t, err)

	ctx := context.Background()
	m.RecordReceived(ctx, "LessonCreated")
	m.RecordConsumer(ctx, "course-stats", "LessonCreated", OutcomeApplied, 5*time.Millisecond, 2)
	m.RecordConsumer(ctx, "lesson", "LessonCreated", OutcomeFailed, time.Millisecond, 0)
	m.RecordParked(ctx, 1)

	got := collect(t, reader)
	assert.Equal(t, int64(1), sumOf(t, got["catalog_events_received_total"]))
	assert.Equal(t, int64(2), sumOf(t, got["catalog_consumer_handled_total"]))
	assert.Equal(t, int64(2), sumOf(t, got["catalog_rows_committed_total"]))
	assert.Equal(t, int64(1), sumOf(t, got["catalog_events_parked"]))
}

func TestMetrics_NilIsNoop(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.RecordReceived(context.Background(), "CourseCreated")
		m.RecordDropped(context.Background(), "CourseCreated", "malformed")
	})
}
