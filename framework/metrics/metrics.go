// Package metrics предоставляет систему метрик на основе OpenTelemetry.
package metrics

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Исходы обработки события потребителем
const (
	OutcomeApplied = "applied"
	OutcomeMissing = "missing_target"
	OutcomeParked  = "parked"
	OutcomeFailed  = "failed"
	OutcomePanic   = "panic"
)

// Metrics сборщик метрик проектора
type Metrics struct {
	eventsReceived   metric.Int64Counter
	eventsDropped    metric.Int64Counter
	consumerHandled  metric.Int64Counter
	consumerDuration metric.Float64Histogram
	rowsCommitted    metric.Int64Counter
	eventsParked     metric.Int64UpDownCounter
	transportErrors  metric.Int64Counter
	repairs          metric.Int64Counter
}

// NewMetrics создает сборщик метрик на глобальном MeterProvider
func NewMetrics() (*Metrics, error) {
	return NewMetricsWithMeter(otel.Meter("course-catalog"))
}

// NewMetricsWithMeter создает сборщик метрик на указанном Meter
func NewMetricsWithMeter(meter metric.Meter) (*Metrics, error) {
	var (
		m   Metrics
		err error
	)

	if m.eventsReceived, err = meter.Int64Counter(
		"catalog_events_received_total",
		metric.WithDescription("Total number of events received from the bus"),
	); err != nil {
		return nil, err
	}

	if m.eventsDropped, err = meter.Int64Counter(
		"catalog_events_dropped_total",
		metric.WithDescription("Total number of events dropped without processing"),
	); err != nil {
		return nil, err
	}

	if m.consumerHandled, err = meter.Int64Counter(
		"catalog_consumer_handled_total",
		metric.WithDescription("Total number of consumer invocations by outcome"),
	); err != nil {
		return nil, err
	}

	if m.consumerDuration, err = meter.Float64Histogram(
		"catalog_consumer_duration_seconds",
		metric.WithDescription("Consumer processing duration in seconds"),
		metric.WithUnit("s"),
	); err != nil {
		return nil, err
	}

	if m.rowsCommitted, err = meter.Int64Counter(
		"catalog_rows_committed_total",
		metric.WithDescription("Total number of read-model rows written"),
	); err != nil {
		return nil, err
	}

	if m.eventsParked, err = meter.Int64UpDownCounter(
		"catalog_events_parked",
		metric.WithDescription("Number of events waiting in the parking lot"),
	); err != nil {
		return nil, err
	}

	if m.transportErrors, err = meter.Int64Counter(
		"catalog_transport_errors_total",
		metric.WithDescription("Total number of message bus errors"),
	); err != nil {
		return nil, err
	}

	if m.repairs, err = meter.Int64Counter(
		"catalog_repairs_total",
		metric.WithDescription("Total number of read-model rows fixed by reconciliation"),
	); err != nil {
		return nil, err
	}

	return &m, nil
}

// RecordReceived записывает получение события
func (m *Metrics) RecordReceived(ctx context.Context, eventType string) {
	if m == nil {
		return
	}
	m.eventsReceived.Add(ctx, 1, metric.WithAttributes(attribute.String("event", eventType)))
}

// RecordDropped записывает событие, отброшенное по причине reason
func (m *Metrics) RecordDropped(ctx context.Context, eventType, reason string) {
	if m == nil {
		return
	}
	m.eventsDropped.Add(ctx, 1, metric.WithAttributes(
		attribute.String("event", eventType),
		attribute.String("reason", reason),
	))
}

// RecordConsumer записывает вызов потребителя
func (m *Metrics) RecordConsumer(ctx context.Context, consumer, eventType, outcome string, duration time.Duration, rows int) {
	if m == nil {
		return
	}
	attrs := metric.WithAttributes(
		attribute.String("consumer", consumer),
		attribute.String("event", eventType),
		attribute.String("outcome", outcome),
	)
	m.consumerHandled.Add(ctx, 1, attrs)
	m.consumerDuration.Record(ctx, duration.Seconds(), attrs)
	m.RecordRows(ctx, consumer, rows)
}

// RecordRows записывает число зафиксированных строк
func (m *Metrics) RecordRows(ctx context.Context, consumer string, rows int) {
	if m == nil || rows <= 0 {
		return
	}
	m.rowsCommitted.Add(ctx, int64(rows), metric.WithAttributes(attribute.String("consumer", consumer)))
}

// RecordParked изменяет число событий в parking lot
func (m *Metrics) RecordParked(ctx context.Context, delta int) {
	if m == nil {
		return
	}
	m.eventsParked.Add(ctx, int64(delta))
}

// RecordTransport записывает метрику транспорта
func (m *Metrics) RecordTransport(ctx context.Context, transportName string, duration time.Duration, success bool) {
	if m == nil || success {
		return
	}
	m.transportErrors.Add(ctx, 1, metric.WithAttributes(attribute.String("transport", transportName)))
}

// RecordRepair записывает исправленную строку
func (m *Metrics) RecordRepair(ctx context.Context, collection string) {
	if m == nil {
		return
	}
	m.repairs.Add(ctx, 1, metric.WithAttributes(attribute.String("collection", collection)))
}
