// Copyright 2024 Potter Framework Contributors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package observability

import (
	"context"
	"fmt"
	"sync/atomic"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/baggage"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/exporters/jaeger"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/exporters/zipkin"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.21.0"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
)

const correlationIDKey = "X-Correlation-ID"

// TracerName имя tracer проектора
const TracerName = "course-catalog"

// Экспортеры трассировки
const (
	ExporterNone   = "none"
	ExporterStdout = "stdout"
	ExporterOTLP   = "otlp"
	ExporterJaeger = "jaeger"
	ExporterZipkin = "zipkin"
)

// TracingConfig секция tracing конфигурации и атрибуты сервиса для resource
type TracingConfig struct {
	Service      string
	Version      string
	Environment  string
	Exporter     string
	Endpoint     string
	SamplingRate float64
}

// Enabled сообщает, выбран ли экспортер
func (c TracingConfig) Enabled() bool {
	return c.Exporter != "" && c.Exporter != ExporterNone
}

// Tracing провайдер spans проектора. Без экспортера выдает noop tracer.
type Tracing struct {
	tracer   trace.Tracer
	provider *sdktrace.TracerProvider
	running  atomic.Bool
}

// NewTracing создает провайдер и регистрирует его глобально вместе с
// propagator для заголовков сообщений
func NewTracing(config TracingConfig) (*Tracing, error) {
	if !config.Enabled() {
		return &Tracing{tracer: noop.NewTracerProvider().Tracer(TracerName)}, nil
	}

	exporter, err := newExporter(config)
	if err != nil {
		return nil, fmt.Errorf("failed to create %s exporter: %w", config.Exporter, err)
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(resource.NewWithAttributes(semconv.SchemaURL,
			semconv.ServiceNameKey.String(config.Service),
			semconv.ServiceVersionKey.String(config.Version),
			semconv.DeploymentEnvironmentKey.String(config.Environment),
		)),
		// TraceIDRatioBased сам сводит долю >=1 и <=0 к always/never
		sdktrace.WithSampler(sdktrace.ParentBased(sdktrace.TraceIDRatioBased(config.SamplingRate))),
	)

	otel.SetTracerProvider(tp)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))

	return &Tracing{tracer: tp.Tracer(TracerName), provider: tp}, nil
}

func newExporter(config TracingConfig) (sdktrace.SpanExporter, error) {
	switch config.Exporter {
	case ExporterStdout:
		return stdouttrace.New(stdouttrace.WithPrettyPrint())
	case ExporterOTLP:
		return otlptrace.New(context.Background(), otlptracehttp.NewClient(
			otlptracehttp.WithEndpoint(config.Endpoint),
			otlptracehttp.WithInsecure(),
		))
	case ExporterJaeger:
		return jaeger.New(jaeger.WithCollectorEndpoint(jaeger.WithEndpoint(config.Endpoint)))
	case ExporterZipkin:
		return zipkin.New(config.Endpoint)
	default:
		return nil, fmt.Errorf("unknown trace exporter %q", config.Exporter)
	}
}

// Start отмечает компонент запущенным
func (t *Tracing) Start(ctx context.Context) error {
	t.running.Store(true)
	return nil
}

// Stop выгружает накопленные spans
func (t *Tracing) Stop(ctx context.Context) error {
	t.running.Store(false)
	if t.provider == nil {
		return nil
	}
	return t.provider.Shutdown(ctx)
}

func (t *Tracing) IsRunning() bool {
	return t.running.Load()
}

// Tracer возвращает tracer проектора
func (t *Tracing) Tracer() trace.Tracer {
	return t.tracer
}

// ExtractCorrelationID извлекает correlation ID из context
func ExtractCorrelationID(ctx context.Context) string {
	// Пытаемся извлечь из baggage
	b := baggage.FromContext(ctx)
	if member := b.Member(correlationIDKey); member.Key() == correlationIDKey {
		return member.Value()
	}

	// Используем trace ID как fallback
	span := trace.SpanFromContext(ctx)
	if span.SpanContext().TraceID().IsValid() {
		return span.SpanContext().TraceID().String()
	}

	return ""
}

// InjectCorrelationID добавляет correlation ID в context
func InjectCorrelationID(ctx context.Context, correlationID string) context.Context {
	if correlationID == "" {
		return ctx
	}
	member, err := baggage.NewMember(correlationIDKey, correlationID)
	if err != nil {
		// Если не удалось создать member, возвращаем исходный context
		return ctx
	}
	b, _ := baggage.FromContext(ctx).SetMember(member)
	return baggage.ContextWithBaggage(ctx, b)
}

// InjectMessageHeaders записывает trace context и baggage текущего ctx в заголовки сообщения
func InjectMessageHeaders(ctx context.Context, headers map[string]string) {
	otel.GetTextMapPropagator().Inject(ctx, propagation.MapCarrier(headers))
}

// ExtractMessageHeaders восстанавливает trace context из заголовков входящего сообщения
func ExtractMessageHeaders(ctx context.Context, headers map[string]string) context.Context {
	if len(headers) == 0 {
		return ctx
	}
	return otel.GetTextMapPropagator().Extract(ctx, propagation.MapCarrier(headers))
}

// TraceEvent обертка для обработки события с автоматической инструментацией
func TraceEvent(ctx context.Context, tracer trace.Tracer, eventType, eventID string, fn func(context.Context) error) error {
	ctx, span := tracer.Start(ctx, "event."+eventType, trace.WithSpanKind(trace.SpanKindConsumer))
	defer span.End()

	span.SetAttributes(
		attribute.String("event.type", eventType),
		attribute.String("event.id", eventID),
	)

	err := fn(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	return err
}

// TraceConsumer обертка для вызова одного потребителя события
func TraceConsumer(ctx context.Context, tracer trace.Tracer, consumer, eventType string, fn func(context.Context) (string, error)) error {
	ctx, span := tracer.Start(ctx, "consumer."+consumer)
	defer span.End()

	span.SetAttributes(
		attribute.String("consumer.name", consumer),
		attribute.String("event.type", eventType),
	)

	outcome, err := fn(ctx)
	span.SetAttributes(attribute.String("consumer.outcome", outcome))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	return err
}
