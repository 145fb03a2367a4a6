// Package observability предоставляет метрики и distributed tracing сервиса.
package observability

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/prometheus"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	semconv "go.opentelemetry.io/otel/semconv/v1.21.0"
)

// Metrics сборщик метрик сервиса ваучеров
type Metrics struct {
	commandsTotal   metric.Int64Counter
	commandDuration metric.Float64Histogram
	eventsTotal     metric.Int64Counter
}

// NewMetrics создает сборщик метрик
func NewMetrics() (*Metrics, error) {
	meter := otel.Meter("vouchers")

	commandsTotal, err := meter.Int64Counter(
		"voucher_commands_total",
		metric.WithDescription("Total number of voucher commands processed"),
	)
	if err != nil {
		return nil, err
	}

	commandDuration, err := meter.Float64Histogram(
		"voucher_command_duration_seconds",
		metric.WithDescription("Voucher command processing duration in seconds"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, err
	}

	eventsTotal, err := meter.Int64Counter(
		"voucher_events_total",
		metric.WithDescription("Total number of domain events appended"),
	)
	if err != nil {
		return nil, err
	}

	return &Metrics{
		commandsTotal:   commandsTotal,
		commandDuration: commandDuration,
		eventsTotal:     eventsTotal,
	}, nil
}

// RecordCommand записывает метрику выполненной команды
func (m *Metrics) RecordCommand(ctx context.Context, commandName string, duration time.Duration, success bool) {
	attrs := metric.WithAttributes(
		attribute.String("command", commandName),
		attribute.Bool("success", success),
	)
	m.commandsTotal.Add(ctx, 1, attrs)
	m.commandDuration.Record(ctx, duration.Seconds(), attrs)
}

// RecordEvent записывает метрику добавленного события
func (m *Metrics) RecordEvent(ctx context.Context, eventType string) {
	m.eventsTotal.Add(ctx, 1, metric.WithAttributes(attribute.String("event_type", eventType)))
}

// SetupMetrics настраивает экспорт метрик через Prometheus.
// Возвращенный provider регистрируется глобально; собранные метрики
// отдает promhttp на /metrics.
func SetupMetrics(serviceName string) (*sdkmetric.MeterProvider, error) {
	exporter, err := prometheus.New()
	if err != nil {
		return nil, fmt.Errorf("failed to create prometheus exporter: %w", err)
	}

	res, err := resource.New(context.Background(),
		resource.WithAttributes(semconv.ServiceNameKey.String(serviceName)),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create resource: %w", err)
	}

	provider := sdkmetric.NewMeterProvider(
		sdkmetric.WithReader(exporter),
		sdkmetric.WithResource(res),
	)
	otel.SetMeterProvider(provider)

	return provider, nil
}

// ShutdownMetrics корректно завершает работу метрик
func ShutdownMetrics(ctx context.Context, provider *sdkmetric.MeterProvider) error {
	if provider == nil {
		return nil
	}
	return provider.Shutdown(ctx)
}
