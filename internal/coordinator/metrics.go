package coordinator

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/swissweather/swissweather/internal/weather"
)

const meterName = "github.com/swissweather/swissweather/internal/coordinator"

// Metrics holds the OpenTelemetry instruments for fetch cycles.
// A nil *Metrics records nothing.
type Metrics struct {
	fetchDuration       metric.Float64Histogram
	fetchTotal          metric.Int64Counter
	skippedTicks        metric.Int64Counter
	consecutiveFailures metric.Int64Gauge
}

// NewMetrics creates fetch cycle metrics on the global meter provider.
func NewMetrics() (*Metrics, error) {
	meter := otel.Meter(meterName)

	fetchDuration, err := meter.Float64Histogram(
		"coordinator.fetch.duration",
		metric.WithDescription("Duration of upstream fetch cycles in seconds"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, err
	}

	fetchTotal, err := meter.Int64Counter(
		"coordinator.fetch.total",
		metric.WithDescription("Total number of fetch cycles by outcome"),
		metric.WithUnit("{fetch}"),
	)
	if err != nil {
		return nil, err
	}

	skippedTicks, err := meter.Int64Counter(
		"coordinator.tick.skipped",
		metric.WithDescription("Ticks skipped because a fetch was in flight"),
		metric.WithUnit("{tick}"),
	)
	if err != nil {
		return nil, err
	}

	consecutiveFailures, err := meter.Int64Gauge(
		"coordinator.consecutive_failures",
		metric.WithDescription("Consecutive failed fetch cycles"),
		metric.WithUnit("{fetch}"),
	)
	if err != nil {
		return nil, err
	}

	return &Metrics{
		fetchDuration:       fetchDuration,
		fetchTotal:          fetchTotal,
		skippedTicks:        skippedTicks,
		consecutiveFailures: consecutiveFailures,
	}, nil
}

// RecordCycle records the outcome of one fetch cycle.
func (m *Metrics) RecordCycle(name string, outcome Outcome, fetchErr *weather.FetchError, duration time.Duration, failures int) {
	if m == nil {
		return
	}

	attrs := []attribute.KeyValue{
		attribute.String("coordinator.name", name),
		attribute.String("coordinator.outcome", string(outcome)),
	}
	if fetchErr != nil {
		attrs = append(attrs, attribute.String("coordinator.failure_reason", string(fetchErr.Reason)))
	}

	// The cycle context may already be cancelled.
	ctx := context.Background()
	m.fetchDuration.Record(ctx, duration.Seconds(), metric.WithAttributes(attrs...))
	m.fetchTotal.Add(ctx, 1, metric.WithAttributes(attrs...))
	m.consecutiveFailures.Record(ctx, int64(failures),
		metric.WithAttributes(attribute.String("coordinator.name", name)))
}

// RecordSkip records a tick dropped while a fetch was in flight.
func (m *Metrics) RecordSkip(name string) {
	if m == nil {
		return
	}
	m.skippedTicks.Add(context.Background(), 1,
		metric.WithAttributes(attribute.String("coordinator.name", name)))
}
