package port

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"

	"github.com/shinji-kodama/portwatch/internal/model"
)

// MeterName is the instrumentation scope of the probe metrics.
const MeterName = "github.com/shinji-kodama/portwatch/internal/port"

// Probe result attribute values.
const (
	resultInUse = "in_use"
	resultFree  = "free"
	resultError = "error"
)

// Metrics records one data point per logical probe: a counter and a
// latency histogram, both tagged with the strategy and the result.
type Metrics struct {
	probes   metric.Int64Counter
	duration metric.Float64Histogram
}

// NewMetrics creates the probe instruments on meter.
func NewMetrics(meter metric.Meter) (*Metrics, error) {
	m := &Metrics{}

	var err error
	m.probes, err = meter.Int64Counter(
		"portwatch.probe.count",
		metric.WithDescription("Number of port probes by strategy and result"),
		metric.WithUnit("{probe}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create probe counter: %w", err)
	}

	m.duration, err = meter.Float64Histogram(
		"portwatch.probe.duration",
		metric.WithDescription("Port probe duration in milliseconds"),
		metric.WithUnit("ms"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create probe duration histogram: %w", err)
	}

	return m, nil
}

// NoopMetrics returns a Metrics that discards everything.
func NoopMetrics() *Metrics {
	// The no-op meter never fails to create instruments.
	m, _ := NewMetrics(noop.NewMeterProvider().Meter(MeterName))
	return m
}

func (m *Metrics) record(ctx context.Context, strategy model.Strategy, inUse bool, err error, elapsed time.Duration) {
	result := resultFree
	switch {
	case err != nil:
		result = resultError
	case inUse:
		result = resultInUse
	}

	attrs := metric.WithAttributes(
		attribute.String("strategy", strategy.String()),
		attribute.String("result", result),
	)
	m.probes.Add(ctx, 1, attrs)
	m.duration.Record(ctx, float64(elapsed)/float64(time.Millisecond), attrs)
}
