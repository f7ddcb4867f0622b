package limiterobs

import (
	"context"
	"fmt"
	"strconv"

	"github.com/cespare/xxhash/v2"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const instrumentationName = "github.com/snok/self-limiters"

// Metrics holds the counters and histograms recorded around every
// acquisition, for both limiter kinds. One instance is shared by a
// semaphore or bucket's whole lifetime.
type Metrics struct {
	acquired     metric.Int64Counter
	rejected     metric.Int64Counter
	storeErrors  metric.Int64Counter
	waitSeconds  metric.Float64Histogram
	hashedLabels bool
}

// MetricsOption configures NewMetrics.
type MetricsOption func(*Metrics)

// WithHashedMetricLabels hashes the resource name into a short base-36 label
// instead of using it verbatim. Use this when resource names are generated
// dynamically (e.g. include a tenant or request ID) and would otherwise
// blow up label cardinality in the metrics backend.
func WithHashedMetricLabels() MetricsOption {
	return func(m *Metrics) { m.hashedLabels = true }
}

// NewMetrics registers the instruments on the given MeterProvider.
func NewMetrics(mp metric.MeterProvider, opts ...MetricsOption) (*Metrics, error) {
	m := &Metrics{}
	for _, opt := range opts {
		opt(m)
	}

	meter := mp.Meter(instrumentationName)

	var err error
	m.acquired, err = meter.Int64Counter(
		"self_limiters.acquired",
		metric.WithDescription("number of acquisitions granted"),
	)
	if err != nil {
		return nil, fmt.Errorf("limiterobs: create acquired counter: %w", err)
	}

	m.rejected, err = meter.Int64Counter(
		"self_limiters.rejected",
		metric.WithDescription("number of acquisitions that failed with MaxSleepExceeded"),
	)
	if err != nil {
		return nil, fmt.Errorf("limiterobs: create rejected counter: %w", err)
	}

	m.storeErrors, err = meter.Int64Counter(
		"self_limiters.store_errors",
		metric.WithDescription("number of acquisitions that failed with StoreError"),
	)
	if err != nil {
		return nil, fmt.Errorf("limiterobs: create store_errors counter: %w", err)
	}

	m.waitSeconds, err = meter.Float64Histogram(
		"self_limiters.wait_seconds",
		metric.WithDescription("wall-clock time spent inside Enter"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, fmt.Errorf("limiterobs: create wait_seconds histogram: %w", err)
	}

	return m, nil
}

func (m *Metrics) nameLabel(name string) string {
	if !m.hashedLabels {
		return name
	}
	return strconv.FormatUint(xxhash.Sum64String(name), 36)
}

// RecordAcquired records a successful acquisition.
func (m *Metrics) RecordAcquired(ctx context.Context, kind, name string, waitSeconds float64) {
	if m == nil {
		return
	}
	attrs := metric.WithAttributes(
		attribute.String("kind", kind),
		attribute.String("name", m.nameLabel(name)),
	)
	m.acquired.Add(ctx, 1, attrs)
	m.waitSeconds.Record(ctx, waitSeconds, attrs)
}

// RecordRejected records a MaxSleepExceeded outcome.
func (m *Metrics) RecordRejected(ctx context.Context, kind, name string) {
	if m == nil {
		return
	}
	m.rejected.Add(ctx, 1, metric.WithAttributes(
		attribute.String("kind", kind),
		attribute.String("name", m.nameLabel(name)),
	))
}

// RecordStoreError records a StoreError outcome.
func (m *Metrics) RecordStoreError(ctx context.Context, kind, name string) {
	if m == nil {
		return
	}
	m.storeErrors.Add(ctx, 1, metric.WithAttributes(
		attribute.String("kind", kind),
		attribute.String("name", m.nameLabel(name)),
	))
}
