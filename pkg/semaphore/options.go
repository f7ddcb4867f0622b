package semaphore

import (
	"time"

	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/snok/self-limiters/pkg/limiterevents"
	"github.com/snok/self-limiters/pkg/limiterobs"
)

// options are the factory-level settings for a Semaphore, set at New time
// and immutable thereafter.
type options struct {
	keyPrefix      string
	ttl            time.Duration
	maxSleep       time.Duration
	logger         limiterobs.Logger
	meterProvider  metric.MeterProvider
	tracerProvider trace.TracerProvider
	metrics        *limiterobs.Metrics
	eventSink      limiterevents.Sink
}

func defaultOptions() *options {
	return &options{
		keyPrefix: DefaultKeyPrefix,
		ttl:       DefaultTTL,
		maxSleep:  0, // block indefinitely unless overridden
		logger:    limiterobs.NoopLogger(),
	}
}

// Option configures a Semaphore at construction time.
type Option func(*options)

// WithKeyPrefix overrides the default "__self-limiters:" key prefix.
func WithKeyPrefix(prefix string) Option {
	return func(o *options) {
		if prefix != "" {
			o.keyPrefix = prefix
		}
	}
}

// WithTTL overrides the default 30s TTL refreshed on every release.
func WithTTL(ttl time.Duration) Option {
	return func(o *options) {
		if ttl > 0 {
			o.ttl = ttl
		}
	}
}

// WithMaxSleep bounds how long Enter will block waiting for a slot before
// returning ErrMaxSleepExceeded. The default, 0, blocks indefinitely (no
// bound), matching redis BLPOP's own timeout=0 semantics.
func WithMaxSleep(d time.Duration) Option {
	return func(o *options) {
		if d >= 0 {
			o.maxSleep = d
		}
	}
}

// WithLogger sets the structured logger used for failed releases and
// failed event publishes.
func WithLogger(logger limiterobs.Logger) Option {
	return func(o *options) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// WithMeterProvider enables metrics, registered against mp.
func WithMeterProvider(mp metric.MeterProvider) Option {
	return func(o *options) { o.meterProvider = mp }
}

// WithTracerProvider sets the tracer provider used for Enter/Exit spans.
// The global provider is used if unset.
func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(o *options) { o.tracerProvider = tp }
}

// WithEventSink publishes an acquired/rejected/released lifecycle event
// to sink on every Enter and release. Publishing is best-effort: a sink
// failure is logged, never surfaced as StoreError or MaxSleepExceeded.
func WithEventSink(sink limiterevents.Sink) Option {
	return func(o *options) { o.eventSink = sink }
}
