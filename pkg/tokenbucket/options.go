package tokenbucket

import (
	"time"

	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/snok/self-limiters/pkg/limiterevents"
	"github.com/snok/self-limiters/pkg/limiterobs"
)

// options are the factory-level settings for a Bucket, set at New time
// and immutable thereafter.
type options struct {
	keyPrefix      string
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
		maxSleep:  0, // 0 means never reject: always sleep until a slot opens
		logger:    limiterobs.NoopLogger(),
	}
}

// Option configures a Bucket at construction time.
type Option func(*options)

// WithKeyPrefix overrides the default "__self-limiters:" key prefix.
func WithKeyPrefix(prefix string) Option {
	return func(o *options) {
		if prefix != "" {
			o.keyPrefix = prefix
		}
	}
}

// WithMaxSleep bounds how long Enter will sleep waiting for its assigned
// slot: if the slot is further away than d, Enter returns
// ErrMaxSleepExceeded at once, without sleeping. The default, 0, never
// rejects.
func WithMaxSleep(d time.Duration) Option {
	return func(o *options) {
		if d >= 0 {
			o.maxSleep = d
		}
	}
}

// WithLogger sets the structured logger used for warnings.
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

// WithTracerProvider sets the tracer provider used for Enter spans. The
// global provider is used if unset.
func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(o *options) { o.tracerProvider = tp }
}

// WithEventSink publishes an acquired/rejected lifecycle event to sink
// on every Enter. Publishing is best-effort and never affects Enter's
// outcome.
func WithEventSink(sink limiterevents.Sink) Option {
	return func(o *options) { o.eventSink = sink }
}
