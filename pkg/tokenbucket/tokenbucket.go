package tokenbucket

import (
	"context"
	"fmt"
	"time"

	"github.com/snok/self-limiters/pkg/limiterevents"
	"github.com/snok/self-limiters/pkg/limiterobs"
	"github.com/snok/self-limiters/pkg/limiterstore"
)

const kind = "tokenbucket"

// Bucket is a distributed rate limiter: at most refillAmount actions are
// admitted per refillFrequency, coordinated entirely through the shared
// store via a token-bucket schedule script.
type Bucket struct {
	store *limiterstore.Client
	name  string

	capacity          int
	refillFrequencyMs int64
	refillAmount      int
	opts              *options

	key string
}

var _ limiterobs.Limiter = (*Bucket)(nil)

// New builds a Bucket named name. capacity and refillAmount must be >= 1;
// refillFrequency must be > 0.
func New(store *limiterstore.Client, name string, capacity int, refillFrequency time.Duration, refillAmount int, opts ...Option) (*Bucket, error) {
	if name == "" {
		return nil, fmt.Errorf("tokenbucket: name must not be empty")
	}
	if capacity < 1 {
		return nil, fmt.Errorf("tokenbucket: capacity must be >= 1, got %d", capacity)
	}
	if refillAmount < 1 {
		return nil, fmt.Errorf("tokenbucket: refillAmount must be >= 1, got %d", refillAmount)
	}
	if refillFrequency <= 0 {
		return nil, fmt.Errorf("tokenbucket: refillFrequency must be > 0")
	}

	cfg := defaultOptions()
	for _, opt := range opts {
		opt(cfg)
	}

	var metrics *limiterobs.Metrics
	if cfg.meterProvider != nil {
		m, err := limiterobs.NewMetrics(cfg.meterProvider)
		if err != nil {
			return nil, fmt.Errorf("tokenbucket: %w", err)
		}
		metrics = m
	}
	cfg.metrics = metrics

	return &Bucket{
		store:             store,
		name:              name,
		capacity:          capacity,
		refillFrequencyMs: refillFrequency.Milliseconds(),
		refillAmount:      refillAmount,
		opts:              cfg,
		key:               cfg.keyPrefix + name,
	}, nil
}

// Name returns the resource name this bucket rate-limits.
func (b *Bucket) Name() string { return b.name }

// Enter runs the schedule script to obtain this caller's assigned slot,
// then sleeps cooperatively until it arrives. There is no server-side
// release: the returned Acquisition's Exit is a no-op.
func (b *Bucket) Enter(ctx context.Context) (*limiterobs.Acquisition, error) {
	tracer := limiterobs.Tracer(b.opts.tracerProvider)
	ctx, span := limiterobs.StartSpan(ctx, tracer, "tokenbucket.Enter", b.name)
	defer span.End()

	start := time.Now()

	raw, err := b.store.ExecuteScript(ctx, getScheduleScript(), []string{b.key}, b.capacity, b.refillFrequencyMs, b.refillAmount)
	if err != nil {
		limiterobs.EndError(span, err)
		b.opts.metrics.RecordStoreError(ctx, kind, b.name)
		return nil, err
	}

	slotMs, err := toInt64(raw)
	if err != nil {
		wrapped := fmt.Errorf("tokenbucket: %w: %w", limiterstore.StoreError, err)
		limiterobs.EndError(span, wrapped)
		b.opts.metrics.RecordStoreError(ctx, kind, b.name)
		return nil, wrapped
	}

	nowMs := time.Now().UnixMilli()
	delay := time.Duration(slotMs-nowMs) * time.Millisecond
	if delay < 0 {
		delay = 0
	}

	if b.opts.maxSleep > 0 && delay > b.opts.maxSleep {
		b.opts.metrics.RecordRejected(ctx, kind, b.name)
		limiterobs.EndError(span, limiterobs.ErrMaxSleepExceeded)
		b.publish(ctx, limiterevents.OutcomeRejected, time.Since(start))
		return nil, limiterobs.ErrMaxSleepExceeded
	}

	if delay > 0 {
		timer := time.NewTimer(delay)
		defer timer.Stop()
		select {
		case <-timer.C:
		case <-ctx.Done():
			limiterobs.EndError(span, ctx.Err())
			return nil, ctx.Err()
		}
	}

	waited := time.Since(start)
	b.opts.metrics.RecordAcquired(ctx, kind, b.name, waited.Seconds())
	limiterobs.EndOK(span)
	b.publish(ctx, limiterevents.OutcomeAcquired, waited)

	return limiterobs.NewAcquisition(nil), nil
}

// publish fans out a lifecycle event if an event sink was configured via
// WithEventSink. A sink failure is logged and swallowed.
func (b *Bucket) publish(ctx context.Context, outcome limiterevents.Outcome, waited time.Duration) {
	if b.opts.eventSink == nil {
		return
	}
	ev := limiterevents.NewEvent(limiterevents.KindTokenBucket, b.name, outcome, waited, limiterobs.InstanceID(), time.Now())
	if err := b.opts.eventSink.Publish(ctx, ev); err != nil {
		b.opts.logger.WarnContext(ctx, "tokenbucket: event publish failed", limiterobs.AttrName(b.name), limiterobs.AttrError(err))
	}
}

// Do runs fn after Enter, which is the whole of the token bucket's
// contribution: Exit is a no-op, so there is nothing for Do to release.
func (b *Bucket) Do(ctx context.Context, fn func(context.Context) error) error {
	acq, err := b.Enter(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = acq.Exit(ctx) }()
	return fn(ctx)
}

// toInt64 normalizes the schedule script's integer reply, which go-redis
// may deliver as int64 depending on the client/pipeline path taken.
func toInt64(v any) (int64, error) {
	switch n := v.(type) {
	case int64:
		return n, nil
	case int:
		return int64(n), nil
	default:
		return 0, fmt.Errorf("unexpected schedule script reply type %T", v)
	}
}
