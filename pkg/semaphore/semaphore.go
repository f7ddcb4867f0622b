package semaphore

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/snok/self-limiters/pkg/limiterevents"
	"github.com/snok/self-limiters/pkg/limiterobs"
	"github.com/snok/self-limiters/pkg/limiterstore"
)

const kind = "semaphore"

// Semaphore is a distributed concurrency limiter: at most Capacity
// callers may hold an acquisition at any instant, coordinated entirely
// through the shared store.
type Semaphore struct {
	store    *limiterstore.Client
	name     string
	capacity int
	opts     *options

	listKey   string
	existsKey string
}

var _ limiterobs.Limiter = (*Semaphore)(nil)

// New builds a Semaphore named name with the given capacity. capacity
// must be >= 1.
func New(store *limiterstore.Client, name string, capacity int, opts ...Option) (*Semaphore, error) {
	if name == "" {
		return nil, fmt.Errorf("semaphore: name must not be empty")
	}
	if capacity < 1 {
		return nil, fmt.Errorf("semaphore: capacity must be >= 1, got %d", capacity)
	}

	cfg := defaultOptions()
	for _, opt := range opts {
		opt(cfg)
	}

	var metrics *limiterobs.Metrics
	if cfg.meterProvider != nil {
		m, err := limiterobs.NewMetrics(cfg.meterProvider)
		if err != nil {
			return nil, fmt.Errorf("semaphore: %w", err)
		}
		metrics = m
	}
	cfg.metrics = metrics

	listKey := cfg.keyPrefix + name

	return &Semaphore{
		store:     store,
		name:      name,
		capacity:  capacity,
		opts:      cfg,
		listKey:   listKey,
		existsKey: listKey + existsSuffix,
	}, nil
}

// Name returns the resource name this semaphore coordinates.
func (s *Semaphore) Name() string { return s.name }

// Enter blocks until a slot is popped from the shared list, or the
// configured max sleep (WithMaxSleep; 0 = unbounded) elapses first. It
// never returns both a nil *Acquisition and a nil error.
func (s *Semaphore) Enter(ctx context.Context) (*limiterobs.Acquisition, error) {
	tracer := limiterobs.Tracer(s.opts.tracerProvider)
	ctx, span := limiterobs.StartSpan(ctx, tracer, "semaphore.Enter", s.name)
	defer span.End()

	start := time.Now()

	if _, err := s.store.ExecuteScript(ctx, getCreateScript(), []string{s.listKey, s.existsKey}, s.capacity); err != nil {
		limiterobs.EndError(span, err)
		s.opts.metrics.RecordStoreError(ctx, kind, s.name)
		return nil, err
	}

	_, ok, err := s.store.BLPop(ctx, s.opts.maxSleep, s.listKey)
	if err != nil {
		limiterobs.EndError(span, err)
		s.opts.metrics.RecordStoreError(ctx, kind, s.name)
		return nil, err
	}
	if !ok {
		s.opts.metrics.RecordRejected(ctx, kind, s.name)
		limiterobs.EndError(span, limiterobs.ErrMaxSleepExceeded)
		s.publish(ctx, limiterevents.OutcomeRejected, time.Since(start))
		return nil, limiterobs.ErrMaxSleepExceeded
	}

	waited := time.Since(start)
	s.opts.metrics.RecordAcquired(ctx, kind, s.name, waited.Seconds())
	limiterobs.EndOK(span)
	s.publish(ctx, limiterevents.OutcomeAcquired, waited)

	return limiterobs.NewAcquisition(s.release), nil
}

// publish fans out a lifecycle event if an event sink was configured via
// WithEventSink. It never returns an error: a sink failure is logged and
// swallowed, since event publishing must never affect an acquisition's
// outcome.
func (s *Semaphore) publish(ctx context.Context, outcome limiterevents.Outcome, waited time.Duration) {
	if s.opts.eventSink == nil {
		return
	}
	ev := limiterevents.NewEvent(limiterevents.KindSemaphore, s.name, outcome, waited, limiterobs.InstanceID(), time.Now())
	if err := s.opts.eventSink.Publish(ctx, ev); err != nil && s.opts.logger != nil {
		s.opts.logger.WarnContext(ctx, "semaphore: event publish failed", limiterobs.AttrName(s.name), limiterobs.AttrError(err))
	}
}

// release returns one slot and refreshes the TTL on both the slot list
// and the existence marker, as a single pipelined round trip.
func (s *Semaphore) release(ctx context.Context) error {
	tracer := limiterobs.Tracer(s.opts.tracerProvider)
	ctx, span := limiterobs.StartSpan(ctx, tracer, "semaphore.Exit", s.name)
	defer span.End()

	err := s.store.Pipeline(ctx, func(pipe redis.Pipeliner) {
		pipe.RPush(ctx, s.listKey, "1")
		pipe.Expire(ctx, s.listKey, s.opts.ttl)
		pipe.Expire(ctx, s.existsKey, s.opts.ttl)
	})
	if err != nil {
		limiterobs.EndError(span, err)
		if s.opts.logger != nil {
			s.opts.logger.ErrorContext(ctx, "semaphore: release failed", limiterobs.AttrName(s.name), limiterobs.AttrError(err))
		}
		return err
	}
	limiterobs.EndOK(span)
	s.publish(ctx, limiterevents.OutcomeReleased, 0)
	return nil
}

// Do runs fn between Enter and Exit, guaranteeing Exit runs on every
// return path, including a panic in fn (which is recovered, the slot
// released, then re-panicked).
func (s *Semaphore) Do(ctx context.Context, fn func(context.Context) error) (err error) {
	acq, err := s.Enter(ctx)
	if err != nil {
		return err
	}
	defer func() {
		if r := recover(); r != nil {
			_ = acq.Exit(ctx)
			panic(r)
		}
	}()
	fnErr := fn(ctx)
	if exitErr := acq.Exit(ctx); exitErr != nil && fnErr == nil {
		return exitErr
	}
	return fnErr
}

// Query reports the number of slots currently available, without
// consuming one. It is a plain LLEN; an uninitialized (or fully drained)
// list reads as zero available slots rather than an error.
func (s *Semaphore) Query(ctx context.Context) (available int, capacity int, err error) {
	n, err := s.store.LLen(ctx, s.listKey)
	if err != nil {
		return 0, s.capacity, err
	}
	return int(n), s.capacity, nil
}
