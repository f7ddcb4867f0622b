package limiterstore

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sony/gobreaker/v2"
)

// isBreakerSuccess classifies redis.Nil (BLPOP's normal "nothing arrived
// within the timeout" reply, and the sentinel for an uninitialized key on
// read) and context cancellation/deadline as successes for breaker
// accounting. Neither reflects the store itself misbehaving, so a burst
// of callers legitimately timing out — or being canceled by their own
// max_sleep — must never trip the breaker and turn their MaxSleepExceeded
// into a StoreError.
func isBreakerSuccess(err error) bool {
	return err == nil ||
		errors.Is(err, redis.Nil) ||
		errors.Is(err, context.Canceled) ||
		errors.Is(err, context.DeadlineExceeded)
}

// Client is the shared-store adapter. The zero value is not usable; build
// one with New.
type Client struct {
	rdb     redis.UniversalClient
	breaker *gobreaker.CircuitBreaker[any]
}

// Option configures a Client.
type Option func(*clientOptions)

type clientOptions struct {
	breakerName        string
	breakerMaxRequests uint32
	breakerInterval    time.Duration
	breakerTimeout     time.Duration
	breakerTripAfter   uint32
}

func defaultClientOptions() *clientOptions {
	return &clientOptions{
		breakerName:        "self-limiters-store",
		breakerMaxRequests: 1,
		breakerInterval:    0, // never reset counts on a timer; only on state transitions
		breakerTimeout:     5 * time.Second,
		breakerTripAfter:   5,
	}
}

// WithBreakerTripAfter sets how many consecutive store failures open the
// circuit breaker before new calls start failing fast. Default 5.
func WithBreakerTripAfter(n uint32) Option {
	return func(o *clientOptions) { o.breakerTripAfter = n }
}

// WithBreakerRecovery sets how long the breaker stays open before allowing
// a single probe call through. Default 5s.
func WithBreakerRecovery(d time.Duration) Option {
	return func(o *clientOptions) { o.breakerTimeout = d }
}

// New builds a Client over rdb, an already-configured go-redis universal
// client (single node, sentinel, or cluster). The semaphore's create
// script takes two keys, L(name) and E(name); Redis Cluster accepts it
// only when both hash to the same slot, and key construction adds no
// hash tag.
func New(rdb redis.UniversalClient, opts ...Option) *Client {
	cfg := defaultClientOptions()
	for _, opt := range opts {
		opt(cfg)
	}

	settings := gobreaker.Settings{
		Name:        cfg.breakerName,
		MaxRequests: cfg.breakerMaxRequests,
		Interval:    cfg.breakerInterval,
		Timeout:     cfg.breakerTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= cfg.breakerTripAfter
		},
		IsSuccessful: isBreakerSuccess,
	}

	return &Client{
		rdb:     rdb,
		breaker: gobreaker.NewCircuitBreaker[any](settings),
	}
}

// Raw returns the underlying go-redis client, for callers that need
// operations this narrow adapter does not expose, such as Ping.
func (c *Client) Raw() redis.UniversalClient { return c.rdb }

// call runs fn through the circuit breaker and wraps any resulting error
// as a StoreError. gobreaker.ErrOpenState and gobreaker.ErrTooManyRequests
// are themselves wrapped as StoreError, so callers never need to special-
// case the breaker's own errors.
func call[T any](ctx context.Context, c *Client, op string, fn func(context.Context) (T, error)) (T, error) {
	result, err := c.breaker.Execute(func() (any, error) {
		return fn(ctx)
	})
	if err != nil {
		var zero T
		return zero, wrapStoreError(op, err)
	}
	// A nil result (Pipeline's) yields T's zero value.
	v, _ := result.(T)
	return v, nil
}

// ExecuteScript runs script atomically with the given keys and args,
// returning its raw reply. go-redis's *redis.Script already performs
// EVALSHA-then-EVAL-on-NOSCRIPT internally: load once, retry full body
// on NOSCRIPT, without this adapter re-implementing script caching.
func (c *Client) ExecuteScript(ctx context.Context, script *redis.Script, keys []string, args ...any) (any, error) {
	return call(ctx, c, "execute_script", func(ctx context.Context) (any, error) {
		return script.Run(ctx, c.rdb, keys, args...).Result()
	})
}

// BLPop blocks popping the head of key, up to timeout (0 = block
// indefinitely). It returns ok=false, nil error on timeout — the caller
// (pkg/semaphore) turns that into MaxSleepExceeded, never StoreError.
func (c *Client) BLPop(ctx context.Context, timeout time.Duration, key string) (value string, ok bool, err error) {
	res, err := call(ctx, c, "blpop", func(ctx context.Context) ([]string, error) {
		return c.rdb.BLPop(ctx, timeout, key).Result()
	})
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return "", false, nil
		}
		return "", false, err
	}
	if len(res) < 2 {
		return "", false, nil
	}
	return res[1], true, nil
}

// Pipeline runs fn against a pipeline and executes it, returning a
// StoreError if the pipeline's Exec call fails. fn should only queue
// commands; do not issue blocking calls inside it.
func (c *Client) Pipeline(ctx context.Context, fn func(pipe redis.Pipeliner)) error {
	_, err := call(ctx, c, "pipeline", func(ctx context.Context) (any, error) {
		pipe := c.rdb.Pipeline()
		fn(pipe)
		_, execErr := pipe.Exec(ctx)
		return nil, execErr
	})
	return err
}

// Time returns the store's current time. The token-bucket schedule script
// does not go through this method: it reads the server clock itself with
// TIME inside the script.
func (c *Client) Time(ctx context.Context) (time.Time, error) {
	return call(ctx, c, "time", func(ctx context.Context) (time.Time, error) {
		return c.rdb.Time(ctx).Result()
	})
}

// LLen returns the length of the list at key, used by pkg/semaphore's Query
// to report the number of currently available slots without consuming one.
func (c *Client) LLen(ctx context.Context, key string) (int64, error) {
	return call(ctx, c, "llen", func(ctx context.Context) (int64, error) {
		return c.rdb.LLen(ctx, key).Result()
	})
}

