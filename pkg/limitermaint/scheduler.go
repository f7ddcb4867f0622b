package limitermaint

import (
	"context"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/robfig/cron/v3"

	"github.com/snok/self-limiters/pkg/limiterobs"
)

// Scheduler runs periodic maintenance jobs (script warm-up, TTL
// housekeeping) for a fleet of named resources against a single store.
type Scheduler struct {
	cron   *cron.Cron
	logger limiterobs.Logger

	mu      sync.Mutex
	started bool
}

// NewScheduler builds a Scheduler. logger may be nil, in which case job
// failures are silently dropped (the scheduler itself never returns
// errors to a caller — jobs run in the background by design).
func NewScheduler(logger limiterobs.Logger) *Scheduler {
	if logger == nil {
		logger = limiterobs.NoopLogger()
	}
	return &Scheduler{
		cron:   cron.New(cron.WithSeconds()),
		logger: logger,
	}
}

// AddWarmup schedules WarmupAll against rdb on the given cron spec
// (seconds-resolution, e.g. "@every 5m").
func (s *Scheduler) AddWarmup(spec string, rdb redis.UniversalClient) (cron.EntryID, error) {
	return s.cron.AddFunc(spec, func() {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := WarmupAll(ctx, rdb); err != nil {
			s.logger.ErrorContext(ctx, "limitermaint: warmup failed", limiterobs.AttrError(err))
		}
	})
}

// AddHousekeeping schedules a TTL refresh sweep over semaphoreListKeys:
// any key that still exists has its TTL renewed to ttl, preventing a
// pathologically idle-but-not-dead semaphore from self-healing away its
// queue state between acquisitions. Keys that no longer exist are left
// alone — that absence is the self-healing mechanism working as
// intended, not a fault to correct.
func (s *Scheduler) AddHousekeeping(spec string, rdb redis.UniversalClient, semaphoreListKeys []string, ttl time.Duration) (cron.EntryID, error) {
	return s.cron.AddFunc(spec, func() {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		pipe := rdb.Pipeline()
		for _, key := range semaphoreListKeys {
			pipe.Expire(ctx, key, ttl)
		}
		if _, err := pipe.Exec(ctx); err != nil {
			s.logger.ErrorContext(ctx, "limitermaint: housekeeping sweep failed", limiterobs.AttrError(err))
		}
	})
}

// Start begins running scheduled jobs in the background. Repeated calls
// are no-ops.
func (s *Scheduler) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.started {
		return
	}
	s.started = true
	s.cron.Start()
}

// Stop halts the scheduler and waits for any in-flight job to finish.
func (s *Scheduler) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
}
