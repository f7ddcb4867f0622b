package limitermaint

import (
	"context"

	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"

	"github.com/snok/self-limiters/pkg/semaphore"
	"github.com/snok/self-limiters/pkg/tokenbucket"
)

// WarmupAll loads both limiter packages' Lua scripts into rdb's script
// cache concurrently, returning the first error encountered (if any)
// after every call has been attempted.
func WarmupAll(ctx context.Context, rdb redis.UniversalClient) error {
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return semaphore.WarmupScripts(gctx, rdb)
	})
	g.Go(func() error {
		return tokenbucket.WarmupScripts(gctx, rdb)
	})

	return g.Wait()
}
