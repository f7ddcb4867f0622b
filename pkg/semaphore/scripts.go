package semaphore

import (
	"context"
	_ "embed"
	"sync"

	"github.com/redis/go-redis/v9"
)

//go:embed lua/create.lua
var createLuaSource string

var (
	createScriptOnce sync.Once
	createScript     *redis.Script
)

// getCreateScript returns the process-wide *redis.Script for the create
// operation. A single *redis.Script instance is shared across every
// Semaphore in the process so its SHA cache (maintained internally by
// go-redis) is populated once, not once per Semaphore value.
func getCreateScript() *redis.Script {
	createScriptOnce.Do(func() {
		createScript = redis.NewScript(createLuaSource)
	})
	return createScript
}

// WarmupScripts pre-loads the create script into the store's script
// cache via SCRIPT LOAD, so the first real Enter call doesn't pay for an
// EVALSHA miss. Optional: go-redis falls back to a full EVAL automatically
// on NOSCRIPT, so skipping this only costs one extra round trip on the
// very first call per store process.
func WarmupScripts(ctx context.Context, rdb redis.UniversalClient) error {
	return getCreateScript().Load(ctx, rdb).Err()
}
