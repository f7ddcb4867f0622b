package tokenbucket

import (
	"context"
	_ "embed"
	"sync"

	"github.com/redis/go-redis/v9"
)

//go:embed lua/schedule.lua
var scheduleLuaSource string

var (
	scheduleScriptOnce sync.Once
	scheduleScript     *redis.Script
)

// getScheduleScript returns the process-wide *redis.Script for the
// schedule operation, shared across every Bucket so its SHA cache is
// populated once per process.
func getScheduleScript() *redis.Script {
	scheduleScriptOnce.Do(func() {
		scheduleScript = redis.NewScript(scheduleLuaSource)
	})
	return scheduleScript
}

// WarmupScripts pre-loads the schedule script into the store's script
// cache via SCRIPT LOAD.
func WarmupScripts(ctx context.Context, rdb redis.UniversalClient) error {
	return getScheduleScript().Load(ctx, rdb).Err()
}
