package semaphore

import "time"

const (
	// DefaultKeyPrefix namespaces every key this package writes.
	DefaultKeyPrefix = "__self-limiters:"

	// DefaultTTL is refreshed on L(name) and E(name) by every release.
	// Kept configurable since the right value depends on how long a
	// caller expects a semaphore to go unused without being torn down.
	DefaultTTL = 30 * time.Second

	// existsSuffix names the existence marker relative to the slot list
	// key: E(name) = L(name) + existsSuffix.
	existsSuffix = "-exists"
)
