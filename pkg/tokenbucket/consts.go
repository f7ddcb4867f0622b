package tokenbucket

const (
	// DefaultKeyPrefix namespaces every key this package writes. Bucket
	// and semaphore names must not collide; callers are responsible for
	// disambiguation if they share a prefix.
	DefaultKeyPrefix = "__self-limiters:"
)
