// Package limiterstore is the thin shared-store adapter: a narrow seam
// over a Redis-compatible server exposing exactly
// the operations the two limiter protocols need — atomic script
// execution, BLPOP, and pipelined commands — plus LLEN for the
// semaphore's Query and a TIME passthrough.
//
// Every call funnels failures through a single [StoreError], wrapping the
// underlying go-redis error with %w so errors.As can still recover it for
// logging. A [sony/gobreaker] circuit breaker wraps each call: after a run
// of consecutive failures it fails new calls fast rather than waiting out
// the client's full timeout on every one, without ever re-issuing or
// splitting a script call — the breaker only decides whether to attempt
// the next independent call, never retries the one that just failed.
package limiterstore
