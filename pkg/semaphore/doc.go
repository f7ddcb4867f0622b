// Package semaphore implements a distributed, fair concurrency limiter
// on top of a shared Redis-compatible store. At most Capacity callers
// may hold an acquisition at once; callers beyond that block on a
// BLPOP-ordered FIFO queue until a slot is released or their configured
// max sleep elapses.
package semaphore
