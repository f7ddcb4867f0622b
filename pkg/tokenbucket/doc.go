// Package tokenbucket implements a distributed, fair rate limiter on top
// of a shared Redis-compatible store. Each Enter call runs a single
// atomic script that advances the bucket's state and returns the
// absolute millisecond timestamp the caller is scheduled to consume a
// token at; the caller then sleeps cooperatively until that instant.
// There is no server-side release and no background scheduler.
package tokenbucket
