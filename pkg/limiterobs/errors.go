package limiterobs

import "errors"

// ErrMaxSleepExceeded is returned by both limiter packages when the
// caller's configured maximum wait would be (or was) exceeded: the
// semaphore's BLPOP timed out, or the token bucket's computed delay
// exceeded the configured bound. Defined once here so both packages
// raise the identical sentinel as part of a two-member error taxonomy
// (the other member, StoreError, lives in pkg/limiterstore).
var ErrMaxSleepExceeded = errors.New("self-limiters: max sleep exceeded")
