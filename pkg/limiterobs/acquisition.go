package limiterobs

import "context"

// Acquisition is the scoped-acquisition handle both limiter packages
// return from Enter. Exit is idempotent: calling it more than once after
// the first call returns nil without re-running the underlying exit
// function, so a deferred Exit composes safely with an explicit one on
// the success path.
type Acquisition struct {
	exit func(context.Context) error
	done bool
}

// NewAcquisition wraps exit (the semaphore's release pipeline, or a no-op
// for the token bucket) into an idempotent handle.
func NewAcquisition(exit func(context.Context) error) *Acquisition {
	return &Acquisition{exit: exit}
}

// Exit runs the underlying exit function exactly once.
func (a *Acquisition) Exit(ctx context.Context) error {
	if a == nil || a.done {
		return nil
	}
	a.done = true
	if a.exit == nil {
		return nil
	}
	return a.exit(ctx)
}

// Limiter is the shared surface of *semaphore.Semaphore and
// *tokenbucket.Bucket: a scoped-acquisition object, letting callers (for
// example pkg/limitermaint) hold either kind behind one type.
type Limiter interface {
	// Name returns the resource name this limiter was constructed with.
	Name() string
	// Enter blocks until an acquisition is granted or ctx/maxSleep expires.
	Enter(ctx context.Context) (*Acquisition, error)
	// Do runs fn between Enter and Exit, calling Exit on every return path.
	Do(ctx context.Context, fn func(context.Context) error) error
}
