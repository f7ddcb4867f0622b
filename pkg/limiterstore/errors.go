package limiterstore

import "errors"

// StoreError wraps any transport, protocol, or script-evaluation failure
// from the shared store. It is the only error class this package produces
// (the system distinguishes exactly two error kinds; the other,
// MaxSleepExceeded, belongs to the limiter packages, not the store).
// Malformed stored bucket state surfaces as StoreError too — it
// should be unreachable in practice since only this system writes those
// keys, but a corrupt read is a store-layer concern, not a limiter-layer
// one.
var StoreError = errors.New("self-limiters: store error")

// wrapStoreError wraps err as a StoreError, or returns nil if err is nil.
func wrapStoreError(op string, err error) error {
	if err == nil {
		return nil
	}
	return &storeErr{op: op, cause: err}
}

type storeErr struct {
	op    string
	cause error
}

func (e *storeErr) Error() string {
	return "self-limiters: store error during " + e.op + ": " + e.cause.Error()
}

func (e *storeErr) Unwrap() []error { return []error{StoreError, e.cause} }
