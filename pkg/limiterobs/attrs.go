package limiterobs

import (
	"log/slog"
	"time"
)

// Standard attribute keys, kept as constants so log queries can rely on a
// fixed vocabulary across both limiter packages.
const (
	KeyName       = "name"
	KeyCapacity   = "capacity"
	KeyInstanceID = "instance_id"
	KeyWaitedMS   = "waited_ms"
	KeyError      = "error"
	KeySlotMS     = "slot_ms"
	KeyTokensLeft = "tokens_left"
	KeyReason     = "reason"
)

// AttrName returns the resource-name attribute.
func AttrName(name string) slog.Attr { return slog.String(KeyName, name) }

// AttrCapacity returns the configured-capacity attribute.
func AttrCapacity(capacity int) slog.Attr { return slog.Int(KeyCapacity, capacity) }

// AttrInstanceID returns the process-correlation attribute.
func AttrInstanceID(id string) slog.Attr { return slog.String(KeyInstanceID, id) }

// AttrWaited returns the observed wait duration in milliseconds.
func AttrWaited(d time.Duration) slog.Attr {
	return slog.Int64(KeyWaitedMS, d.Milliseconds())
}

// AttrError returns the error-message attribute, or an empty string if err
// is nil (callers may unconditionally include it in a log call).
func AttrError(err error) slog.Attr {
	if err == nil {
		return slog.String(KeyError, "")
	}
	return slog.String(KeyError, err.Error())
}

// AttrSlot returns the scheduled slot timestamp in milliseconds.
func AttrSlot(slotMS int64) slog.Attr { return slog.Int64(KeySlotMS, slotMS) }

// AttrTokensLeft returns the bucket's remaining-token attribute.
func AttrTokensLeft(tokens int64) slog.Attr { return slog.Int64(KeyTokensLeft, tokens) }

// AttrReason returns a short, low-cardinality reason string for a failed
// or rejected acquisition, suitable for metric labels too.
func AttrReason(reason string) slog.Attr { return slog.String(KeyReason, reason) }
