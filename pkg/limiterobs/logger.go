package limiterobs

import (
	"context"
	"log/slog"
)

// Logger is the logging seam both limiter packages depend on. It is
// satisfied directly by *slog.Logger, kept narrow so callers can supply
// any slog-backed logger (including one with request-scoped handlers)
// without this module importing a specific logging framework.
type Logger interface {
	DebugContext(ctx context.Context, msg string, args ...any)
	InfoContext(ctx context.Context, msg string, args ...any)
	WarnContext(ctx context.Context, msg string, args ...any)
	ErrorContext(ctx context.Context, msg string, args ...any)
}

// noopLogger discards everything. Used when a caller does not configure a
// logger, so call sites never need a nil check.
type noopLogger struct{}

func (noopLogger) DebugContext(context.Context, string, ...any) {}
func (noopLogger) InfoContext(context.Context, string, ...any)  {}
func (noopLogger) WarnContext(context.Context, string, ...any)  {}
func (noopLogger) ErrorContext(context.Context, string, ...any) {}

// NoopLogger returns a Logger that discards all records.
func NoopLogger() Logger { return noopLogger{} }

var _ Logger = (*slog.Logger)(nil)
