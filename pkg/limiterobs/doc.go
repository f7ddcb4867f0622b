// Package limiterobs holds the ambient observability stack shared by
// [github.com/snok/self-limiters/pkg/semaphore] and
// [github.com/snok/self-limiters/pkg/tokenbucket]: structured logging,
// OpenTelemetry metrics and tracing, and a per-process instance ID used to
// correlate log lines and spans across concurrent acquirers.
//
// Neither limiter package depends on the other; both depend on this one so
// that logging/metric/trace shape stays identical across the two protocols,
// kept as a single attrs.go/metrics.go/trace.go trio shared by both.
package limiterobs
