// Package limiterevents fans out acquisition lifecycle events — acquired,
// rejected, released — to optional downstream sinks for capacity
// planning and auditing. Publishing is best-effort and never fails an
// acquisition: a sink error is logged and swallowed by the caller, never
// surfaced as StoreError or MaxSleepExceeded. Publish runs synchronously
// on the acquiring goroutine, so a sink's Publish (for example
// ClickHouseSink's flush of a full buffer) adds to the caller's latency.
package limiterevents
