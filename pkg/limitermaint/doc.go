// Package limitermaint schedules fleet-wide maintenance for a set of
// named semaphores and token buckets: periodic script warm-up (so the
// first real Enter on a cold store never pays for a NOSCRIPT miss) and
// idle-resource TTL housekeeping.
package limitermaint
