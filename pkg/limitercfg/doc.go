// Package limitercfg loads semaphore and token-bucket configuration sets
// from YAML or JSON, with optional hot reload on file change.
package limitercfg
