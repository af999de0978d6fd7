// Package cache provides the small key/value store gilt keeps under its base
// directory.
//
// The store records the outcome of the last successful sync of every
// dependency (see SyncRecord) so that "gilt status" can report which commit
// each destination was built from without touching the network. Entries
// never expire; the next successful sync of the same dependency replaces
// them.
//
// Implementations:
//   - FileCache: one JSON file per key under <base>/state (CLI default)
//   - NullCache: never stores anything (--no-state, tests)
package cache

import "context"

// Cache is a byte-oriented key/value store. Implementations must be safe
// for concurrent use by the pipeline's workers.
type Cache interface {
	// Get returns the value for key and whether it was found.
	// A missing entry is a miss, not an error.
	Get(ctx context.Context, key string) ([]byte, bool, error)

	// Set stores data under key, replacing any earlier value.
	Set(ctx context.Context, key string, data []byte) error

	// Delete removes key. Deleting a missing key is not an error.
	Delete(ctx context.Context, key string) error

	// Close releases resources held by the cache.
	Close() error
}
