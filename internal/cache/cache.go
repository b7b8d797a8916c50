// Package cache provides the expiring key/value store that memoizes lookup
// results. Two implementations exist: an in-process map store (default) and a
// Redis-backed store for multi-replica deployments. Entries carry a fixed TTL
// from insertion and are never renewed on read; invalidation is a full flush,
// which is coarse but always correct after admin writes.
package cache

import (
	"context"
	"time"
)

// DefaultTTL is how long a lookup result stays cached after insertion.
const DefaultTTL = 15 * time.Minute

// keyPrefix namespaces every cache key so a Redis flush can delete only this
// service's entries.
const keyPrefix = "library_versions_"

// Store is the contract the lookup service and the access-log middleware rely
// on. Get and Has must be safe for unbounded concurrent readers; Set may race
// between two concurrent misses for the same key. Last writer wins; the
// computed value is deterministic, so the race only wastes one computation.
type Store interface {
	// Get returns the stored value and true, or (nil, false) when the key is
	// absent or expired.
	Get(ctx context.Context, key string) ([]byte, bool, error)
	// Set stores value under key with the given TTL from now.
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	// Has reports whether key is present and unexpired without reading it.
	Has(ctx context.Context, key string) (bool, error)
	// Flush removes every entry written by this store.
	Flush(ctx context.Context) error
}

// Key builds the cache key for a lookup scope. Inputs are already normalized;
// empty strings collapse to sentinels so "no value" is representable in the
// flat key. The format is load-bearing: the access-log middleware rebuilds the
// same key to detect cache hits before the handler runs.
func Key(system, cnpj, machine string) string {
	if system == "" {
		system = "all_systems"
	}
	if cnpj == "" {
		cnpj = "default"
	}
	if machine == "" {
		machine = "no_machine"
	}
	return keyPrefix + system + "_" + cnpj + "_" + machine
}
