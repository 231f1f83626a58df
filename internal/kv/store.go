// Package kv is the narrow Redis-backed key-value collaborator shared
// by the fingerprint cache and the cost tracker: byte blobs with TTLs,
// prefix scans for sweeps, and atomic counters for the rolling
// hourly/daily/monthly spend figures.
package kv

import "context"

// Store is the storage contract internal/llm/cache and internal/llm/cost
// depend on. Nothing above this package ever imports go-redis directly.
type Store interface {
	// Get returns the value and true, or nil and false if the key is
	// absent or expired.
	Get(ctx context.Context, key string) ([]byte, bool, error)

	// SetEX writes value with an expiry; ttl <= 0 means no expiry.
	SetEX(ctx context.Context, key string, value []byte, ttl int64) error

	// Delete removes a key. Deleting an absent key is not an error.
	Delete(ctx context.Context, key string) error

	// ScanPrefix lists every key starting with prefix, for the cache's
	// invalidate/optimize sweeps.
	ScanPrefix(ctx context.Context, prefix string) ([]string, error)

	// Expire resets a key's TTL, used to extend a cache entry's life on
	// a hit.
	Expire(ctx context.Context, key string, ttlSeconds int64) error

	// IncrByFloat atomically adds delta to the float stored at key,
	// setting ttlSeconds only if the key did not already exist.
	IncrByFloat(ctx context.Context, key string, delta float64, ttlSeconds int64) (float64, error)

	// IncrBy atomically adds delta to the integer counter at key,
	// setting ttlSeconds only if the key did not already exist.
	IncrBy(ctx context.Context, key string, delta int64, ttlSeconds int64) (int64, error)

	// GetFloat reads a counter written by IncrByFloat; returns 0 if absent.
	GetFloat(ctx context.Context, key string) (float64, error)

	// ApproxSize reports the serialized size of the value at key, used by
	// the cache's optimize sweep to flag oversized entries.
	ApproxSize(ctx context.Context, key string) (int64, error)

	Ping(ctx context.Context) error
	Close() error
}
