// Package counterstore abstracts the atomic counters the rate limiter and
// usage recorder depend on behind a single contract, with a networked Redis
// implementation and an in-process fallback for when Redis is unreachable.
package counterstore

import (
	"context"
	"time"
)

// Store performs atomic counter increments with expiry, shared across the
// rate limiter's windows and the usage recorder.
type Store interface {
	// Incr atomically increments key by 1 and returns the post-increment
	// value, creating the counter at 0 if it did not exist.
	Incr(ctx context.Context, key string) (int64, error)
	// Expire sets the remaining TTL on key. Idempotent: calling it again
	// with a different duration simply resets the TTL.
	Expire(ctx context.Context, key string, ttl time.Duration) error
	// Ping reports whether the store can currently serve counter
	// operations, for use by readiness checks.
	Ping(ctx context.Context) error
	// Close releases any resources held by the store.
	Close() error
}
