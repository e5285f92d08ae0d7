package domain

import (
	"context"
	"time"
)

// Cache is the bounded cache used to memoize schema summaries.
// Implementations must be safe for concurrent use. A zero or negative TTL
// means the entry lives for the process lifetime (or until evicted).
type Cache interface {
	// Get returns the cached value, or nil on a miss.
	Get(ctx context.Context, key string) ([]byte, error)

	// Set stores a value. ttl <= 0 disables expiry.
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error

	// Delete removes a key; missing keys are not an error.
	Delete(ctx context.Context, key string) error

	// Ping checks cache health.
	Ping(ctx context.Context) error

	// Close releases resources.
	Close() error
}
