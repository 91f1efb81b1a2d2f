package types

import (
	"context"
	"time"
)

// CacheStore is the single shared key-value connection of the process.
// Every operation absorbs store failure at this boundary: a failed Get is a
// miss, a failed write is a no-op, so callers never branch on store errors.
type CacheStore interface {
	Get(ctx context.Context, key string) ([]byte, bool)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) bool
	Delete(ctx context.Context, key string) bool
	DeleteByPrefix(ctx context.Context, prefix string) int
	Exists(ctx context.Context, key string) bool

	// Increment bumps a fixed-window counter, arming the window TTL on the
	// first increment. ok is false when the store could not be reached.
	Increment(ctx context.Context, key string, ttl time.Duration) (count int64, ok bool)

	// Counter reads a fixed-window counter without bumping it; exists is
	// false when no window is open or the store could not be reached.
	Counter(ctx context.Context, key string) (count int64, exists bool)

	// TTL reports the remaining lifetime of key; ok is false when the key
	// does not exist or the store could not be reached.
	TTL(ctx context.Context, key string) (remaining time.Duration, ok bool)

	Healthy() bool
}
