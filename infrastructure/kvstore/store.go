// Package kvstore is the shared key/value store behind the entity cache.
// Entries are ephemeral and TTL-bounded; nothing stored here is authoritative.
package kvstore

import (
	"context"
	"time"
)

// Store is the Redis-compatible subset the cache layer needs.
type Store interface {
	// Get returns (value, true, nil) on a hit and ("", false, nil) on a miss.
	Get(ctx context.Context, key string) (string, bool, error)
	// SetEx stores value under key with the given TTL.
	SetEx(ctx context.Context, key string, ttl time.Duration, value string) error
	// Del removes the keys. Missing keys are not an error.
	Del(ctx context.Context, keys ...string) error
}
