// Package cache provides the TTL caches used for schema lookups.
//
// Memory is process-local; Redis shares entries across processes.
// Both are keyed by strings and store values of one type.
package cache

import (
	"context"
	"time"
)

// DefaultTTL is how long entries live when no TTL is configured
const DefaultTTL = 5 * time.Minute

// Cache is a read-through TTL cache of V keyed by string.
// A miss is (zero, false, nil); errors are reserved for backend failures.
type Cache[V any] interface {
	Get(ctx context.Context, key string) (V, bool, error)
	Set(ctx context.Context, key string, value V) error
	Delete(ctx context.Context, key string) error
}

// Key joins key parts with ':'
func Key(parts ...string) string {
	n := 0
	for _, p := range parts {
		n += len(p) + 1
	}
	b := make([]byte, 0, n)
	for i, p := range parts {
		if i > 0 {
			b = append(b, ':')
		}
		b = append(b, p...)
	}
	return string(b)
}
