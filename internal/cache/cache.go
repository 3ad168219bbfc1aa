// Package cache holds raw catalog responses keyed by operation and
// parameters. Entries expire by TTL only; there is no capacity bound.
package cache

import (
	"context"
	"net/url"
	"time"
)

// Store is a TTL key-value store for response payloads. Implementations
// never return an entry after its expiry and treat their own failures as
// misses.
type Store interface {
	Get(ctx context.Context, key string) ([]byte, bool)
	Put(ctx context.Context, key string, payload []byte, ttl time.Duration)
}

// Key derives the cache key for an operation and its parameters. Values
// are sorted by name, so logically identical calls collide regardless of
// the order their parameters were set in.
func Key(op string, params url.Values) string {
	return "catalog:" + op + ":" + params.Encode()
}
