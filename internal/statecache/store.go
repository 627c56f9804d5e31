// Package statecache provides the key-value state store used for the
// member presence cache. The store holds opaque byte values with a per-key
// time-to-live supplied on every write; an entry past its TTL reads as
// absent. Absence is advisory only: callers must never interpret a miss as
// "the member does not exist", only as "identity unknown to this cache".
package statecache

import (
	"context"
	"time"
)

// Store is the minimal contract the presence layer needs from a state store.
// There are no transactions and no prefix queries; Get and Put are each
// atomic on a single key and concurrent writes are last-writer-wins.
type Store interface {
	// Get returns the value stored under key. The boolean reports whether a
	// live (non-expired) entry was found. An error indicates a store fault,
	// not a miss.
	Get(ctx context.Context, key string) ([]byte, bool, error)

	// Put stores value under key with the given TTL, replacing any existing
	// entry and restarting its expiry window.
	Put(ctx context.Context, key string, value []byte, ttl time.Duration) error
}
