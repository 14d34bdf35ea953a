// Package provider defines the TTL-only byte stores that back cacheaside.
//
// Implementations MUST be byte-for-byte transparent: Get must return exactly
// the bytes previously passed to Set for a key. Absolute and sliding
// expiration are layered on top by store.Expiring, which frames every value;
// a provider only has to honor the plain TTL it is given.
package provider

import (
	"context"
	"time"
)

// Provider is a minimal byte store with TTLs. Must be safe for concurrent use.
type Provider interface {
	// Get returns (value, true, nil) on hit; (nil, false, nil) on miss.
	// If an IO/remote error happens, return (nil, false, err).
	Get(ctx context.Context, key string) ([]byte, bool, error)

	// Set stores value with the given TTL (ttl <= 0 => no expiry). cost may
	// be ignored. Returns ok=false when the store rejected the write under
	// pressure.
	Set(ctx context.Context, key string, value []byte, cost int64, ttl time.Duration) (ok bool, err error)

	// Del removes a key (best-effort).
	Del(ctx context.Context, key string) error

	// Close releases resources.
	Close(ctx context.Context) error
}

// Swapper is implemented by providers that can replace or delete a value
// only while the key still holds an expected value. store.Expiring uses it
// to refresh sliding entries and drop stale ones without overwriting a
// concurrent Set, including Sets from other processes.
type Swapper interface {
	// CompareAndSwap stores value with ttl only if key currently holds old.
	// Returns swapped=false when the key is missing or holds something else.
	CompareAndSwap(ctx context.Context, key string, old, value []byte, ttl time.Duration) (swapped bool, err error)

	// CompareAndDelete removes key only if it currently holds old.
	CompareAndDelete(ctx context.Context, key string, old []byte) (deleted bool, err error)
}
