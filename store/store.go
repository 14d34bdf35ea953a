// Package store defines the byte-oriented key/value contract cacheaside
// reads from and writes to, and Expiring, the implementation that adds
// absolute and sliding expiration on top of any provider.Provider.
package store

import (
	"context"
	"errors"
	"time"
)

// ErrRejected is returned by Set when the underlying provider refused the
// write (admission policy, memory pressure).
var ErrRejected = errors.New("store: write rejected by provider")

// ErrExpired is returned by Set when the entry's ceiling had already passed,
// so nothing was written.
var ErrExpired = errors.New("store: entry expired before write")

// Options carries the expiration of one entry.
//
// AbsoluteExpiresAt is a hard ceiling (zero: none). SlidingWindow resets on
// every read but never carries the entry past the ceiling (zero: none).
type Options struct {
	AbsoluteExpiresAt time.Time
	SlidingWindow     time.Duration
}

// Store is the contract the cache depends on. Implementations must be safe
// for concurrent use; concurrent Sets to different keys must not interfere.
type Store interface {
	// Get returns (payload, true, nil) on hit and (nil, false, nil) on miss.
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte, opts Options) error
	Close(ctx context.Context) error
}

// Clock returns the current time. time.Now in production.
type Clock func() time.Time
