package cacheaside

import (
	"context"

	"golang.org/x/time/rate"

	c "github.com/unkn0wn-root/cacheaside/codec"
	"github.com/unkn0wn-root/cacheaside/store"
)

// Source produces the value for a key on a cache miss. It may be slow.
type Source[V any] func(ctx context.Context) (V, error)

// Entry is one key/value pair for BulkSet.
type Entry[V any] struct {
	Key   string
	Value V
}

// Cache is the cache-aside API. V is the caller's value type; serialization
// is handled by a pluggable Codec[V].
type Cache[V any] interface {
	Enabled() bool
	Close(context.Context) error

	// GetOrPopulate returns the cached value for key, or runs source once,
	// caches its result under policy and returns it. A zero policy selects
	// the default policy.
	GetOrPopulate(ctx context.Context, key string, source Source[V], policy Policy) (V, error)

	// BulkSet writes entries in order, in groups of batchSize. Per-key
	// failures are collected in the result, never returned as err.
	BulkSet(ctx context.Context, entries []Entry[V], batchSize int, policy Policy) (BulkResult, error)
}

// Options tune the cache. Only Store and Codec are required.
type Options[V any] struct {
	// Required
	Store store.Store
	Codec c.Codec[V]

	Logger        Logger       // if nil, NopLogger is used
	Reporter      Reporter     // if nil, LogReporter over Logger
	Hooks         Hooks        // if nil, NopHooks
	DefaultPolicy Policy       // zero => DefaultPolicy (2m absolute, 5s sliding)
	IsEmpty       func(V) bool // nil => empty collections and nil pointers
	Clock         store.Clock  // nil => time.Now
	Disabled      bool         // default false (enabled)

	// DisableSingleFlight lets every concurrent miss on a key run source
	// and write (last write wins).
	DisableSingleFlight bool

	// ExactBatchCount plans ceil(n/batchSize) groups instead of the
	// default n/batchSize+1, which adds a trailing empty group when n is a
	// multiple of batchSize.
	ExactBatchCount bool

	// BulkWriteLimit paces individual BulkSet writes (0 = unpaced).
	// BulkWriteBurst defaults to 1.
	BulkWriteLimit rate.Limit
	BulkWriteBurst int
}

func New[V any](opts Options[V]) (Cache[V], error) {
	return newCache[V](opts)
}
