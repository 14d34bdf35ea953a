// Package cacheaside implements a provider-agnostic cache-aside layer in
// front of an expensive data source.
//
// Components:
//   - store.Store: byte store with per-entry absolute + sliding expiration.
//     store.Expiring provides it over any provider.Provider (ristretto,
//     bigcache, redis, bbolt).
//   - codec.Codec[V]: (de)serializes V <-> []byte.
//   - Policy: absolute ceiling plus sliding window for written entries.
//   - Reporter: receives structured failure records.
//
// Operations:
//
//	v, err := cache.GetOrPopulate(ctx, key, source, policy)
//	res, err := cache.BulkSet(ctx, entries, batchSize, policy)
//
// GetOrPopulate serves a cached, non-empty value or runs source once and
// writes its result back. An empty decoded value (empty slice, map, string)
// is indistinguishable from a miss. Store and codec failures are reported
// and degrade to a miss (read) or are swallowed (write); only source
// failures reach the caller, as *SourceError.
//
// Concurrent misses for one key share a single source call unless
// Options.DisableSingleFlight is set.
//
// BulkSet writes entries in consecutive groups of batchSize. Writes inside
// a group run concurrently; the next group starts only after every write of
// the previous one has settled.
package cacheaside
