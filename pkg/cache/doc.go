// Package cache stores aggregated listing snapshots.
//
// A snapshot is the concatenated result of one paginated aggregation,
// identified by endpoint, filters and page size. Two stores are provided:
//
//   - Memory: a bounded in-process LRU (L1)
//   - Manager: a Redis-backed store shared between processes (L2)
//
// Layered combines them, reading L1 first and promoting L2 hits.
//
// Every store checks expiry against an injected Clock on read and evicts
// an expired entry before reporting ErrCacheMiss, so no background sweeper
// is needed.
//
// # Basic Usage
//
//	mem, _ := cache.NewMemory(256, nil)
//	layered := cache.NewLayered(mem, cache.NewManager(redisClient, nil))
//
//	key := cache.Key{
//		Endpoint: "/v1/properties",
//		Query:    url.Values{"search[operation_type]": {"sale"}},
//		PageSize: 50,
//	}
//
//	entry, err := layered.Get(ctx, key)
//	if errors.Is(err, cache.ErrCacheMiss) {
//		// aggregate upstream, then
//		_ = layered.Set(ctx, key, cache.NewEntry(data, pages, truncated, now, ttl))
//	}
//
// # HTTP Helpers
//
// SetCacheHeaders writes ETag, Cache-Control, Expires and Last-Modified for
// an entry; NotModified evaluates If-None-Match so handlers can answer 304.
//
// # Metrics
//
//   - listing_cache_hits_total{layer} - Cache hits by layer (memory, redis)
//   - listing_cache_misses_total - Cache misses
//   - listing_cache_entries{layer} - Entries held by the in-process layer
//   - listing_cache_not_modified_total - 304 responses served
//   - listing_cache_errors_total{operation} - Cache operation errors
package cache
