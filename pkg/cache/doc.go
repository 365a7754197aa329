// Package cache provides the in-process caches used by practicehub.
//
// Manager is a bounded key-value cache with per-entry TTLs and a pluggable
// eviction strategy (LRU by hit count, FIFO, or sweeping expired entries). It
// backs HTTP response caching through ManagerStore.
//
// QueryCache is a read-through cache for expensive lookups. Concurrent misses on
// the same key share a single fetch:
//
//	exercises, err := cache.Fetch(ctx, queries, "exercises:list", time.Minute,
//		func(ctx context.Context) ([]exercises.Exercise, error) {
//			return repo.List(ctx)
//		})
//
// Both caches are process-local. RedisStore implements ResponseStore on Redis
// for deployments that run several instances and need a shared cache.
//
// Caches are plain values: construct them once and pass them to the handlers
// that need them.
package cache
