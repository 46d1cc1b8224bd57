// Package cache caches marketplace enrichment lookups in Redis.
//
// The stock enrichment job asks the marketplace for the available quantity of every
// eligible product. Consecutive runs within a short window see the same numbers, so
// a TTL-bounded cache in front of the lookup saves rate-limit budget:
//
//	redisClient := redis.NewClient(&redis.Options{Addr: "localhost:6379"})
//	manager := cache.NewManager(redisClient, 5*time.Minute)
//	lookup := cache.NewStockLookup(api, manager)
//	qty, err := lookup.ProductStock(ctx, 123456)
//
// Cache failures never fail a lookup: Redis errors are counted, logged and the
// request falls through to the marketplace.
//
// # Metrics
//
//   - marketsync_cache_hits_total{resource}
//   - marketsync_cache_misses_total{resource}
//   - marketsync_cache_errors_total{operation}
//   - marketsync_cache_size_bytes
package cache
