// Package cache keeps raw Snowball payloads in Redis for a short time so
// repeated calls with the same arguments skip the upstream and its pacing.
//
// Only response bodies are stored. Credential pool and limiter state stay in
// process memory and reset on restart.
//
// Keys are derived from the operation name and its defaulted arguments:
//
//	snowball:kline:begin=1704187800000:count=-284:period=day:symbol=SH600000
//
// The gateway uses the cache like this:
//
//	key := cache.CacheKey{Operation: op.Name, Params: op.Params}
//	entry, err := manager.Get(ctx, key)
//	if errors.Is(err, cache.ErrCacheMiss) {
//		// call upstream, then:
//		_ = manager.Set(ctx, key, cache.NewEntry(op.Name, payload, 30*time.Second))
//	}
//
// Purge drops every entry of one operation, or all gateway entries.
//
// Metrics:
//
//   - snowball_cache_hits_total{operation}
//   - snowball_cache_misses_total{operation}
//   - snowball_cache_written_bytes_total{operation}
//   - snowball_cache_errors_total{action}
package cache
