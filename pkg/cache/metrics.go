package cache

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// CacheHits counts payloads served from Redis, per Snowball operation.
	CacheHits = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "snowball_cache_hits_total",
			Help: "Snowball payloads served from the response cache",
		},
		[]string{"operation"},
	)

	// CacheMisses counts lookups that found nothing fresh.
	CacheMisses = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "snowball_cache_misses_total",
			Help: "Snowball response cache lookups without a fresh entry",
		},
		[]string{"operation"},
	)

	// CacheBytesWritten counts payload bytes stored, per Snowball operation.
	CacheBytesWritten = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "snowball_cache_written_bytes_total",
			Help: "Bytes of Snowball payloads written to the response cache",
		},
		[]string{"operation"},
	)

	// CacheErrors counts Redis failures by cache action.
	CacheErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "snowball_cache_errors_total",
			Help: "Response cache failures by action",
		},
		[]string{"action"}, // get, set, delete, purge
	)
)
