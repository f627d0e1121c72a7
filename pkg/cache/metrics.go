package cache

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// CacheHits tracks cache hits by tier ("redis", "bolt").
	CacheHits = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bookmeta_cache_hits_total",
			Help: "Total number of cache hits by tier",
		},
		[]string{"tier"},
	)

	// CacheMisses tracks full-chain cache misses.
	CacheMisses = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "bookmeta_cache_misses_total",
			Help: "Total number of cache misses across all tiers",
		},
	)

	// CachePromotions tracks cold-to-hot promotions by source tier.
	CachePromotions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bookmeta_cache_promotions_total",
			Help: "Total number of entries promoted into earlier tiers",
		},
		[]string{"from"},
	)

	// CacheErrors tracks cache operation errors by tier and operation.
	CacheErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bookmeta_cache_errors_total",
			Help: "Total number of cache operation errors",
		},
		[]string{"tier", "operation"}, // "get", "set", "delete"
	)

	// CacheExpiredEvictions tracks lazy evictions of expired entries.
	CacheExpiredEvictions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bookmeta_cache_expired_evictions_total",
			Help: "Total number of expired entries evicted lazily on read",
		},
		[]string{"tier"},
	)
)
