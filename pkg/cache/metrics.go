package cache

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

//nolint:gochecknoglobals // Prometheus metrics
var (
	CacheHitsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "odds_engine_price_cache_hits_total",
		Help: "Total number of last-price cache hits",
	})

	CacheMissesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "odds_engine_price_cache_misses_total",
		Help: "Total number of last-price cache misses",
	})

	CacheSetsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "odds_engine_price_cache_sets_total",
		Help: "Total number of last-price cache sets",
	})
)
