package cache

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Prometheus metrics for detail cache operations.
var (
	// CacheHits tracks cache hits by layer.
	CacheHits = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "ozon_fbo_cache_hits_total",
		Help: "Total detail cache hits by layer",
	}, []string{"layer"})

	// CacheMisses tracks cache misses.
	CacheMisses = promauto.NewCounter(prometheus.CounterOpts{
		Name: "ozon_fbo_cache_misses_total",
		Help: "Total detail cache misses",
	})

	// CacheErrors tracks cache operation errors by operation.
	CacheErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "ozon_fbo_cache_errors_total",
		Help: "Total detail cache operation errors",
	}, []string{"operation"})
)
