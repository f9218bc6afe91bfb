// Package metrics documents the Prometheus metrics exposed by the service.
// Metrics are defined next to the code that drives them (transport,
// pipeline, cache) to keep packages independent; this package holds the
// registry reference and the catalog.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Registry is the default Prometheus registry. All metrics register
// themselves via promauto in their owning packages.
var Registry = prometheus.DefaultRegisterer

// Handler returns the HTTP handler serving the /metrics endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}

// Metrics Catalog
//
// Transport (pkg/transport):
//   - ozon_fbo_requests_total{endpoint, status} (Counter)
//   - ozon_fbo_request_duration_seconds{endpoint} (Histogram)
//   - ozon_fbo_errors_total{class} (Counter): client, server, rate_limit, network
//   - ozon_fbo_retries_total{error_class} (Counter)
//   - ozon_fbo_retry_backoff_seconds{error_class} (Histogram)
//   - ozon_fbo_retry_exhausted_total{error_class} (Counter)
//
// Pipeline (pkg/pipeline):
//   - ozon_fbo_pages_total{shape} (Counter): list pages by decoded shape
//   - ozon_fbo_postings_emitted_total (Counter)
//   - ozon_fbo_postings_dropped_total{reason} (Counter): no_identity, filtered, fetch_failed
//
// Detail cache (pkg/cache):
//   - ozon_fbo_cache_hits_total{layer} (Counter)
//   - ozon_fbo_cache_misses_total (Counter)
//   - ozon_fbo_cache_errors_total{operation} (Counter)
//
// Example queries:
//
//   # Share of postings lost to detail fetch failures
//   rate(ozon_fbo_postings_dropped_total{reason="fetch_failed"}[5m]) /
//   rate(ozon_fbo_postings_emitted_total[5m])
//
//   # Rate limit pressure
//   rate(ozon_fbo_errors_total{class="rate_limit"}[5m])
//
//   # P95 upstream latency
//   histogram_quantile(0.95, rate(ozon_fbo_request_duration_seconds_bucket[5m]))
