// Package metrics exposes the Prometheus registry and scrape handler.
// Metrics are defined in their respective packages (pagination, client,
// cache, ratelimit, sync) and registered via promauto.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Registry is the default Prometheus registry used by the service.
var Registry = prometheus.DefaultRegisterer

var buildInfo = promauto.NewGaugeVec(prometheus.GaugeOpts{
	Name: "listing_build_info",
	Help: "Build information, value is always 1",
}, []string{"version"})

// SetBuildInfo records the running version.
func SetBuildInfo(version string) {
	buildInfo.WithLabelValues(version).Set(1)
}

// Handler returns the scrape handler for the default gatherer.
func Handler() http.Handler {
	return promhttp.Handler()
}

// Metrics Documentation
//
// Aggregation Metrics (pkg/pagination):
//   - listing_pages_fetched_total{endpoint} (Counter): Page requests issued
//   - listing_aggregations_total{endpoint, reason} (Counter): Runs by termination reason
//   - listing_aggregated_items (Histogram): Items per run
//   - listing_aggregation_duration_seconds{endpoint} (Histogram): Run duration
//
// Upstream Metrics (pkg/client):
//   - listing_upstream_requests_total{endpoint, status} (Counter)
//   - listing_upstream_request_duration_seconds{endpoint} (Histogram)
//   - listing_upstream_errors_total{class} (Counter)
//   - listing_upstream_retries_total{error_class} (Counter)
//   - listing_upstream_retry_backoff_seconds{error_class} (Histogram)
//   - listing_upstream_retry_exhausted_total{error_class} (Counter)
//   - listing_upstream_circuit_state{name} (Gauge): 0 closed, 1 half-open, 2 open
//
// Quota Metrics (pkg/ratelimit):
//   - listing_upstream_quota_remaining (Gauge)
//   - listing_upstream_quota_blocks_total (Counter)
//   - listing_upstream_quota_throttles_total (Counter)
//
// Cache Metrics (pkg/cache):
//   - listing_cache_hits_total{layer} (Counter)
//   - listing_cache_misses_total (Counter)
//   - listing_cache_entries{layer} (Gauge)
//   - listing_cache_not_modified_total (Counter)
//   - listing_cache_errors_total{operation} (Counter)
//
// Warmup Metrics (pkg/sync):
//   - listing_sync_runs_total{job, outcome} (Counter)
//   - listing_sync_last_success_timestamp_seconds{job} (Gauge)
//
// Example Prometheus Queries:
//
//	# Truncated aggregation rate
//	sum(rate(listing_aggregations_total{reason!="exhausted"}[5m])) /
//	sum(rate(listing_aggregations_total[5m]))
//
//	# Cache hit rate
//	sum(rate(listing_cache_hits_total[5m])) /
//	(sum(rate(listing_cache_hits_total[5m])) + sum(rate(listing_cache_misses_total[5m])))
//
//	# P95 upstream latency
//	histogram_quantile(0.95, rate(listing_upstream_request_duration_seconds_bucket[5m]))
