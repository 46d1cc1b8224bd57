// Package metrics exposes the Prometheus registry of marketplace-sync and the
// run-level metrics of the two sync paths. Component metrics are defined in their
// own packages (client, ratelimit, pagination, enrichment, store, cache) and
// registered through promauto.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Registry is the registerer every package registers with.
var Registry = prometheus.DefaultRegisterer

// Sync paths.
const (
	PathOrders = "orders"
	PathStock  = "stock"
)

var (
	// SyncRuns counts triggered runs by path and result (ok, partial, error).
	SyncRuns = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "marketsync_sync_runs_total",
		Help: "Total number of sync runs by path and result",
	}, []string{"path", "result"})

	// SyncDuration observes the duration of a run by path.
	SyncDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "marketsync_sync_duration_seconds",
		Help:    "Duration of sync runs by path",
		Buckets: prometheus.ExponentialBuckets(0.1, 2, 12),
	}, []string{"path"})

	// LastSuccess holds the unix time of the last successful run by path.
	LastSuccess = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "marketsync_sync_last_success_timestamp_seconds",
		Help: "Unix time of the last successful sync run by path",
	}, []string{"path"})

	// OrdersDropped counts persisted orders that a refresh no longer received.
	OrdersDropped = promauto.NewCounter(prometheus.CounterOpts{
		Name: "marketsync_orders_dropped_total",
		Help: "Total number of persisted orders dropped because the marketplace no longer reported them",
	})

	// DatasetItems holds the size of each persisted dataset after a run.
	DatasetItems = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "marketsync_dataset_items",
		Help: "Number of records in a persisted dataset after the last run",
	}, []string{"dataset"})
)

// Handler serves the default gatherer in the Prometheus text format.
func Handler() http.Handler {
	return promhttp.Handler()
}

// Metrics Documentation
//
// Client (pkg/client):
//   - marketsync_requests_total{endpoint, status} (Counter)
//   - marketsync_request_duration_seconds{endpoint} (Histogram)
//   - marketsync_errors_total{class} (Counter): rate_limit, client, server, network
//   - marketsync_retries_total (Counter)
//   - marketsync_retry_backoff_seconds (Histogram)
//   - marketsync_retry_exhausted_total (Counter)
//
// Rate limit (pkg/ratelimit):
//   - marketsync_rate_limit_remaining (Gauge)
//   - marketsync_rate_limit_cooldowns_total (Counter)
//   - marketsync_rate_limit_wait_seconds (Histogram)
//
// History (pkg/pagination):
//   - marketsync_history_pages_total{result} (Counter)
//   - marketsync_history_incomplete_total{reason} (Counter): page_error, max_pages
//   - marketsync_history_fetch_duration_seconds (Histogram)
//
// Enrichment (pkg/enrichment, pkg/cache):
//   - marketsync_enrichment_outcomes_total{status} (Counter)
//   - marketsync_enrichment_lookup_duration_seconds (Histogram)
//   - marketsync_enrichment_lookups_in_flight (Gauge)
//   - marketsync_cache_hits_total{resource}, marketsync_cache_misses_total{resource}
//   - marketsync_cache_errors_total{operation}, marketsync_cache_size_bytes
//
// Store (pkg/store):
//   - marketsync_store_operations_total{dataset, op, result} (Counter)
//   - marketsync_store_corrupt_reads_total{dataset} (Counter)
//   - marketsync_store_version_conflicts_total{dataset} (Counter)
//   - marketsync_store_document_bytes{dataset} (Gauge)
//
// Runs (this package):
//   - marketsync_sync_runs_total{path, result}
//   - marketsync_sync_duration_seconds{path}
//   - marketsync_sync_last_success_timestamp_seconds{path}
//   - marketsync_orders_dropped_total
//   - marketsync_dataset_items{dataset}
//
// Example Prometheus Queries:
//
//   # Partial refreshes
//   rate(marketsync_sync_runs_total{path="orders",result="partial"}[1h])
//
//   # Rate limit pressure
//   rate(marketsync_retries_total[5m])
//
//   # P95 request latency
//   histogram_quantile(0.95, rate(marketsync_request_duration_seconds_bucket[5m]))
