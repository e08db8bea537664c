// Package monitoring exposes the Prometheus scrape endpoint and helpers for
// infrastructure-level metrics (cache, store). Domain collectors live in
// internal/metrics.
package monitoring

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	cacheOperationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mirador_sla_cache_operations_total",
			Help: "Total number of cache operations",
		},
		[]string{"operation", "result"}, // get/set/delete, hit/miss/success/error
	)

	storeOperationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mirador_sla_store_operations_total",
			Help: "Total number of breach store operations",
		},
		[]string{"operation", "status"},
	)

	storeOperationDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "mirador_sla_store_operation_duration_seconds",
			Help:    "Breach store operation duration in seconds",
			Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1},
		},
		[]string{"operation"},
	)
)

// SetupPrometheusMetrics mounts the scrape endpoint on the router.
func SetupPrometheusMetrics(router *gin.Engine, path string) {
	if path == "" {
		path = "/metrics"
	}
	router.GET(path, gin.WrapH(promhttp.Handler()))
}

// RecordCacheOperation records one cache operation outcome.
func RecordCacheOperation(operation, result string) {
	cacheOperationsTotal.WithLabelValues(operation, result).Inc()
}

// RecordStoreOperation records one breach store operation with its duration.
func RecordStoreOperation(operation string, d time.Duration, ok bool) {
	status := "success"
	if !ok {
		status = "error"
	}
	storeOperationsTotal.WithLabelValues(operation, status).Inc()
	storeOperationDuration.WithLabelValues(operation).Observe(d.Seconds())
}
