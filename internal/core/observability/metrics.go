// Package observability exposes the prometheus collectors for the
// terrain engine and its HTTP surface.
package observability

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	httpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests.",
		},
		[]string{"method", "route", "status"},
	)

	httpRequestDurationSeconds = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "Duration of HTTP requests in seconds.",
			Buckets: prometheus.ExponentialBuckets(0.005, 2, 12), // 5ms to ~20s
		},
		[]string{"method", "route", "status"},
	)

	cacheResults = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "grid_cache_results_total",
			Help: "Grid cache lookups by outcome.",
		},
		[]string{"outcome"},
	)

	cacheEvictions = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "grid_cache_evictions_total",
			Help: "Cells dropped from the grid cache.",
		},
	)

	cellLoads = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "grid_cell_loads_total",
			Help: "Whole-cell materializations from the durable store.",
		},
	)

	cellLoadPoints = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "grid_cell_load_points",
			Help:    "Points per materialized cell.",
			Buckets: prometheus.ExponentialBuckets(1, 4, 8), // 1 to ~16k
		},
	)

	pointsWritten = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "terrain_points_written_total",
			Help: "Point writes accepted by the engine.",
		},
		[]string{"mode"},
	)

	storeOpSeconds = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "store_op_duration_seconds",
			Help:    "Durable store operation latency in seconds.",
			Buckets: prometheus.ExponentialBuckets(0.0001, 2, 16),
		},
		[]string{"op"},
	)

	invalidationEvents = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "invalidation_events_total",
			Help: "Cache invalidation events by result.",
		},
		[]string{"result"},
	)
)

func ObserveHTTP(method, route string, status int, durationSeconds float64) {
	st := strconv.Itoa(status)
	httpRequestsTotal.WithLabelValues(method, route, st).Inc()
	httpRequestDurationSeconds.WithLabelValues(method, route, st).Observe(durationSeconds)
}

func IncCacheHit() { cacheResults.WithLabelValues("hit").Inc() }

func IncCacheMiss() { cacheResults.WithLabelValues("miss").Inc() }

func IncEviction() { cacheEvictions.Inc() }

func ObserveCellLoad(points int) {
	cellLoads.Inc()
	cellLoadPoints.Observe(float64(points))
}

// IncPointsWritten counts accepted writes; mode is "single" or "batch".
func IncPointsWritten(mode string, n int) {
	pointsWritten.WithLabelValues(mode).Add(float64(n))
}

func ObserveStoreOp(op string, durationSeconds float64) {
	storeOpSeconds.WithLabelValues(op).Observe(durationSeconds)
}

// IncInvalidation counts consumed invalidation events; result is one of
// "applied", "skipped_dup", "invalid".
func IncInvalidation(result string) {
	invalidationEvents.WithLabelValues(result).Inc()
}
