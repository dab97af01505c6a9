// Package metrics holds the Prometheus collectors for the ingestion pipeline,
// the catalog client and the HTTP API.
package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Pipeline Metrics
	PipelineRuns = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pipeline_runs_total",
			Help: "Total number of collection pipeline runs by final status",
		},
		[]string{"status"}, // "completed", "pending", "aborted"
	)

	PipelineRunDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "pipeline_run_duration_seconds",
			Help:    "Duration of collection pipeline runs in seconds",
			Buckets: []float64{0.5, 1, 2.5, 5, 10, 30, 60, 120, 300, 600},
		},
	)

	PipelineBatches = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pipeline_batches_total",
			Help: "Total number of item-detail batches by stage and outcome",
		},
		[]string{"stage", "outcome"}, // stage: "games", "mechanics"; outcome: "succeeded", "failed"
	)

	PipelineSkippedItems = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pipeline_skipped_items_total",
			Help: "Total number of malformed upstream items skipped during normalization",
		},
		[]string{"kind"}, // "collection", "game", "mechanic"
	)

	PipelineRunsInProgress = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "pipeline_runs_in_progress",
			Help: "Current number of pipeline runs executing",
		},
	)

	// Catalog Client Metrics
	CatalogRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "catalog_requests_total",
			Help: "Total number of catalog API requests by endpoint and outcome",
		},
		[]string{"endpoint", "outcome"}, // outcome: "ok", "pending", "api_error", "http_<code>", "transport", "rejected"
	)

	CatalogRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "catalog_request_duration_seconds",
			Help:    "Duration of catalog API requests in seconds, including rate limiter wait",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"endpoint"},
	)

	CircuitBreakerState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "circuit_breaker_state",
			Help: "Circuit breaker state (0=closed, 1=half-open, 2=open)",
		},
		[]string{"name"},
	)

	// API Metrics
	APIRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "api_requests_total",
			Help: "Total number of HTTP API requests",
		},
		[]string{"method", "route", "status"},
	)

	APIRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "api_request_duration_seconds",
			Help:    "Duration of HTTP API requests in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route"},
	)
)

// RecordPipelineRun records the outcome of one pipeline run.
func RecordPipelineRun(status string, duration time.Duration) {
	PipelineRuns.WithLabelValues(status).Inc()
	PipelineRunDuration.Observe(duration.Seconds())
}

// RecordBatch records one item-detail batch of a reconciliation stage.
func RecordBatch(stage string, ok bool) {
	outcome := "succeeded"
	if !ok {
		outcome = "failed"
	}
	PipelineBatches.WithLabelValues(stage, outcome).Inc()
}

// RecordSkipped adds n skipped items of the given kind. Zero is ignored.
func RecordSkipped(kind string, n int) {
	if n > 0 {
		PipelineSkippedItems.WithLabelValues(kind).Add(float64(n))
	}
}

// RecordCatalogRequest records one catalog API call.
func RecordCatalogRequest(endpoint, outcome string, duration time.Duration) {
	CatalogRequests.WithLabelValues(endpoint, outcome).Inc()
	CatalogRequestDuration.WithLabelValues(endpoint).Observe(duration.Seconds())
}

// HTTPOutcome is the catalog outcome label for an upstream status code.
func HTTPOutcome(code int) string {
	return "http_" + strconv.Itoa(code)
}

// RecordAPIRequest records one inbound HTTP request.
func RecordAPIRequest(method, route string, status int, duration time.Duration) {
	APIRequests.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	APIRequestDuration.WithLabelValues(method, route).Observe(duration.Seconds())
}
