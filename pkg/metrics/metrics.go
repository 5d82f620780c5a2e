package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// RequestTotal counts HTTP requests by method, route pattern and status.
	RequestTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sqlsandbox_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)
	// RequestDuration is the latency of HTTP requests.
	RequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "sqlsandbox_http_request_duration_seconds",
			Help:    "HTTP request latency in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)
	// ClassifierRejections counts queries refused before reaching the engine.
	ClassifierRejections = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sqlsandbox_classifier_rejections_total",
			Help: "Queries rejected by the statement classifier",
		},
		[]string{"reason"},
	)
	// SandboxOutcomes counts sandbox executions by outcome.
	SandboxOutcomes = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sqlsandbox_executions_total",
			Help: "Sandbox executions by outcome",
		},
		[]string{"outcome"},
	)
	// SandboxDuration is wall time spent inside a sandbox session.
	SandboxDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "sqlsandbox_execution_duration_seconds",
			Help:    "Sandbox session wall time in seconds",
			Buckets: []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10, 30},
		},
	)
	// RollbackFailures counts sessions whose connection was discarded because
	// the rollback did not complete cleanly.
	RollbackFailures = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "sqlsandbox_rollback_failures_total",
			Help: "Sandbox sessions whose rollback failed",
		},
	)
	// HintRequests counts hint generation attempts by status.
	HintRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sqlsandbox_hint_requests_total",
			Help: "Hint generation calls by status",
		},
		[]string{"status"},
	)
	// CatalogCache counts assignment cache lookups by result.
	CatalogCache = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sqlsandbox_catalog_cache_total",
			Help: "Assignment catalog cache lookups",
		},
		[]string{"result"},
	)
)
