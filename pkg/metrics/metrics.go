package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// AuthAttempts records authentication attempts by result (success|failure).
	AuthAttempts = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "rosterd_auth_attempts_total",
			Help: "Total number of authentication attempts",
		},
		[]string{"result"},
	)

	// TokenChecks counts access gate checks by result (valid|invalid|unknown_subject|inactive|error).
	TokenChecks = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "rosterd_token_checks_total",
			Help: "Total number of access gate token checks",
		},
		[]string{"result"},
	)

	// APILatency measures HTTP request latencies.
	APILatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "rosterd_api_latency_seconds",
			Help:    "API endpoint latency",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path", "status"},
	)

	// CacheOperations counts cache layer calls by operation and result (hit|miss|ok|error).
	CacheOperations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "rosterd_cache_operations_total",
			Help: "Total number of cache operations",
		},
		[]string{"op", "result"},
	)

	// CacheInvalidations counts invalidation passes by namespace and trigger.
	CacheInvalidations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "rosterd_cache_invalidations_total",
			Help: "Total number of cache invalidation passes",
		},
		[]string{"namespace", "trigger"},
	)

	// BackgroundJobs counts finished background jobs by kind and result (success|failure).
	BackgroundJobs = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "rosterd_background_jobs_total",
			Help: "Total number of finished background jobs",
		},
		[]string{"kind", "result"},
	)

	// BackgroundJobUnits counts the rows or ids processed by background jobs.
	BackgroundJobUnits = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "rosterd_background_job_units_total",
			Help: "Total number of items handled by background jobs",
		},
		[]string{"kind", "outcome"},
	)

	// QueuedJobs tracks jobs waiting in the background queue.
	QueuedJobs = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "rosterd_background_jobs_queued",
			Help: "Number of background jobs waiting for a worker",
		},
	)
)
