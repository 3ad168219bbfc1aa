package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	CatalogRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "movierec_catalog_requests_total",
			Help: "Outbound catalog requests by operation and outcome",
		},
		[]string{"operation", "outcome"}, // outcome: ok, transport, upstream-status, decode
	)

	CatalogRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "movierec_catalog_request_duration_seconds",
			Help:    "Latency of outbound catalog requests",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"operation"},
	)

	CircuitBreakerState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "movierec_catalog_circuit_state",
			Help: "Catalog circuit breaker state (0=closed, 1=half-open, 2=open)",
		},
		[]string{"name"},
	)

	CacheLookups = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "movierec_cache_lookups_total",
			Help: "Response cache lookups by operation and result",
		},
		[]string{"operation", "result"}, // result: hit, miss
	)

	MovieUpserts = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "movierec_movie_upserts_total",
			Help: "Reconciled catalog records by result",
		},
		[]string{"result"}, // result: created, updated, skipped
	)

	AttributionsLogged = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "movierec_attributions_total",
			Help: "Recommendation attributions written, by strategy",
		},
		[]string{"strategy"},
	)

	JobRuns = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "movierec_job_runs_total",
			Help: "Background job executions by job and outcome",
		},
		[]string{"job", "outcome"}, // outcome: ok, failed, retried
	)

	JobDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "movierec_job_duration_seconds",
			Help:    "Background job execution time",
			Buckets: []float64{0.1, 0.5, 1, 5, 15, 30, 60, 120, 300},
		},
		[]string{"job"},
	)
)
