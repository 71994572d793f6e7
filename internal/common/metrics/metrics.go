// internal/common/metrics/metrics.go
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	WorkerJobsCompleted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "worker_jobs_completed_total",
			Help: "Total number of jobs completed by worker",
		},
		[]string{"task_type"},
	)

	WorkerJobsFailed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "worker_jobs_failed_total",
			Help: "Total number of jobs failed by worker",
		},
		[]string{"task_type", "error_code"},
	)

	WorkerJobDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name: "worker_job_duration_seconds",
			Help: "Duration of job processing in seconds",
		},
		[]string{"task_type"},
	)

	WorkerJobsActive = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "worker_jobs_active",
			Help: "Number of active jobs per worker",
		},
		[]string{"task_type"},
	)
)

// Recommendation pipeline metrics.
var (
	PipelineRuns = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "recommend_pipeline_runs_total",
			Help: "Pipeline invocations by outcome (complete, partial, empty, failed)",
		},
		[]string{"status"},
	)

	StageDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "recommend_stage_duration_seconds",
			Help:    "Duration of each pipeline stage",
			Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
		},
		[]string{"stage"},
	)

	FetchFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "recommend_fetch_failures_total",
			Help: "Fan-out branches that degraded to an empty result",
		},
		[]string{"branch"},
	)

	PoolSize = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "recommend_pool_size",
			Help:    "Candidate pool size after each stage",
			Buckets: []float64{0, 5, 15, 30, 60, 120, 250, 500, 1000},
		},
		[]string{"stage"},
	)

	EmergencyFallbacks = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "recommend_emergency_fallback_total",
			Help: "Requests that needed the relaxed emergency fetch",
		},
	)

	CacheLookups = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "recommend_cache_lookups_total",
			Help: "Signal cache lookups by cache and result (hit, miss, error)",
		},
		[]string{"cache", "result"},
	)
)
