package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	DirectoryQueries = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "directory_queries_total",
			Help: "Total number of directory list/query calls by scope",
		},
		[]string{"scope"},
	)

	DirectoryMutations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "directory_mutations_total",
			Help: "Total number of listing and rating mutations by operation and result code",
		},
		[]string{"operation", "code"},
	)

	SnapshotRefreshes = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "directory_snapshot_refreshes_total",
			Help: "Snapshot reloads from storage by outcome",
		},
		[]string{"outcome"},
	)

	StorageDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "directory_storage_duration_seconds",
			Help:    "Latency of storage calls",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"operation"},
	)

	ContactReveals = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "contact_gate_transitions_total",
			Help: "Contact gate transitions by resulting state",
		},
		[]string{"state"},
	)

	LeadSinkFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "lead_sink_failures_total",
			Help: "Lead deliveries that failed and were dropped",
		},
		[]string{"sink"},
	)

	HTTPRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "API requests by method, route and status",
		},
		[]string{"method", "route", "status"},
	)

	HTTPDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "API request latency",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route"},
	)

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
)
