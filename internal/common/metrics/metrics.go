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

	// ScoreRequests counts POST /score/ calls by outcome (ok, bad_request, error).
	ScoreRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "scorecard_score_requests_total",
			Help: "Total number of scoring requests by outcome",
		},
		[]string{"outcome"},
	)

	// WindowsScored counts window results by window and result kind (scored, validation_failed).
	WindowsScored = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "scorecard_windows_total",
			Help: "Total number of scored windows by result",
		},
		[]string{"window", "result"},
	)

	GradesAssigned = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "scorecard_grades_total",
			Help: "Total number of grades assigned",
		},
		[]string{"window", "grade"},
	)

	WindowDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "scorecard_window_duration_seconds",
			Help:    "Duration of one window through validation, features, scoring and memo",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"window"},
	)

	// FormSubmissions counts frontend submissions by outcome (rendered, failed).
	FormSubmissions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "scorecard_form_submissions_total",
			Help: "Total number of form submissions by outcome",
		},
		[]string{"outcome"},
	)
)
