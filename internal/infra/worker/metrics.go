package worker

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"notifrelay/internal/pkg/config"
)

// WorkerMetrics tracks the worker's background jobs (the scheduled-dispatch
// sweep and the counter flush) alongside configuration health.
type WorkerMetrics struct {
	*config.ConfigMetrics

	// JobRunsTotal counts background job runs by job name and result.
	JobRunsTotal *prometheus.CounterVec

	// JobDurationSeconds observes per-job run duration.
	JobDurationSeconds *prometheus.HistogramVec

	// JobLastSuccessTimestamp is the unix time of the last successful run
	// per job, for staleness alerts.
	JobLastSuccessTimestamp *prometheus.GaugeVec
}

func NewWorkerMetrics() *WorkerMetrics {
	return &WorkerMetrics{
		ConfigMetrics: config.NewConfigMetrics("worker"),

		JobRunsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "worker_job_runs_total",
			Help: "Total background job runs by job and result",
		}, []string{"job", "result"}),

		JobDurationSeconds: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "worker_job_duration_seconds",
			Help:    "Background job run duration in seconds",
			Buckets: prometheus.ExponentialBuckets(0.01, 2, 12),
		}, []string{"job"}),

		JobLastSuccessTimestamp: promauto.NewGaugeVec(prometheus.GaugeOpts{
			Name: "worker_job_last_success_timestamp",
			Help: "Unix timestamp of the last successful run per job",
		}, []string{"job"}),
	}
}

// RecordJobRun records one run of a named job with result "success" or
// "failure", and refreshes the last-success gauge on success.
func (m *WorkerMetrics) RecordJobRun(job string, err error) {
	result := "success"
	if err != nil {
		result = "failure"
	}
	m.JobRunsTotal.WithLabelValues(job, result).Inc()
	if err == nil {
		m.JobLastSuccessTimestamp.WithLabelValues(job).SetToCurrentTime()
	}
}

func (m *WorkerMetrics) RecordJobDuration(job string, seconds float64) {
	m.JobDurationSeconds.WithLabelValues(job).Observe(seconds)
}
