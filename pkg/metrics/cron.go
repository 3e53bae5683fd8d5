package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const (
	cronResultSuccess = "success"
	cronResultFailure = "failure"
)

// CronJobMetrics tracks scheduled job runs. A nil value records nothing.
type CronJobMetrics struct {
	runs        *prometheus.CounterVec
	duration    *prometheus.HistogramVec
	lastSuccess *prometheus.GaugeVec
	skipped     prometheus.Counter
}

func NewCronJobMetrics(reg prometheus.Registerer) *CronJobMetrics {
	if reg == nil {
		return nil
	}
	m := &CronJobMetrics{
		runs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "cron",
			Name:      "job_runs_total",
			Help:      "Cron job executions by result.",
		}, []string{"job", "result"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "cron",
			Name:      "job_duration_seconds",
			Help:      "Duration of cron jobs in seconds.",
			Buckets:   prometheus.ExponentialBuckets(0.05, 2, 12),
		}, []string{"job"}),
		lastSuccess: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "cron",
			Name:      "job_last_success_timestamp_seconds",
			Help:      "Unix time of the last successful run per job.",
		}, []string{"job"}),
		skipped: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "cron",
			Name:      "cycles_skipped_total",
			Help:      "Cycles skipped because another instance held the lock.",
		}),
	}
	reg.MustRegister(m.runs, m.duration, m.lastSuccess, m.skipped)
	return m
}

// RecordRun counts one execution of job. A nil err marks it successful and
// stamps the last success gauge.
func (m *CronJobMetrics) RecordRun(job string, took time.Duration, err error) {
	if m == nil {
		return
	}
	job = normalizeLabel(job)
	m.duration.WithLabelValues(job).Observe(took.Seconds())
	if err != nil {
		m.runs.WithLabelValues(job, cronResultFailure).Inc()
		return
	}
	m.runs.WithLabelValues(job, cronResultSuccess).Inc()
	m.lastSuccess.WithLabelValues(job).SetToCurrentTime()
}

func (m *CronJobMetrics) IncSkipped() {
	if m == nil {
		return
	}
	m.skipped.Inc()
}
