// Package jobmetrics instruments background job runs.
package jobmetrics

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const (
	statusSuccess = "success"
	statusFailure = "failure"
)

// Metrics holds the per-job collectors.
type Metrics struct {
	runs        *prometheus.CounterVec
	failures    *prometheus.CounterVec
	items       *prometheus.CounterVec
	duration    *prometheus.HistogramVec
	lastSuccess *prometheus.GaugeVec
}

var (
	defaultOnce    sync.Once
	defaultMetrics *Metrics
)

// NewMetrics registers the job collectors on registerer. A nil registerer
// shares one set registered on the Prometheus default registerer.
func NewMetrics(registerer prometheus.Registerer) *Metrics {
	if registerer != nil {
		return buildMetrics(registerer)
	}
	defaultOnce.Do(func() {
		defaultMetrics = buildMetrics(prometheus.DefaultRegisterer)
	})
	return defaultMetrics
}

func buildMetrics(registerer prometheus.Registerer) *Metrics {
	byJob := []string{"job"}
	m := &Metrics{
		runs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "daybook_jobs_total",
			Help: "Job runs by job name and outcome.",
		}, []string{"job", "status"}),
		failures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "daybook_jobs_failures_total",
			Help: "Failed job runs by job name.",
		}, byJob),
		items: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "daybook_job_items_total",
			Help: "Units of work completed by job runs, such as warmed dashboard scopes.",
		}, byJob),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "daybook_job_duration_seconds",
			Help:    "Job run duration.",
			Buckets: prometheus.DefBuckets,
		}, byJob),
		lastSuccess: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "daybook_job_last_success_timestamp_seconds",
			Help: "Unix time of the last successful run per job.",
		}, byJob),
	}
	registerer.MustRegister(m.runs, m.failures, m.items, m.duration, m.lastSuccess)
	return m
}

// Tracker instruments one job run.
type Tracker struct {
	metrics *Metrics
	job     string
	start   time.Time
}

// Track starts timing a run of job. A nil Metrics yields a no-op tracker.
func (m *Metrics) Track(job string) *Tracker {
	return &Tracker{metrics: m, job: job, start: time.Now()}
}

// Processed counts n completed units of work for the run.
func (t *Tracker) Processed(n int) {
	if t == nil || t.metrics == nil || t.job == "" || n <= 0 {
		return
	}
	t.metrics.items.WithLabelValues(t.job).Add(float64(n))
}

// End records the outcome and duration of the run and returns err unchanged.
func (t *Tracker) End(err error) error {
	if t == nil || t.metrics == nil || t.job == "" {
		return err
	}
	status := statusSuccess
	if err != nil {
		status = statusFailure
		t.metrics.failures.WithLabelValues(t.job).Inc()
	} else {
		t.metrics.lastSuccess.WithLabelValues(t.job).SetToCurrentTime()
	}
	t.metrics.runs.WithLabelValues(t.job, status).Inc()
	t.metrics.duration.WithLabelValues(t.job).Observe(time.Since(t.start).Seconds())
	return err
}
