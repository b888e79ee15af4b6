// Package metrics records per-run Prometheus metrics for bamf-monitor.
//
// The process is short-lived, so nothing is served over HTTP. Instead the
// registry is written once at exit in text exposition format, ready for the
// node_exporter textfile collector. A nil *Recorder is valid and records
// nothing.
package metrics

import (
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "bamf_monitor"

// Recorder holds the collectors for one process run.
type Recorder struct {
	registry *prometheus.Registry

	fetchAttempts *prometheus.CounterVec
	fetchDuration prometheus.Histogram
	runs          *prometheus.CounterVec
	notifications *prometheus.CounterVec
	lastRun       prometheus.Gauge
	targetFound   prometheus.Gauge
	terminated    prometheus.Gauge
}

// New creates a Recorder with its own registry.
func New() *Recorder {
	r := &Recorder{
		registry: prometheus.NewRegistry(),
		fetchAttempts: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "fetch_attempts_total",
				Help:      "Page fetch attempts by result.",
			},
			[]string{"result"},
		),
		fetchDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "fetch_duration_seconds",
				Help:      "Duration of single page fetch attempts.",
				Buckets:   []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
			},
		),
		runs: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "runs_total",
				Help:      "Check cycles by outcome.",
			},
			[]string{"outcome"},
		),
		notifications: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "notifications_total",
				Help:      "Notifications by kind and result.",
			},
			[]string{"kind", "result"},
		),
		lastRun: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "last_run_timestamp_seconds",
			Help:      "Unix time of the last completed check cycle.",
		}),
		targetFound: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "target_found",
			Help:      "1 once the target date has appeared on the page.",
		}),
		terminated: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "terminated",
			Help:      "1 once monitoring has been terminated.",
		}),
	}

	r.registry.MustRegister(
		r.fetchAttempts,
		r.fetchDuration,
		r.runs,
		r.notifications,
		r.lastRun,
		r.targetFound,
		r.terminated,
	)
	return r
}

// Registry exposes the underlying registry.
func (r *Recorder) Registry() *prometheus.Registry {
	if r == nil {
		return nil
	}
	return r.registry
}

// FetchAttempt records one fetch attempt.
func (r *Recorder) FetchAttempt(err error, d time.Duration) {
	if r == nil {
		return
	}
	result := "success"
	if err != nil {
		result = "failure"
	}
	r.fetchAttempts.WithLabelValues(result).Inc()
	r.fetchDuration.Observe(d.Seconds())
}

// Run records the outcome of a check cycle.
func (r *Recorder) Run(outcome string, at time.Time) {
	if r == nil {
		return
	}
	r.runs.WithLabelValues(outcome).Inc()
	r.lastRun.Set(float64(at.Unix()))
}

// Notification records one delivery attempt.
func (r *Recorder) Notification(kind string, err error) {
	if r == nil {
		return
	}
	result := "sent"
	if err != nil {
		result = "failed"
	}
	r.notifications.WithLabelValues(kind, result).Inc()
}

// Phase records the monitoring phase flags.
func (r *Recorder) Phase(targetFound, terminated bool) {
	if r == nil {
		return
	}
	r.targetFound.Set(boolToFloat(targetFound))
	r.terminated.Set(boolToFloat(terminated))
}

// WriteTextfile writes all metrics to path in text exposition format.
func (r *Recorder) WriteTextfile(path string) error {
	if r == nil || path == "" {
		return nil
	}
	if err := prometheus.WriteToTextfile(path, r.registry); err != nil {
		return fmt.Errorf("writing metrics file: %w", err)
	}
	return nil
}

func boolToFloat(b bool) float64 {
	if b {
		return 1
	}
	return 0
}
