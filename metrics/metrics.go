package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "zksha"

// Metrics collects pipeline outcomes and stage timings.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	runs          *prometheus.CounterVec
	stageFailures *prometheus.CounterVec
	stageDuration *prometheus.HistogramVec
}

// New creates the pipeline collectors and registers them with reg
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		runs: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "pipeline",
				Name:      "runs_total",
				Help:      "Total number of pipeline runs by outcome",
			},
			[]string{"outcome"}, // succeeded, failed, rejected
		),
		stageFailures: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "pipeline",
				Name:      "stage_failures_total",
				Help:      "Total number of runs that failed while reaching a stage",
			},
			[]string{"stage"},
		),
		stageDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: "pipeline",
				Name:      "stage_duration_seconds",
				Help:      "Time spent reaching each stage in seconds",
				Buckets:   prometheus.ExponentialBuckets(0.001, 4, 10), // 1ms ~ 262s
			},
			[]string{"stage"},
		),
	}
	if reg != nil {
		reg.MustRegister(m.runs, m.stageFailures, m.stageDuration)
	}
	return m
}

// ObserveStage records the time it took to reach stage
func (m *Metrics) ObserveStage(stage string, d time.Duration) {
	if m == nil {
		return
	}
	m.stageDuration.WithLabelValues(stage).Observe(d.Seconds())
}

// StageFailed counts a run that failed while reaching stage
func (m *Metrics) StageFailed(stage string) {
	if m == nil {
		return
	}
	m.stageFailures.WithLabelValues(stage).Inc()
}

// RunFinished counts a finished run by outcome
func (m *Metrics) RunFinished(outcome string) {
	if m == nil {
		return
	}
	m.runs.WithLabelValues(outcome).Inc()
}

// Handler serves the collectors of g in the Prometheus text format
func Handler(g prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(g, promhttp.HandlerOpts{})
}
