package scheduler

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics bundles the scheduler's prometheus collectors, directly modeled
// on the teacher's emailPollMetrics (internal/services/scheduler/metrics.go):
// a run counter, a duration histogram and a recordRun closure returning a
// stop-timer function, generalized from "email poll" to "provider sync".
type Metrics struct {
	runsTotal   *prometheus.CounterVec
	errorsTotal *prometheus.CounterVec
	duration    *prometheus.HistogramVec
}

// NewMetrics builds the scheduler's collectors without registering them.
func NewMetrics() *Metrics {
	return &Metrics{
		runsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "hub",
			Subsystem: "scheduler",
			Name:      "sync_runs_total",
			Help:      "Provider sync attempts, labeled by provider id and outcome.",
		}, []string{"provider", "outcome"}),
		errorsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "hub",
			Subsystem: "scheduler",
			Name:      "sync_errors_total",
			Help:      "Provider sync failures, labeled by provider id.",
		}, []string{"provider"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "hub",
			Subsystem: "scheduler",
			Name:      "sync_duration_seconds",
			Help:      "Duration of provider sync calls, labeled by provider id.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"provider"}),
	}
}

// Register adds every collector to reg.
func (m *Metrics) Register(reg prometheus.Registerer) error {
	for _, c := range []prometheus.Collector{m.runsTotal, m.errorsTotal, m.duration} {
		if err := reg.Register(c); err != nil {
			return err
		}
	}
	return nil
}

func (m *Metrics) recordRun(providerID string) func(success bool) {
	if m == nil {
		return func(bool) {}
	}
	timer := prometheus.NewTimer(m.duration.WithLabelValues(providerID))
	return func(success bool) {
		timer.ObserveDuration()
		outcome := "success"
		if !success {
			outcome = "failure"
			m.errorsTotal.WithLabelValues(providerID).Inc()
		}
		m.runsTotal.WithLabelValues(providerID, outcome).Inc()
	}
}
