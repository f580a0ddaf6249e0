// Package metrics exposes the Monitor Manager's tick/transition counters
// (spec §4.8), grounded on the teacher's prometheus.NewCounterVec-over-a-
// private-Registry pattern (test/unit/gateway/metrics/error_recovery_test.go).
package metrics

import "github.com/prometheus/client_golang/prometheus"

// Recorder owns the process's reconciliation metrics.
type Recorder struct {
	Ticks           *prometheus.CounterVec
	Transitions     *prometheus.CounterVec
	Reconnects      prometheus.Counter
	NotifyFailures  prometheus.Counter
}

// New registers every metric against reg and returns the Recorder. Pass
// prometheus.NewRegistry() in tests for isolation; pass the default
// registry (or one shared with /metrics) in production.
func New(reg prometheus.Registerer) *Recorder {
	r := &Recorder{
		Ticks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "segctl",
			Subsystem: "monitor",
			Name:      "ticks_total",
			Help:      "Number of poll ticks executed, by job kind.",
		}, []string{"kind"}),
		Transitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "segctl",
			Subsystem: "monitor",
			Name:      "transitions_total",
			Help:      "Number of Job status transitions applied, by kind, previous, and next status.",
		}, []string{"kind", "from", "to"}),
		Reconnects: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "segctl",
			Subsystem: "store",
			Name:      "reconnects_total",
			Help:      "Number of times the monitor loop reconnected the database pool after an Unavailable error.",
		}),
		NotifyFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "segctl",
			Subsystem: "notify",
			Name:      "failures_total",
			Help:      "Number of terminal-FAILED jobs for which a Slack notification was attempted.",
		}),
	}
	reg.MustRegister(r.Ticks, r.Transitions, r.Reconnects, r.NotifyFailures)
	return r
}
