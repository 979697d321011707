package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics collects the sync core's operational counters
type Metrics struct {
	EventsApplied    *prometheus.CounterVec
	EventsDropped    prometheus.Counter
	ReconcileResults *prometheus.CounterVec
	PendingTimers    prometheus.Gauge
	CommandsSent     *prometheus.CounterVec
	CommandFailures  *prometheus.CounterVec
	CommandDuration  prometheus.Histogram
}

// NewMetrics creates and registers the metric set on the given registerer
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		EventsApplied: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "starmap",
			Name:      "events_applied_total",
			Help:      "Push events applied to local collections, by event name.",
		}, []string{"event"}),
		EventsDropped: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "starmap",
			Name:      "events_dropped_total",
			Help:      "Malformed push events logged and dropped.",
		}),
		ReconcileResults: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "starmap",
			Name:      "reconcile_entities_total",
			Help:      "Entities produced by reconciliation, by outcome.",
		}, []string{"outcome"}),
		PendingTimers: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "starmap",
			Name:      "pending_timers",
			Help:      "Armed optimistic-state timers.",
		}),
		CommandsSent: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "starmap",
			Name:      "commands_sent_total",
			Help:      "Commands dispatched to the server, by type.",
		}, []string{"type"}),
		CommandFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "starmap",
			Name:      "command_failures_total",
			Help:      "Failed command dispatches, by type.",
		}, []string{"type"}),
		CommandDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "starmap",
			Name:      "command_duration_seconds",
			Help:      "Round-trip time of command dispatches.",
			Buckets:   prometheus.DefBuckets,
		}),
	}

	reg.MustRegister(
		m.EventsApplied,
		m.EventsDropped,
		m.ReconcileResults,
		m.PendingTimers,
		m.CommandsSent,
		m.CommandFailures,
		m.CommandDuration,
	)
	return m
}

// NewNopMetrics creates an unregistered metric set for tests
func NewNopMetrics() *Metrics {
	return NewMetrics(prometheus.NewRegistry())
}
