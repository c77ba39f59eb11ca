package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/freightcrm/lead-assignment-engine/internal/domain"
	"github.com/freightcrm/lead-assignment-engine/internal/engine"
)

// Metrics groups all Prometheus instruments used across the application.
// Registered once at startup via New(); passed by pointer wherever needed.
type Metrics struct {
	AssignmentsTotal   *prometheus.CounterVec
	AssignmentFailures prometheus.Counter
	BatchDuration      prometheus.Histogram
	QueuePending       prometheus.Gauge
	StaleRequeued      prometheus.Counter
}

// New registers all instruments with the given Prometheus registerer and
// returns the populated Metrics struct.
// Using a custom registry (instead of prometheus.DefaultRegisterer) keeps
// tests isolated and avoids global state.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		AssignmentsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "lead_assignments_total",
			Help: "Total leads assigned, labeled by resolving strategy.",
		}, []string{"method"}),

		AssignmentFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "lead_assignment_failures_total",
			Help: "Total queue items that terminated in status=failed.",
		}),

		BatchDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "assignment_batch_seconds",
			Help:    "Wall-clock duration of one ProcessBatch invocation.",
			Buckets: prometheus.DefBuckets,
		}),

		QueuePending: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "assignment_queue_pending",
			Help: "Pending items in the assignment queue after the last batch.",
		}),

		StaleRequeued: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "assignment_stale_requeued_total",
			Help: "Items moved from stuck processing back to pending by the sweeper.",
		}),
	}

	reg.MustRegister(
		m.AssignmentsTotal,
		m.AssignmentFailures,
		m.BatchDuration,
		m.QueuePending,
		m.StaleRequeued,
	)

	return m
}

// EngineHooks returns the metric callbacks expected by engine.Hooks.
// Centralises the prometheus observation calls so the engine stays
// metrics-agnostic.
func (m *Metrics) EngineHooks() engine.Hooks {
	return engine.Hooks{
		OnAssigned: func(method domain.AssignmentType) {
			m.AssignmentsTotal.WithLabelValues(string(method)).Inc()
		},
		OnFailed: func() {
			m.AssignmentFailures.Inc()
		},
		OnBatch: func(d time.Duration) {
			m.BatchDuration.Observe(d.Seconds())
		},
		OnQueueDepth: func(pending int) {
			m.QueuePending.Set(float64(pending))
		},
	}
}
