package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Outbox publish outcomes.
const (
	OutboxPublished = "published"
	OutboxRetry     = "retry"
	OutboxTerminal  = "terminal"
)

// OutboxMetrics tracks the outbox publisher.
type OutboxMetrics struct {
	events  *prometheus.CounterVec
	backlog prometheus.Gauge
}

// NewOutboxMetrics registers the publisher collectors on reg. A nil reg yields a no-op recorder.
func NewOutboxMetrics(reg prometheus.Registerer) *OutboxMetrics {
	if reg == nil {
		return &OutboxMetrics{}
	}
	events := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "outbox",
		Name:      "events_total",
		Help:      "Outbox rows handled by the publisher, by event type and outcome.",
	}, []string{"event_type", "outcome"})
	backlog := prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: "outbox",
		Name:      "batch_size",
		Help:      "Rows fetched by the most recent publish batch.",
	})
	reg.MustRegister(events, backlog)
	return &OutboxMetrics{events: events, backlog: backlog}
}

// IncEvent counts one handled row.
func (m *OutboxMetrics) IncEvent(eventType, outcome string) {
	if m == nil || m.events == nil {
		return
	}
	m.events.WithLabelValues(normalizeLabel(eventType), normalizeLabel(outcome)).Inc()
}

// SetBatch records how many rows the latest batch fetched.
func (m *OutboxMetrics) SetBatch(n int) {
	if m == nil || m.backlog == nil {
		return
	}
	m.backlog.Set(float64(n))
}
