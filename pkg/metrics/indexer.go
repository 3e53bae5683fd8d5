package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// IndexerMetrics tracks listing price update batches.
type IndexerMetrics struct {
	duration *prometheus.HistogramVec
	items    *prometheus.CounterVec
	quotes   prometheus.Counter
	families prometheus.Counter
}

// NewIndexerMetrics registers the indexer collectors on reg. A nil reg yields a no-op recorder.
func NewIndexerMetrics(reg prometheus.Registerer) *IndexerMetrics {
	if reg == nil {
		return &IndexerMetrics{}
	}
	duration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Subsystem: "indexer",
		Name:      "update_duration_seconds",
		Help:      "Duration of listing price update batches.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"trigger"})
	items := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "indexer",
		Name:      "items_total",
		Help:      "Per-id update outcomes by status.",
	}, []string{"status"})
	quotes := prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "indexer",
		Name:      "quotes_loaded_total",
		Help:      "Price quotes loaded from storage.",
	})
	families := prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "indexer",
		Name:      "families_written_total",
		Help:      "Canonical products whose cached listing prices were rewritten.",
	})
	reg.MustRegister(duration, items, quotes, families)
	return &IndexerMetrics{
		duration: duration,
		items:    items,
		quotes:   quotes,
		families: families,
	}
}

// ObserveUpdate records one batch.
func (m *IndexerMetrics) ObserveUpdate(trigger string, d time.Duration) {
	if m == nil || m.duration == nil {
		return
	}
	m.duration.WithLabelValues(normalizeLabel(trigger)).Observe(d.Seconds())
}

// IncItem counts one per-id outcome.
func (m *IndexerMetrics) IncItem(status string) {
	if m == nil || m.items == nil {
		return
	}
	m.items.WithLabelValues(normalizeLabel(status)).Inc()
}

// AddQuotes counts loaded quotes.
func (m *IndexerMetrics) AddQuotes(n int) {
	if m == nil || m.quotes == nil || n <= 0 {
		return
	}
	m.quotes.Add(float64(n))
}

// IncFamiliesWritten counts one committed family write.
func (m *IndexerMetrics) IncFamiliesWritten() {
	if m == nil || m.families == nil {
		return
	}
	m.families.Inc()
}
