package metrics

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/Tivon521/grok2aoi/pkg/config"
)

// ConversationMetrics tracks the conversation correlation subsystem.
//
// Metrics:
//   - grok2aoi_conversation_lookups_total: History-hash lookups by result
//   - grok2aoi_conversations_active: Currently tracked conversations
//   - grok2aoi_conversations_removed_total: Removals by cause
type ConversationMetrics struct {
	// History-hash lookup outcomes
	lookupsTotal *prometheus.CounterVec

	// Currently tracked conversations
	active prometheus.Gauge

	// Removals by cause (expired, evicted, deleted, cleared)
	removedTotal *prometheus.CounterVec
}

// NewConversationMetrics creates and registers conversation metrics with
// the provided registry.
func NewConversationMetrics(cfg *config.MetricsConfig, registry *prometheus.Registry) *ConversationMetrics {
	cm := &ConversationMetrics{
		lookupsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: cfg.Namespace,
				Name:      "conversation_lookups_total",
				Help:      "History-hash conversation lookups by result (hit, miss)",
			},
			[]string{"result"},
		),

		active: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: cfg.Namespace,
				Name:      "conversations_active",
				Help:      "Number of conversations currently tracked",
			},
		),

		removedTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: cfg.Namespace,
				Name:      "conversations_removed_total",
				Help:      "Conversations removed, by cause (expired, evicted, deleted, cleared)",
			},
			[]string{"cause"},
		),
	}

	registry.MustRegister(cm.lookupsTotal, cm.active, cm.removedTotal)
	return cm
}

// RecordHit records a successful history-hash lookup.
func (cm *ConversationMetrics) RecordHit() {
	cm.lookupsTotal.WithLabelValues("hit").Inc()
}

// RecordMiss records a history-hash lookup that found nothing.
func (cm *ConversationMetrics) RecordMiss() {
	cm.lookupsTotal.WithLabelValues("miss").Inc()
}

// SetActive updates the active conversation gauge.
func (cm *ConversationMetrics) SetActive(n int) {
	cm.active.Set(float64(n))
}

// RecordRemoved records conversation removals with the given cause.
func (cm *ConversationMetrics) RecordRemoved(cause string, n int) {
	if n > 0 {
		cm.removedTotal.WithLabelValues(cause).Add(float64(n))
	}
}
