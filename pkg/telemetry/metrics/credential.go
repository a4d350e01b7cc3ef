package metrics

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/Tivon521/grok2aoi/pkg/config"
)

// CredentialMetrics tracks the credential pool.
//
// Metrics:
//   - grok2aoi_credential_selections_total: Selections by outcome
//   - grok2aoi_credential_failures_total: Recorded failures by reason
//   - grok2aoi_credentials_active: Active credentials by pool
type CredentialMetrics struct {
	selectionsTotal *prometheus.CounterVec
	failuresTotal   *prometheus.CounterVec
	activeGauge     *prometheus.GaugeVec
}

// NewCredentialMetrics creates and registers credential metrics with the
// provided registry.
func NewCredentialMetrics(cfg *config.MetricsConfig, registry *prometheus.Registry) *CredentialMetrics {
	cm := &CredentialMetrics{
		selectionsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: cfg.Namespace,
				Name:      "credential_selections_total",
				Help:      "Credential selections by outcome (ok, empty, excluded)",
			},
			[]string{"outcome"},
		),

		failuresTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: cfg.Namespace,
				Name:      "credential_failures_total",
				Help:      "Recorded credential failures by reason",
			},
			[]string{"reason"},
		),

		activeGauge: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: cfg.Namespace,
				Name:      "credentials_active",
				Help:      "Number of active credentials by pool",
			},
			[]string{"pool"},
		),
	}

	registry.MustRegister(cm.selectionsTotal, cm.failuresTotal, cm.activeGauge)
	return cm
}

// RecordSelection records a credential selection outcome.
func (cm *CredentialMetrics) RecordSelection(outcome string) {
	cm.selectionsTotal.WithLabelValues(outcome).Inc()
}

// RecordFailure records a credential failure with the given reason.
func (cm *CredentialMetrics) RecordFailure(reason string) {
	cm.failuresTotal.WithLabelValues(reason).Inc()
}

// SetActive updates the active credential gauge for a pool.
func (cm *CredentialMetrics) SetActive(pool string, n int) {
	cm.activeGauge.WithLabelValues(pool).Set(float64(n))
}
