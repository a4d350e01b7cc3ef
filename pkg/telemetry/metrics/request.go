package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/Tivon521/grok2aoi/pkg/config"
)

// RequestMetrics tracks metrics related to chat request processing.
//
// Metrics:
//   - grok2aoi_requests_total: Total request count by model, status
//   - grok2aoi_request_duration_seconds: Request duration histogram
type RequestMetrics struct {
	// Total request count
	requestsTotal *prometheus.CounterVec

	// Request duration histogram
	requestDuration *prometheus.HistogramVec
}

// NewRequestMetrics creates and registers request metrics with the
// provided registry.
func NewRequestMetrics(cfg *config.MetricsConfig, registry *prometheus.Registry) *RequestMetrics {
	rm := &RequestMetrics{
		requestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: cfg.Namespace,
				Name:      "requests_total",
				Help:      "Total number of chat requests processed",
			},
			[]string{"model", "status"},
		),

		requestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: cfg.Namespace,
				Name:      "request_duration_seconds",
				Help:      "Duration of chat requests in seconds",
				Buckets:   cfg.RequestDurationBuckets,
			},
			[]string{"model"},
		),
	}

	registry.MustRegister(rm.requestsTotal, rm.requestDuration)
	return rm
}

// Record records a completed request with its outcome and duration.
func (rm *RequestMetrics) Record(model, status string, duration time.Duration) {
	rm.requestsTotal.WithLabelValues(model, status).Inc()
	rm.requestDuration.WithLabelValues(model).Observe(duration.Seconds())
}
