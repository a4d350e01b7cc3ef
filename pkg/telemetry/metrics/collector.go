package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/Tivon521/grok2aoi/pkg/config"
)

// Collector is the orchestrator for all Prometheus metrics in the gateway.
// It manages metric registration and provides a unified interface for
// recording metrics across components.
type Collector struct {
	config   *config.MetricsConfig
	registry *prometheus.Registry

	// Request metrics
	requestMetrics *RequestMetrics

	// Conversation correlation metrics
	conversationMetrics *ConversationMetrics

	// Credential pool metrics
	credentialMetrics *CredentialMetrics
}

// NewCollector creates a new metrics collector with the specified
// configuration and Prometheus registry. If registry is nil, a fresh
// private registry is used.
func NewCollector(cfg *config.MetricsConfig, registry *prometheus.Registry) *Collector {
	if registry == nil {
		registry = prometheus.NewRegistry()
	}
	if cfg.Namespace == "" {
		cfg.Namespace = config.DefaultMetricsNamespace
	}
	if len(cfg.RequestDurationBuckets) == 0 {
		cfg.RequestDurationBuckets = config.DefaultRequestDurationBuckets
	}

	return &Collector{
		config:              cfg,
		registry:            registry,
		requestMetrics:      NewRequestMetrics(cfg, registry),
		conversationMetrics: NewConversationMetrics(cfg, registry),
		credentialMetrics:   NewCredentialMetrics(cfg, registry),
	}
}

// Requests returns the request metrics group.
func (c *Collector) Requests() *RequestMetrics {
	return c.requestMetrics
}

// Conversations returns the conversation metrics group.
func (c *Collector) Conversations() *ConversationMetrics {
	return c.conversationMetrics
}

// Credentials returns the credential metrics group.
func (c *Collector) Credentials() *CredentialMetrics {
	return c.credentialMetrics
}

// Registry returns the underlying Prometheus registry.
func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}

// Handler returns an HTTP handler serving the metrics endpoint in the
// standard Prometheus exposition format.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{
		EnableOpenMetrics: true,
		ErrorHandling:     promhttp.ContinueOnError,
	})
}
