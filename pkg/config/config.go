package config

import "time"

// Config is the root configuration structure for the grok2aoi gateway.
// It contains all configuration sections for the HTTP server, durable
// storage, conversation tracking, credential pools, batch administration,
// the upstream backend, and telemetry.
type Config struct {
	// Server contains HTTP server configuration including listen address
	// and timeouts.
	Server ServerConfig `yaml:"server"`

	// Storage contains configuration for the durable blob store used to
	// persist conversations and request statistics.
	Storage StorageConfig `yaml:"storage"`

	// Conversations contains configuration for the conversation manager
	// including TTL, per-credential capacity, and sweep interval.
	Conversations ConversationConfig `yaml:"conversations"`

	// Credentials contains configuration for the session credential pools.
	Credentials CredentialConfig `yaml:"credentials"`

	// Batch contains configuration for administrative batch operations.
	Batch BatchConfig `yaml:"batch"`

	// Upstream contains configuration for the upstream AI web backend.
	Upstream UpstreamConfig `yaml:"upstream"`

	// Auth contains API key authentication configuration for the
	// OpenAI-compatible surface and the admin surface.
	Auth AuthConfig `yaml:"auth"`

	// Telemetry contains observability configuration (logging and metrics).
	Telemetry TelemetryConfig `yaml:"telemetry"`
}

// ServerConfig contains configuration for the HTTP server.
type ServerConfig struct {
	// ListenAddress is the address and port to listen on.
	// Format: "host:port". Default: "127.0.0.1:8180"
	ListenAddress string `yaml:"listen_address"`

	// ReadTimeout is the maximum duration for reading the entire request.
	// Default: 30s
	ReadTimeout time.Duration `yaml:"read_timeout"`

	// WriteTimeout is the maximum duration before timing out response
	// writes. Streaming responses need headroom here. Default: 300s
	WriteTimeout time.Duration `yaml:"write_timeout"`

	// IdleTimeout is the maximum duration to wait for the next request on
	// a keep-alive connection. Default: 120s
	IdleTimeout time.Duration `yaml:"idle_timeout"`

	// ShutdownTimeout is the maximum duration to wait for in-flight
	// requests during graceful shutdown. Default: 30s
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`

	// MaxHeaderBytes limits the size of request headers. Default: 1MB
	MaxHeaderBytes int `yaml:"max_header_bytes"`
}

// StorageConfig contains configuration for the durable blob store.
type StorageConfig struct {
	// Backend selects the storage implementation: "sqlite" or "bolt".
	// Default: "sqlite"
	Backend string `yaml:"backend"`

	// Path is the database file path. Default: "data/grok2aoi.db"
	Path string `yaml:"path"`

	// BusyTimeout is how long to wait when the database is locked.
	// Default: 5s
	BusyTimeout time.Duration `yaml:"busy_timeout"`
}

// ConversationConfig contains configuration for conversation tracking.
type ConversationConfig struct {
	// TTL is how long a conversation stays resumable after its last
	// update. Expired conversations are treated as absent. Default: 2h
	TTL time.Duration `yaml:"ttl"`

	// MaxPerCredential bounds the number of conversations retained per
	// credential; the oldest are evicted beyond this. Default: 100
	MaxPerCredential int `yaml:"max_per_credential"`

	// SweepInterval is how often the background sweep removes expired
	// conversations. Default: 10m
	SweepInterval time.Duration `yaml:"sweep_interval"`
}

// CredentialConfig contains configuration for session credential pools.
type CredentialConfig struct {
	// File is the path to the JSON credential file holding the named
	// pools. Default: "data/credentials.json"
	File string `yaml:"file"`

	// Watch enables hot-reloading the credential file on change.
	// Default: true
	Watch bool `yaml:"watch"`

	// WatchDebounce is the quiet period after a file event before the
	// reload fires. Default: 500ms
	WatchDebounce time.Duration `yaml:"watch_debounce"`
}

// BatchConfig contains configuration for administrative batch operations.
type BatchConfig struct {
	// Workers is the bounded concurrency budget for batch fan-out.
	// Default: 5
	Workers int `yaml:"workers"`

	// TaskRetention is how long a finished task remains retrievable
	// before it is garbage-collected. Default: 5m
	TaskRetention time.Duration `yaml:"task_retention"`
}

// UpstreamConfig contains configuration for the upstream AI web backend.
type UpstreamConfig struct {
	// BaseURL is the upstream API base URL.
	// Default: "https://grok.com"
	BaseURL string `yaml:"base_url"`

	// Timeout is the per-request timeout for upstream calls.
	// Default: 120s
	Timeout time.Duration `yaml:"timeout"`
}

// AuthConfig contains API key authentication configuration.
type AuthConfig struct {
	// APIKeys is the set of accepted bearer keys for the OpenAI-compatible
	// surface. An empty list means open mode: no authentication required.
	APIKeys []string `yaml:"api_keys"`

	// AdminKey protects the administrative endpoints. Empty disables the
	// admin surface.
	AdminKey string `yaml:"admin_key"`
}

// TelemetryConfig contains observability configuration.
type TelemetryConfig struct {
	// Logging contains structured logging configuration.
	Logging LoggingConfig `yaml:"logging"`

	// Metrics contains Prometheus metrics configuration.
	Metrics MetricsConfig `yaml:"metrics"`
}

// LoggingConfig contains structured logging configuration.
type LoggingConfig struct {
	// Level is the minimum log level: "debug", "info", "warn", "error".
	// Default: "info"
	Level string `yaml:"level"`

	// Format is the console output format: "text" or "json".
	// Default: "text"
	Format string `yaml:"format"`

	// File, when set, duplicates log output to this file as JSON lines.
	File string `yaml:"file"`

	// RedactCredentials masks credential secrets in log attributes.
	// Default: true
	RedactCredentials bool `yaml:"redact_credentials"`
}

// MetricsConfig contains Prometheus metrics configuration.
type MetricsConfig struct {
	// Enabled controls whether the /metrics endpoint is served.
	// Default: true
	Enabled bool `yaml:"enabled"`

	// Namespace is the metric name prefix. Default: "grok2aoi"
	Namespace string `yaml:"namespace"`

	// RequestDurationBuckets are the histogram buckets for request
	// durations in seconds.
	RequestDurationBuckets []float64 `yaml:"request_duration_buckets"`
}
