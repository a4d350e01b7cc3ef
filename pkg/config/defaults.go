package config

import "time"

// Default values for configuration fields.
const (
	// Server defaults
	DefaultListenAddress   = "127.0.0.1:8180"
	DefaultReadTimeout     = 30 * time.Second
	DefaultWriteTimeout    = 300 * time.Second
	DefaultIdleTimeout     = 120 * time.Second
	DefaultShutdownTimeout = 30 * time.Second
	DefaultMaxHeaderBytes  = 1048576 // 1MB

	// Storage defaults
	DefaultStorageBackend     = "sqlite"
	DefaultStoragePath        = "data/grok2aoi.db"
	DefaultStorageBusyTimeout = 5 * time.Second

	// Conversation defaults
	DefaultConversationTTL   = 2 * time.Hour
	DefaultMaxPerCredential  = 100
	DefaultSweepInterval     = 10 * time.Minute

	// Credential defaults
	DefaultCredentialFile  = "data/credentials.json"
	DefaultWatchDebounce   = 500 * time.Millisecond

	// Batch defaults
	DefaultBatchWorkers  = 5
	DefaultTaskRetention = 5 * time.Minute

	// Upstream defaults
	DefaultUpstreamBaseURL = "https://grok.com"
	DefaultUpstreamTimeout = 120 * time.Second

	// Telemetry defaults
	DefaultLogLevel         = "info"
	DefaultLogFormat        = "text"
	DefaultMetricsNamespace = "grok2aoi"
)

// DefaultRequestDurationBuckets are the default histogram buckets for
// request durations in seconds. Upstream chat calls routinely take tens
// of seconds, so the buckets reach further than typical HTTP defaults.
var DefaultRequestDurationBuckets = []float64{0.1, 0.5, 1, 2.5, 5, 10, 30, 60, 120}

// DefaultConfig returns a configuration populated with all default values.
func DefaultConfig() *Config {
	cfg := &Config{}
	ApplyDefaults(cfg)
	return cfg
}

// ApplyDefaults fills in default values for any zero-valued fields.
// Explicitly configured values are never overwritten.
func ApplyDefaults(cfg *Config) {
	// Server
	if cfg.Server.ListenAddress == "" {
		cfg.Server.ListenAddress = DefaultListenAddress
	}
	if cfg.Server.ReadTimeout == 0 {
		cfg.Server.ReadTimeout = DefaultReadTimeout
	}
	if cfg.Server.WriteTimeout == 0 {
		cfg.Server.WriteTimeout = DefaultWriteTimeout
	}
	if cfg.Server.IdleTimeout == 0 {
		cfg.Server.IdleTimeout = DefaultIdleTimeout
	}
	if cfg.Server.ShutdownTimeout == 0 {
		cfg.Server.ShutdownTimeout = DefaultShutdownTimeout
	}
	if cfg.Server.MaxHeaderBytes == 0 {
		cfg.Server.MaxHeaderBytes = DefaultMaxHeaderBytes
	}

	// Storage
	if cfg.Storage.Backend == "" {
		cfg.Storage.Backend = DefaultStorageBackend
	}
	if cfg.Storage.Path == "" {
		cfg.Storage.Path = DefaultStoragePath
	}
	if cfg.Storage.BusyTimeout == 0 {
		cfg.Storage.BusyTimeout = DefaultStorageBusyTimeout
	}

	// Conversations
	if cfg.Conversations.TTL == 0 {
		cfg.Conversations.TTL = DefaultConversationTTL
	}
	if cfg.Conversations.MaxPerCredential == 0 {
		cfg.Conversations.MaxPerCredential = DefaultMaxPerCredential
	}
	if cfg.Conversations.SweepInterval == 0 {
		cfg.Conversations.SweepInterval = DefaultSweepInterval
	}

	// Credentials
	if cfg.Credentials.File == "" {
		cfg.Credentials.File = DefaultCredentialFile
	}
	if cfg.Credentials.WatchDebounce == 0 {
		cfg.Credentials.WatchDebounce = DefaultWatchDebounce
	}

	// Batch
	if cfg.Batch.Workers == 0 {
		cfg.Batch.Workers = DefaultBatchWorkers
	}
	if cfg.Batch.TaskRetention == 0 {
		cfg.Batch.TaskRetention = DefaultTaskRetention
	}

	// Upstream
	if cfg.Upstream.BaseURL == "" {
		cfg.Upstream.BaseURL = DefaultUpstreamBaseURL
	}
	if cfg.Upstream.Timeout == 0 {
		cfg.Upstream.Timeout = DefaultUpstreamTimeout
	}

	// Telemetry
	if cfg.Telemetry.Logging.Level == "" {
		cfg.Telemetry.Logging.Level = DefaultLogLevel
	}
	if cfg.Telemetry.Logging.Format == "" {
		cfg.Telemetry.Logging.Format = DefaultLogFormat
	}
	if cfg.Telemetry.Metrics.Namespace == "" {
		cfg.Telemetry.Metrics.Namespace = DefaultMetricsNamespace
	}
	if cfg.Telemetry.Metrics.RequestDurationBuckets == nil {
		cfg.Telemetry.Metrics.RequestDurationBuckets = DefaultRequestDurationBuckets
	}
}
