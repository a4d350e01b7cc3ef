package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// LoadConfig loads configuration from a YAML file at the specified path.
// It applies default values, validates the configuration, and returns any
// errors. Environment variables are not consulted; use
// LoadConfigWithEnvOverrides for that.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read configuration file %q: %w", path, err)
	}

	cfg, err := ParseConfig(data)
	if err != nil {
		return nil, fmt.Errorf("failed to parse configuration file %q: %w", path, err)
	}

	if err := Validate(cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

// ParseConfig parses YAML configuration bytes and applies defaults.
// The result is not validated.
func ParseConfig(data []byte) (*Config, error) {
	// Booleans that default to true are seeded before unmarshalling so an
	// absent key keeps the default while an explicit "false" wins.
	cfg := Config{}
	cfg.Telemetry.Metrics.Enabled = true
	cfg.Telemetry.Logging.RedactCredentials = true
	cfg.Credentials.Watch = true

	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}

	ApplyDefaults(&cfg)
	return &cfg, nil
}

// LoadConfigWithEnvOverrides loads configuration from a YAML file and
// applies environment variable overrides. Variables follow the naming
// convention GROK2AOI_SECTION_FIELD (e.g. GROK2AOI_SERVER_LISTEN_ADDRESS)
// and always take precedence over file-based configuration.
func LoadConfigWithEnvOverrides(path string) (*Config, error) {
	cfg, err := LoadConfig(path)
	if err != nil {
		return nil, err
	}

	applyEnvOverrides(cfg)

	if err := Validate(cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed after environment overrides: %w", err)
	}

	return cfg, nil
}

// applyEnvOverrides applies environment variable overrides to the
// configuration.
func applyEnvOverrides(cfg *Config) {
	// Server overrides
	if val := os.Getenv("GROK2AOI_SERVER_LISTEN_ADDRESS"); val != "" {
		cfg.Server.ListenAddress = val
	}
	overrideDuration("GROK2AOI_SERVER_READ_TIMEOUT", &cfg.Server.ReadTimeout)
	overrideDuration("GROK2AOI_SERVER_WRITE_TIMEOUT", &cfg.Server.WriteTimeout)
	overrideDuration("GROK2AOI_SERVER_SHUTDOWN_TIMEOUT", &cfg.Server.ShutdownTimeout)

	// Storage overrides
	if val := os.Getenv("GROK2AOI_STORAGE_BACKEND"); val != "" {
		cfg.Storage.Backend = val
	}
	if val := os.Getenv("GROK2AOI_STORAGE_PATH"); val != "" {
		cfg.Storage.Path = val
	}

	// Conversation overrides
	overrideDuration("GROK2AOI_CONVERSATIONS_TTL", &cfg.Conversations.TTL)
	overrideInt("GROK2AOI_CONVERSATIONS_MAX_PER_CREDENTIAL", &cfg.Conversations.MaxPerCredential)
	overrideDuration("GROK2AOI_CONVERSATIONS_SWEEP_INTERVAL", &cfg.Conversations.SweepInterval)

	// Credential overrides
	if val := os.Getenv("GROK2AOI_CREDENTIALS_FILE"); val != "" {
		cfg.Credentials.File = val
	}

	// Batch overrides
	overrideInt("GROK2AOI_BATCH_WORKERS", &cfg.Batch.Workers)
	overrideDuration("GROK2AOI_BATCH_TASK_RETENTION", &cfg.Batch.TaskRetention)

	// Upstream overrides
	if val := os.Getenv("GROK2AOI_UPSTREAM_BASE_URL"); val != "" {
		cfg.Upstream.BaseURL = val
	}
	overrideDuration("GROK2AOI_UPSTREAM_TIMEOUT", &cfg.Upstream.Timeout)

	// Auth overrides
	if val := os.Getenv("GROK2AOI_AUTH_API_KEYS"); val != "" {
		keys := strings.Split(val, ",")
		cfg.Auth.APIKeys = cfg.Auth.APIKeys[:0]
		for _, k := range keys {
			if k = strings.TrimSpace(k); k != "" {
				cfg.Auth.APIKeys = append(cfg.Auth.APIKeys, k)
			}
		}
	}
	if val := os.Getenv("GROK2AOI_AUTH_ADMIN_KEY"); val != "" {
		cfg.Auth.AdminKey = val
	}

	// Telemetry overrides
	if val := os.Getenv("GROK2AOI_LOG_LEVEL"); val != "" {
		cfg.Telemetry.Logging.Level = val
	}
	if val := os.Getenv("GROK2AOI_LOG_FORMAT"); val != "" {
		cfg.Telemetry.Logging.Format = val
	}
	if val := os.Getenv("GROK2AOI_LOG_FILE"); val != "" {
		cfg.Telemetry.Logging.File = val
	}
	if val := os.Getenv("GROK2AOI_METRICS_ENABLED"); val != "" {
		if b, err := strconv.ParseBool(val); err == nil {
			cfg.Telemetry.Metrics.Enabled = b
		}
	}
}

func overrideDuration(name string, dst *time.Duration) {
	if val := os.Getenv(name); val != "" {
		if d, err := time.ParseDuration(val); err == nil {
			*dst = d
		}
	}
}

func overrideInt(name string, dst *int) {
	if val := os.Getenv(name); val != "" {
		if n, err := strconv.Atoi(val); err == nil {
			*dst = n
		}
	}
}
