package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func writeConfigFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("failed to write config file: %v", err)
	}
	return path
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.Server.ListenAddress != DefaultListenAddress {
		t.Errorf("Server.ListenAddress = %q, want %q", cfg.Server.ListenAddress, DefaultListenAddress)
	}
	if cfg.Storage.Backend != DefaultStorageBackend {
		t.Errorf("Storage.Backend = %q, want %q", cfg.Storage.Backend, DefaultStorageBackend)
	}
	if cfg.Conversations.TTL != DefaultConversationTTL {
		t.Errorf("Conversations.TTL = %v, want %v", cfg.Conversations.TTL, DefaultConversationTTL)
	}
	if cfg.Conversations.MaxPerCredential != DefaultMaxPerCredential {
		t.Errorf("Conversations.MaxPerCredential = %d, want %d", cfg.Conversations.MaxPerCredential, DefaultMaxPerCredential)
	}
	if cfg.Batch.Workers != DefaultBatchWorkers {
		t.Errorf("Batch.Workers = %d, want %d", cfg.Batch.Workers, DefaultBatchWorkers)
	}
	if cfg.Batch.TaskRetention != DefaultTaskRetention {
		t.Errorf("Batch.TaskRetention = %v, want %v", cfg.Batch.TaskRetention, DefaultTaskRetention)
	}

	if err := Validate(cfg); err != nil {
		t.Errorf("Validate(DefaultConfig()) = %v, want nil", err)
	}
}

func TestLoadConfig(t *testing.T) {
	path := writeConfigFile(t, `
server:
  listen_address: "0.0.0.0:9999"
conversations:
  ttl: 1h
  max_per_credential: 10
  sweep_interval: 5m
storage:
  backend: bolt
  path: /tmp/test.bolt
telemetry:
  metrics:
    enabled: false
`)

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig() error = %v", err)
	}

	if cfg.Server.ListenAddress != "0.0.0.0:9999" {
		t.Errorf("Server.ListenAddress = %q, want %q", cfg.Server.ListenAddress, "0.0.0.0:9999")
	}
	if cfg.Conversations.TTL != time.Hour {
		t.Errorf("Conversations.TTL = %v, want 1h", cfg.Conversations.TTL)
	}
	if cfg.Conversations.MaxPerCredential != 10 {
		t.Errorf("Conversations.MaxPerCredential = %d, want 10", cfg.Conversations.MaxPerCredential)
	}
	if cfg.Storage.Backend != "bolt" {
		t.Errorf("Storage.Backend = %q, want bolt", cfg.Storage.Backend)
	}
	if cfg.Telemetry.Metrics.Enabled {
		t.Error("Telemetry.Metrics.Enabled = true, want false (explicitly disabled)")
	}

	// Unset sections fall back to defaults.
	if cfg.Upstream.BaseURL != DefaultUpstreamBaseURL {
		t.Errorf("Upstream.BaseURL = %q, want default %q", cfg.Upstream.BaseURL, DefaultUpstreamBaseURL)
	}
	if !cfg.Telemetry.Logging.RedactCredentials {
		t.Error("Telemetry.Logging.RedactCredentials = false, want default true")
	}
}

func TestLoadConfig_MissingFile(t *testing.T) {
	_, err := LoadConfig(filepath.Join(t.TempDir(), "nope.yaml"))
	if err == nil {
		t.Fatal("LoadConfig() error = nil, want error for missing file")
	}
}

func TestLoadConfig_InvalidYAML(t *testing.T) {
	path := writeConfigFile(t, "server: [not a mapping")
	_, err := LoadConfig(path)
	if err == nil {
		t.Fatal("LoadConfig() error = nil, want parse error")
	}
}

func TestLoadConfigWithEnvOverrides(t *testing.T) {
	path := writeConfigFile(t, `
server:
  listen_address: "127.0.0.1:8180"
`)

	t.Setenv("GROK2AOI_SERVER_LISTEN_ADDRESS", "0.0.0.0:7070")
	t.Setenv("GROK2AOI_CONVERSATIONS_TTL", "30m")
	t.Setenv("GROK2AOI_BATCH_WORKERS", "12")
	t.Setenv("GROK2AOI_AUTH_API_KEYS", "sk-a, sk-b,")

	cfg, err := LoadConfigWithEnvOverrides(path)
	if err != nil {
		t.Fatalf("LoadConfigWithEnvOverrides() error = %v", err)
	}

	if cfg.Server.ListenAddress != "0.0.0.0:7070" {
		t.Errorf("Server.ListenAddress = %q, want env override", cfg.Server.ListenAddress)
	}
	if cfg.Conversations.TTL != 30*time.Minute {
		t.Errorf("Conversations.TTL = %v, want 30m", cfg.Conversations.TTL)
	}
	if cfg.Batch.Workers != 12 {
		t.Errorf("Batch.Workers = %d, want 12", cfg.Batch.Workers)
	}
	if len(cfg.Auth.APIKeys) != 2 || cfg.Auth.APIKeys[0] != "sk-a" || cfg.Auth.APIKeys[1] != "sk-b" {
		t.Errorf("Auth.APIKeys = %v, want [sk-a sk-b]", cfg.Auth.APIKeys)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name      string
		mutate    func(*Config)
		wantField string
	}{
		{
			name:      "empty listen address",
			mutate:    func(c *Config) { c.Server.ListenAddress = "" },
			wantField: "server.listen_address",
		},
		{
			name:      "malformed listen address",
			mutate:    func(c *Config) { c.Server.ListenAddress = "no-port" },
			wantField: "server.listen_address",
		},
		{
			name:      "unknown storage backend",
			mutate:    func(c *Config) { c.Storage.Backend = "postgres" },
			wantField: "storage.backend",
		},
		{
			name:      "non-positive TTL",
			mutate:    func(c *Config) { c.Conversations.TTL = -time.Second },
			wantField: "conversations.ttl",
		},
		{
			name:      "zero max per credential",
			mutate:    func(c *Config) { c.Conversations.MaxPerCredential = -1 },
			wantField: "conversations.max_per_credential",
		},
		{
			name:      "zero batch workers",
			mutate:    func(c *Config) { c.Batch.Workers = -2 },
			wantField: "batch.workers",
		},
		{
			name:      "invalid upstream URL",
			mutate:    func(c *Config) { c.Upstream.BaseURL = "not a url" },
			wantField: "upstream.base_url",
		},
		{
			name:      "unknown log level",
			mutate:    func(c *Config) { c.Telemetry.Logging.Level = "verbose" },
			wantField: "telemetry.logging.level",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)

			err := Validate(cfg)
			if err == nil {
				t.Fatal("Validate() = nil, want error")
			}

			var verr ValidationError
			ok := false
			if v, isVE := err.(ValidationError); isVE {
				verr = v
				ok = true
			}
			if !ok {
				t.Fatalf("Validate() error type = %T, want ValidationError", err)
			}

			found := false
			for _, fe := range verr.Errors {
				if fe.Field == tt.wantField {
					found = true
				}
			}
			if !found {
				t.Errorf("ValidationError missing field %q, got %v", tt.wantField, verr.Errors)
			}
		})
	}
}

func TestValidationErrorMessage(t *testing.T) {
	err := ValidationError{Errors: []FieldError{
		{Field: "a.b", Message: "bad"},
		{Field: "c.d", Message: "worse"},
	}}

	msg := err.Error()
	if !strings.Contains(msg, "2 errors") {
		t.Errorf("Error() = %q, want mention of 2 errors", msg)
	}
	if !strings.Contains(msg, "a.b: bad") || !strings.Contains(msg, "c.d: worse") {
		t.Errorf("Error() = %q, want both field errors listed", msg)
	}
}
