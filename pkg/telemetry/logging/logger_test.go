package logging

import (
	"log/slog"
	"path/filepath"
	"testing"

	"github.com/Tivon521/grok2aoi/pkg/config"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		input   string
		want    slog.Level
		wantErr bool
	}{
		{input: "debug", want: slog.LevelDebug},
		{input: "info", want: slog.LevelInfo},
		{input: "", want: slog.LevelInfo},
		{input: "warn", want: slog.LevelWarn},
		{input: "WARNING", want: slog.LevelWarn},
		{input: "error", want: slog.LevelError},
		{input: "verbose", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := parseLevel(tt.input)
			if (err != nil) != tt.wantErr {
				t.Fatalf("parseLevel(%q) error = %v, wantErr %v", tt.input, err, tt.wantErr)
			}
			if !tt.wantErr && got != tt.want {
				t.Errorf("parseLevel(%q) = %v, want %v", tt.input, got, tt.want)
			}
		})
	}
}

func TestSetup(t *testing.T) {
	logger, closeFn, err := Setup(config.LoggingConfig{
		Level:             "debug",
		Format:            "json",
		File:              filepath.Join(t.TempDir(), "gateway.log"),
		RedactCredentials: true,
	})
	if err != nil {
		t.Fatalf("Setup() error = %v", err)
	}
	defer closeFn()

	if logger == nil {
		t.Fatal("Setup() returned nil logger")
	}
	logger.Debug("setup works", "credential", "sso=shouldnotleak")
}

func TestSetup_BadLevel(t *testing.T) {
	_, _, err := Setup(config.LoggingConfig{Level: "shout", Format: "text"})
	if err == nil {
		t.Fatal("Setup() error = nil, want error for unknown level")
	}
}

func TestSetup_BadFormat(t *testing.T) {
	_, _, err := Setup(config.LoggingConfig{Level: "info", Format: "xml"})
	if err == nil {
		t.Fatal("Setup() error = nil, want error for unknown format")
	}
}
