package logging

import (
	"fmt"
	"log/slog"
	"os"
	"strings"

	slogmulti "github.com/samber/slog-multi"

	"github.com/Tivon521/grok2aoi/pkg/config"
)

// Setup builds the process logger from configuration and installs it as
// the slog default. It returns the logger and a close function that
// releases the log file, if one was opened.
func Setup(cfg config.LoggingConfig) (*slog.Logger, func() error, error) {
	level, err := parseLevel(cfg.Level)
	if err != nil {
		return nil, nil, err
	}

	opts := &slog.HandlerOptions{Level: level}

	var console slog.Handler
	switch strings.ToLower(cfg.Format) {
	case "json":
		console = slog.NewJSONHandler(os.Stderr, opts)
	case "text", "":
		console = slog.NewTextHandler(os.Stderr, opts)
	default:
		return nil, nil, fmt.Errorf("unknown log format %q", cfg.Format)
	}

	handler := console
	closeFn := func() error { return nil }

	if cfg.File != "" {
		file, err := os.OpenFile(cfg.File, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			// Console-only fallback; file logging is not worth refusing to start over.
			slog.Warn("failed to open log file, console only", "file", cfg.File, "error", err)
		} else {
			fileHandler := slog.NewJSONHandler(file, opts)
			handler = slogmulti.Fanout(console, fileHandler)
			closeFn = file.Close
		}
	}

	if cfg.RedactCredentials {
		handler = NewRedactHandler(handler, NewRedactor())
	}

	logger := slog.New(handler)
	slog.SetDefault(logger)
	return logger, closeFn, nil
}

// parseLevel converts a level string to a slog.Level.
func parseLevel(levelStr string) (slog.Level, error) {
	switch strings.ToLower(levelStr) {
	case "debug":
		return slog.LevelDebug, nil
	case "info", "":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, fmt.Errorf("unknown log level %q", levelStr)
	}
}
