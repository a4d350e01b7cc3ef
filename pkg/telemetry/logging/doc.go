// Package logging provides structured logging setup for the gateway.
//
// It builds a slog.Logger from configuration: text or JSON output on
// stderr, an optional JSON log file fed through a fan-out handler, and an
// optional redaction layer that masks credential secrets before they reach
// any output. Components derive their own loggers with
// logger.With("component", ...).
package logging
