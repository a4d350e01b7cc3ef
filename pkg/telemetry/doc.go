// Package telemetry groups the observability concerns of the gateway.
//
//   - logging: structured slog setup with credential redaction
//   - metrics: Prometheus metrics collection
//   - health: liveness and readiness probes
package telemetry
