// Package metrics provides Prometheus instrumentation for the gateway.
//
// The Collector owns a private registry and groups the metric families by
// concern: request traffic, conversation correlation, and credential pool
// health. Components record through typed methods, never through raw
// prometheus calls, so label sets stay consistent.
package metrics
