// Package health provides liveness and readiness probes for the
// gateway.
//
// Liveness answers "is the process running" and never touches
// dependencies. Readiness runs the registered component checks (blob
// store, credential pool) concurrently and degrades when any of them
// fail, so an orchestrator can hold traffic without killing the
// process.
package health
