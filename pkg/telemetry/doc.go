// Package telemetry provides structured logging, Prometheus metrics, and
// OpenTelemetry tracing for nodeprep.
//
// The logger is a thin wrapper around zerolog that supports component
// child loggers and context embedding. Metrics cover the step runner
// (executed/skipped/failed, durations), the network fetcher, and the
// readiness gate. Tracing emits one span per run and one per step; it is
// disabled by default and typically enabled with the stdout exporter for
// debugging.
package telemetry
