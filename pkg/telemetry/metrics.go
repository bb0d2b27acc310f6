package telemetry

import (
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics provides Prometheus metrics for nodeprep.
type Metrics struct {
	config MetricsConfig

	// Run metrics
	runsStarted   prometheus.Counter
	runsCompleted *prometheus.CounterVec
	runDuration   prometheus.Histogram

	// Step metrics
	stepsExecuted *prometheus.CounterVec
	stepDuration  *prometheus.HistogramVec

	// Fetcher metrics
	fetchAttempts *prometheus.CounterVec
	fetchFailures *prometheus.CounterVec

	// Readiness gate metrics
	readinessWait *prometheus.HistogramVec

	registry *prometheus.Registry
}

// NewMetrics creates a new metrics collector with the given configuration.
func NewMetrics(cfg MetricsConfig) (*Metrics, error) {
	if !cfg.Enabled {
		// Return a no-op metrics instance
		return &Metrics{config: cfg}, nil
	}

	namespace := cfg.Namespace
	registry := prometheus.NewRegistry()

	m := &Metrics{
		config:   cfg,
		registry: registry,

		runsStarted: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "runs_started_total",
				Help:      "Total number of provisioning runs started",
			},
		),
		runsCompleted: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "runs_completed_total",
				Help:      "Total number of provisioning runs completed",
			},
			[]string{"status"},
		),
		runDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "run_duration_seconds",
				Help:      "Duration of full provisioning runs",
				Buckets:   []float64{1, 5, 15, 30, 60, 120, 300, 600, 1200},
			},
		),
		stepsExecuted: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "steps_executed_total",
				Help:      "Total number of steps by outcome (completed, skipped, failed)",
			},
			[]string{"step", "outcome"},
		),
		stepDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "step_duration_seconds",
				Help:      "Duration of step actions",
				Buckets:   []float64{0.1, 0.5, 1, 5, 15, 30, 60, 120, 300},
			},
			[]string{"step"},
		),
		fetchAttempts: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "fetch_attempts_total",
				Help:      "Total number of artifact download attempts",
			},
			[]string{"host"},
		),
		fetchFailures: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "fetch_failures_total",
				Help:      "Total number of failed artifact downloads (after retries)",
			},
			[]string{"host"},
		),
		readinessWait: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "readiness_wait_seconds",
				Help:      "Time spent waiting for dependencies to become ready",
				Buckets:   []float64{0.1, 0.5, 1, 5, 15, 30, 60, 120},
			},
			[]string{"gate"},
		),
	}

	collectors := []prometheus.Collector{
		m.runsStarted,
		m.runsCompleted,
		m.runDuration,
		m.stepsExecuted,
		m.stepDuration,
		m.fetchAttempts,
		m.fetchFailures,
		m.readinessWait,
	}
	for _, c := range collectors {
		if err := registry.Register(c); err != nil {
			return nil, fmt.Errorf("failed to register collector: %w", err)
		}
	}

	return m, nil
}

// RecordRunStarted records the start of a provisioning run.
func (m *Metrics) RecordRunStarted() {
	if m == nil || m.registry == nil {
		return
	}
	m.runsStarted.Inc()
}

// RecordRunCompleted records a run completion with its terminal status.
func (m *Metrics) RecordRunCompleted(status string, duration time.Duration) {
	if m == nil || m.registry == nil {
		return
	}
	m.runsCompleted.WithLabelValues(status).Inc()
	m.runDuration.Observe(duration.Seconds())
}

// RecordStepExecuted records a step outcome.
func (m *Metrics) RecordStepExecuted(step, outcome string, duration time.Duration) {
	if m == nil || m.registry == nil {
		return
	}
	m.stepsExecuted.WithLabelValues(step, outcome).Inc()
	if outcome != "skipped" {
		m.stepDuration.WithLabelValues(step).Observe(duration.Seconds())
	}
}

// RecordFetchAttempt records a single download attempt against a host.
func (m *Metrics) RecordFetchAttempt(host string) {
	if m == nil || m.registry == nil {
		return
	}
	m.fetchAttempts.WithLabelValues(host).Inc()
}

// RecordFetchFailure records an exhausted download.
func (m *Metrics) RecordFetchFailure(host string) {
	if m == nil || m.registry == nil {
		return
	}
	m.fetchFailures.WithLabelValues(host).Inc()
}

// RecordReadinessWait records time spent in a readiness gate.
func (m *Metrics) RecordReadinessWait(gate string, duration time.Duration) {
	if m == nil || m.registry == nil {
		return
	}
	m.readinessWait.WithLabelValues(gate).Observe(duration.Seconds())
}

// Handler returns an HTTP handler serving the metrics registry.
func (m *Metrics) Handler() http.Handler {
	if m == nil || m.registry == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// StartMetricsServer starts the metrics HTTP server if a listen address
// is configured. The server runs until the process exits.
func (m *Metrics) StartMetricsServer() error {
	if m.registry == nil || m.config.ListenAddress == "" {
		return nil
	}

	path := m.config.Path
	if path == "" {
		path = "/metrics"
	}

	mux := http.NewServeMux()
	mux.Handle(path, m.Handler())

	go func() {
		// Serving metrics is best-effort; a failed listener never fails a run.
		_ = http.ListenAndServe(m.config.ListenAddress, mux)
	}()

	return nil
}
