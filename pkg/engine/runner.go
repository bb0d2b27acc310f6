package engine

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/trace"

	"github.com/nodeprep/nodeprep/pkg/telemetry"
)

// Runner executes a fixed, ordered list of steps exactly once across the
// lifetime of the host.
//
// The declared order is the dependency order. There is no parallelism and
// no reordering: a fatal step failure stops the run before any later step
// is invoked. A step whose checkpoint exists is skipped without invoking
// its action at all, even to re-verify — recovery from out-of-band
// reversion of a completed step's effects is an explicit operator action
// (clearing the checkpoint), not something the runner detects.
type Runner struct {
	checkpoints CheckpointStore
	recorder    Recorder
	metrics     *telemetry.Metrics
	tracer      *telemetry.Tracer
}

// Option configures a Runner.
type Option func(*Runner)

// WithRecorder attaches a run-history recorder (the audit journal).
func WithRecorder(r Recorder) Option {
	return func(run *Runner) {
		run.recorder = r
	}
}

// WithMetrics attaches a metrics collector.
func WithMetrics(m *telemetry.Metrics) Option {
	return func(run *Runner) {
		run.metrics = m
	}
}

// WithTracer attaches a tracer emitting one span per run and per step.
func WithTracer(t *telemetry.Tracer) Option {
	return func(run *Runner) {
		run.tracer = t
	}
}

// NewRunner creates a runner backed by the given checkpoint store.
func NewRunner(checkpoints CheckpointStore, opts ...Option) *Runner {
	r := &Runner{checkpoints: checkpoints}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Run executes steps in order. It returns the fatal error of the first
// failing step, or nil when every step completed or was already
// checkpointed.
func (r *Runner) Run(ctx context.Context, steps []Step) error {
	if err := validateSteps(steps); err != nil {
		return err
	}

	logger := telemetry.FromContext(ctx)

	run := RunInfo{
		ID:        uuid.New().String(),
		StartedAt: time.Now(),
		Steps:     len(steps),
	}
	logger = logger.WithRunID(run.ID)
	ctx = logger.WithContext(ctx)

	r.record(ctx, func(rec Recorder) error { return rec.RunStarted(ctx, run) })
	if r.metrics != nil {
		r.metrics.RecordRunStarted()
	}
	runCtx := ctx
	if r.tracer != nil {
		spanCtx, span := r.tracer.StartRunSpan(ctx, run.ID)
		defer span.End()
		runCtx = spanCtx
	}

	for _, step := range steps {
		if err := runCtx.Err(); err != nil {
			return r.finish(ctx, run, fmt.Errorf("run interrupted: %w", err))
		}

		res, err := r.runStep(runCtx, step)
		r.record(ctx, func(rec Recorder) error { return rec.StepFinished(ctx, run.ID, res) })
		if r.metrics != nil {
			r.metrics.RecordStepExecuted(step.Name, string(res.Outcome), res.Duration)
		}
		if err != nil {
			return r.finish(ctx, run, err)
		}
	}

	return r.finish(ctx, run, nil)
}

// runStep executes one step, honoring the checkpoint-skip contract.
func (r *Runner) runStep(ctx context.Context, step Step) (StepResult, error) {
	logger := telemetry.FromContext(ctx).WithStep(step.Name)
	started := time.Now()

	if r.checkpoints.Exists(step.Name) {
		logger.Info("already completed, skipping")
		return StepResult{Step: step.Name, Outcome: OutcomeSkipped, StartedAt: started}, nil
	}

	logger.Infof("starting: %s", step.Description)

	stepCtx := logger.WithContext(ctx)
	var span trace.Span
	if r.tracer != nil {
		stepCtx, span = r.tracer.StartStepSpan(stepCtx, step.Name)
		defer span.End()
	}

	err := step.Action(stepCtx)
	duration := time.Since(started)

	res := StepResult{
		Step:      step.Name,
		StartedAt: started,
		Duration:  duration,
	}

	if err != nil && IsSoft(err) {
		// Warn-and-continue: the step still counts as complete.
		logger.WithError(err).Warn("completed with warning")
		res.Warning = err.Error()
		err = nil
	}

	if err != nil {
		var stepErr *StepError
		if !errors.As(err, &stepErr) {
			stepErr = Fatal("step failed", err)
		}
		stepErr.Step = step.Name

		logger.WithError(stepErr).Error("step failed, aborting run")
		if span != nil {
			telemetry.RecordError(span, stepErr)
		}
		res.Outcome = OutcomeFailed
		res.Err = stepErr
		return res, stepErr
	}
	if span != nil {
		telemetry.RecordSuccess(span)
	}

	// A failed mark degrades the tool to re-running this step next time,
	// never to aborting a run that did its work.
	if err := r.checkpoints.Mark(step.Name); err != nil {
		logger.WithError(err).Warn("failed to write checkpoint, step will re-run next time")
	}

	logger.Infof("completed in %s", duration.Round(time.Millisecond))
	res.Outcome = OutcomeCompleted
	return res, nil
}

// finish closes out the run record and returns runErr unchanged.
func (r *Runner) finish(ctx context.Context, run RunInfo, runErr error) error {
	status := RunCompleted
	if runErr != nil {
		status = RunFailed
	}

	r.record(ctx, func(rec Recorder) error { return rec.RunFinished(ctx, run.ID, status, runErr) })
	if r.metrics != nil {
		r.metrics.RecordRunCompleted(string(status), time.Since(run.StartedAt))
	}
	return runErr
}

// record invokes a recorder call, tolerating both a nil recorder and
// recorder failures. The journal is an audit trail, not a dependency.
func (r *Runner) record(ctx context.Context, fn func(Recorder) error) {
	if r.recorder == nil {
		return
	}
	if err := fn(r.recorder); err != nil {
		telemetry.FromContext(ctx).WithError(err).Warn("journal write failed")
	}
}

// validateSteps rejects duplicate or empty step names before anything runs.
func validateSteps(steps []Step) error {
	seen := make(map[string]struct{}, len(steps))
	for _, s := range steps {
		if s.Name == "" {
			return fmt.Errorf("step with empty name")
		}
		if s.Action == nil {
			return fmt.Errorf("step %s has no action", s.Name)
		}
		if _, dup := seen[s.Name]; dup {
			return fmt.Errorf("duplicate step name: %s", s.Name)
		}
		seen[s.Name] = struct{}{}
	}
	return nil
}
