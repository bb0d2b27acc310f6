package engine

import (
	"context"
	"time"
)

// Step is one named, ordered unit of provisioning work.
//
// Names are stable identifiers: the checkpoint store keys on them, so
// renaming a step orphans its checkpoint and forces re-execution.
type Step struct {
	// Name is the unique stable identifier (e.g. "step3-containerd").
	Name string

	// Description is a human-readable summary for logs.
	Description string

	// Action performs the work. It is expected to be internally
	// idempotent: probe first, then only do what is still missing.
	Action func(ctx context.Context) error
}

// Outcome is the terminal state of a step within one run.
type Outcome string

const (
	OutcomeCompleted Outcome = "completed"
	OutcomeSkipped   Outcome = "skipped"
	OutcomeFailed    Outcome = "failed"
)

// RunStatus is the terminal state of a whole run.
type RunStatus string

const (
	RunCompleted RunStatus = "completed"
	RunFailed    RunStatus = "failed"
)

// StepResult describes how a single step ended.
type StepResult struct {
	Step      string
	Outcome   Outcome
	StartedAt time.Time
	Duration  time.Duration

	// Warning holds the message of a soft error that was tolerated.
	Warning string

	// Err is set when Outcome is OutcomeFailed.
	Err error
}

// RunInfo identifies one invocation of the full step sequence.
type RunInfo struct {
	ID        string
	StartedAt time.Time
	Steps     int
}

// CheckpointStore is the durable record of completed steps.
type CheckpointStore interface {
	// Exists reports whether the named step has a completion marker.
	Exists(name string) bool

	// Mark records the named step as completed.
	Mark(name string) error
}

// Recorder receives the run history for the audit journal. All methods
// are best-effort: the runner logs and ignores their errors.
type Recorder interface {
	RunStarted(ctx context.Context, run RunInfo) error
	StepFinished(ctx context.Context, runID string, result StepResult) error
	RunFinished(ctx context.Context, runID string, status RunStatus, runErr error) error
}
