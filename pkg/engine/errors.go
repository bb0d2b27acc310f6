// Package engine provides the checkpointed step runner at the core of
// nodeprep. Steps execute strictly sequentially in the order they are
// registered; a completed step is recorded in the checkpoint store and
// skipped on subsequent runs.
package engine

import (
	"errors"
	"fmt"
)

// Severity classifies a step error for the runner's continue/abort decision.
type Severity string

const (
	// SeverityFatal aborts the entire run. No later step executes and the
	// failing step's checkpoint is never written.
	SeverityFatal Severity = "fatal"

	// SeveritySoft is logged as a warning. The step is still considered
	// complete and its checkpoint is written.
	SeveritySoft Severity = "soft"
)

// StepError is an error raised by a step action, tagged with the
// fatal/soft classification chosen at the call site.
type StepError struct {
	// Severity decides whether the run aborts.
	Severity Severity

	// Message is the human-readable error message.
	Message string

	// Step is the step name, filled in by the runner.
	Step string

	// Err is the underlying error.
	Err error
}

// Error implements the error interface.
func (e *StepError) Error() string {
	if e.Step != "" {
		return fmt.Sprintf("[%s] step %s: %s%s", e.Severity, e.Step, e.Message, e.unwrapSuffix())
	}
	return fmt.Sprintf("[%s] %s%s", e.Severity, e.Message, e.unwrapSuffix())
}

// Unwrap returns the underlying error for error chain inspection.
func (e *StepError) Unwrap() error {
	return e.Err
}

func (e *StepError) unwrapSuffix() string {
	if e.Err != nil {
		return ": " + e.Err.Error()
	}
	return ""
}

// Fatal wraps err as a run-aborting error.
func Fatal(message string, err error) *StepError {
	return &StepError{Severity: SeverityFatal, Message: message, Err: err}
}

// Fatalf formats a run-aborting error.
func Fatalf(format string, args ...interface{}) *StepError {
	return &StepError{Severity: SeverityFatal, Message: fmt.Sprintf(format, args...)}
}

// Soft wraps err as a warn-and-continue error.
func Soft(message string, err error) *StepError {
	return &StepError{Severity: SeveritySoft, Message: message, Err: err}
}

// Softf formats a warn-and-continue error.
func Softf(format string, args ...interface{}) *StepError {
	return &StepError{Severity: SeveritySoft, Message: fmt.Sprintf(format, args...)}
}

// IsSoft reports whether err is classified as warn-and-continue.
// Untagged errors are treated as fatal: the step author must opt in to
// the soft classification explicitly.
func IsSoft(err error) bool {
	var e *StepError
	if errors.As(err, &e) {
		return e.Severity == SeveritySoft
	}
	return false
}

// IsFatal reports whether err aborts the run. Any error that is not
// explicitly soft is fatal.
func IsFatal(err error) bool {
	return err != nil && !IsSoft(err)
}
