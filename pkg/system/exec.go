package system

import (
	"context"
	"fmt"
	"os/exec"
	"strings"
)

// Runner executes external commands. The single seam through which every
// collaborator reaches the OS, replaced by a fake in tests.
type Runner interface {
	// Run executes a command, discarding output on success. On failure
	// the error includes the combined output.
	Run(ctx context.Context, name string, args ...string) error

	// Output executes a command and returns its trimmed stdout.
	Output(ctx context.Context, name string, args ...string) (string, error)
}

// execRunner shells out via os/exec.
type execRunner struct{}

// NewRunner returns the real command runner.
func NewRunner() Runner {
	return execRunner{}
}

func (execRunner) Run(ctx context.Context, name string, args ...string) error {
	out, err := exec.CommandContext(ctx, name, args...).CombinedOutput()
	if err != nil {
		return fmt.Errorf("%s %s: %w: %s", name, strings.Join(args, " "), err, strings.TrimSpace(string(out)))
	}
	return nil
}

func (execRunner) Output(ctx context.Context, name string, args ...string) (string, error) {
	out, err := exec.CommandContext(ctx, name, args...).Output()
	if err != nil {
		return "", fmt.Errorf("%s %s: %w", name, strings.Join(args, " "), err)
	}
	return strings.TrimSpace(string(out)), nil
}
