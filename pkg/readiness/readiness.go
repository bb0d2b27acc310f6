// Package readiness provides the bounded polling wait used to sequence
// steps behind a dependency: the container runtime must answer CRI
// queries before images are pulled, and a socket file must exist before
// the runtime is declared installed.
package readiness

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"
)

// ErrTimeout is returned when the probe never succeeded within the
// timeout. Callers gating mandatory work treat this as fatal; there is
// no silent continuation with an unready dependency.
var ErrTimeout = errors.New("readiness timeout")

// Probe answers whether the awaited condition currently holds. It must
// be side-effect-free and safe to call repeatedly.
type Probe func(ctx context.Context) bool

// Wait polls probe every interval until it returns true or timeout
// elapses. The probe is tried immediately before the first sleep.
func Wait(ctx context.Context, probe Probe, timeout, interval time.Duration) error {
	deadline := time.NewTimer(timeout)
	defer deadline.Stop()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	if probe(ctx) {
		return nil
	}

	for {
		select {
		case <-ctx.Done():
			return fmt.Errorf("readiness wait interrupted: %w", ctx.Err())
		case <-deadline.C:
			return fmt.Errorf("%w: condition not met within %s", ErrTimeout, timeout)
		case <-ticker.C:
			if probe(ctx) {
				return nil
			}
		}
	}
}

// SocketProbe returns a probe that succeeds once path exists.
func SocketProbe(path string) Probe {
	return func(context.Context) bool {
		_, err := os.Stat(path)
		return err == nil
	}
}
