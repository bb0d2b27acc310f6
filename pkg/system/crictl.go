package system

import (
	"context"
)

// Crictl talks to the container runtime over its CRI socket via the
// crictl CLI. Implements RuntimeCLI.
type Crictl struct {
	run    Runner
	socket string
}

// NewCrictl creates a CRI client for the runtime socket at socketPath.
func NewCrictl(run Runner, socketPath string) *Crictl {
	return &Crictl{run: run, socket: socketPath}
}

// Info queries the runtime status endpoint. A nil error means the
// runtime is up and answering CRI queries.
func (c *Crictl) Info(ctx context.Context) error {
	return c.run.Run(ctx, "crictl", "--runtime-endpoint", "unix://"+c.socket, "info")
}

// PullImage pulls ref through the runtime.
func (c *Crictl) PullImage(ctx context.Context, ref string) error {
	return c.run.Run(ctx, "crictl", "--runtime-endpoint", "unix://"+c.socket, "pull", ref)
}
