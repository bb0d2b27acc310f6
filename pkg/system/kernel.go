package system

import (
	"context"
	"os"
	"path/filepath"
	"strings"
)

// ProcKernel adjusts kernel state via modprobe, sysctl, and swapoff,
// probing current state through /proc. Implements Kernel.
type ProcKernel struct {
	run Runner

	// Root prefixes the /proc paths read by probes. Defaults to "/".
	Root string
}

// NewKernel creates the kernel collaborator.
func NewKernel(run Runner) *ProcKernel {
	return &ProcKernel{run: run, Root: "/"}
}

// ModuleLoaded reads /proc/modules for the named module.
func (k *ProcKernel) ModuleLoaded(ctx context.Context, name string) (bool, error) {
	data, err := os.ReadFile(filepath.Join(k.Root, "proc/modules"))
	if err != nil {
		return false, err
	}
	for _, line := range strings.Split(string(data), "\n") {
		if fields := strings.Fields(line); len(fields) > 0 && fields[0] == name {
			return true, nil
		}
	}
	return false, nil
}

// LoadModule loads a kernel module now.
func (k *ProcKernel) LoadModule(ctx context.Context, name string) error {
	return k.run.Run(ctx, "modprobe", name)
}

// ApplySysctl re-reads all sysctl configuration files.
func (k *ProcKernel) ApplySysctl(ctx context.Context) error {
	return k.run.Run(ctx, "sysctl", "--system")
}

// SwapActive reports whether /proc/swaps lists any device.
func (k *ProcKernel) SwapActive(ctx context.Context) (bool, error) {
	data, err := os.ReadFile(filepath.Join(k.Root, "proc/swaps"))
	if err != nil {
		return false, err
	}
	// First line is the header
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	return len(lines) > 1, nil
}

// DisableSwap turns off all swap devices.
func (k *ProcKernel) DisableSwap(ctx context.Context) error {
	return k.run.Run(ctx, "swapoff", "-a")
}
