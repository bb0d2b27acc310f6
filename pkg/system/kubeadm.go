package system

import (
	"context"
	"fmt"
	"strings"
)

// Kubeadm wraps the cluster-bootstrap CLI. Implements Bootstrap.
type Kubeadm struct {
	run Runner
}

// NewKubeadm creates a kubeadm wrapper.
func NewKubeadm(run Runner) *Kubeadm {
	return &Kubeadm{run: run}
}

// ImageList returns the control-plane image refs for the given
// Kubernetes version, one per line of kubeadm output.
func (k *Kubeadm) ImageList(ctx context.Context, kubernetesVersion string) ([]string, error) {
	out, err := k.run.Output(ctx, "kubeadm", "config", "images", "list",
		"--kubernetes-version", "v"+strings.TrimPrefix(kubernetesVersion, "v"))
	if err != nil {
		return nil, fmt.Errorf("failed to list bootstrap images: %w", err)
	}

	var images []string
	for _, line := range strings.Split(out, "\n") {
		line = strings.TrimSpace(line)
		if line != "" {
			images = append(images, line)
		}
	}
	return images, nil
}
