package steps

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/nodeprep/nodeprep/pkg/config"
	"github.com/nodeprep/nodeprep/pkg/engine"
	"github.com/nodeprep/nodeprep/pkg/readiness"
	"github.com/nodeprep/nodeprep/pkg/telemetry"
)

// NewPreloadImagesStep pulls the control-plane images through the
// runtime so a later kubeadm join does not depend on registry access.
// The runtime must answer CRI queries first; pulling into an unready
// runtime is not attempted.
func NewPreloadImagesStep(cfg *config.Config, d Deps) engine.Step {
	return engine.Step{
		Name:        NamePreloadImages,
		Description: "preload Kubernetes images",
		Action: func(ctx context.Context) error {
			logger := telemetry.FromContext(ctx)

			waitStart := time.Now()
			err := readiness.Wait(ctx, func(ctx context.Context) bool {
				return d.Runtime.Info(ctx) == nil
			}, cfg.ReadinessTimeout, cfg.ReadinessInterval)
			d.Metrics.RecordReadinessWait("runtime-cri", time.Since(waitStart))
			if err != nil {
				return engine.Fatal("container runtime never became ready", err)
			}

			kubeadmVersion := packageBaseVersion(d.Probes.PackageVersion(ctx, "kubeadm"))
			if kubeadmVersion == "" {
				return engine.Fatal("kubeadm is not installed, cannot determine image list", nil)
			}

			images, err := d.Bootstrap.ImageList(ctx, kubeadmVersion)
			if err != nil {
				return engine.Fatal("failed to list required images", err)
			}

			for _, ref := range images {
				logger.Infof("pulling %s", ref)
				if err := d.Runtime.PullImage(ctx, ref); err != nil {
					return engine.Fatal(fmt.Sprintf("failed to pull %s", ref), err)
				}
			}
			logger.Infof("preloaded %d images", len(images))

			return nil
		},
	}
}

// packageBaseVersion strips the Debian revision suffix ("1.28.3-1.1")
// down to the upstream version kubeadm expects.
func packageBaseVersion(v string) string {
	if i := strings.IndexByte(v, '-'); i >= 0 {
		return v[:i]
	}
	return v
}
