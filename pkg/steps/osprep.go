package steps

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/nodeprep/nodeprep/pkg/config"
	"github.com/nodeprep/nodeprep/pkg/engine"
	"github.com/nodeprep/nodeprep/pkg/probe"
	"github.com/nodeprep/nodeprep/pkg/telemetry"
)

const kubernetesModulesConf = `overlay
br_netfilter
`

const kubernetesSysctlConf = `net.bridge.bridge-nf-call-iptables  = 1
net.bridge.bridge-nf-call-ip6tables = 1
net.ipv4.ip_forward                 = 1
`

var kernelModules = []string{"overlay", "br_netfilter"}

// NewOSPrepStep prepares the OS: hostname and timezone, swap off with a
// persistent fstab edit, kernel modules, and the sysctl keys kubelet and
// the CNI require.
func NewOSPrepStep(cfg *config.Config, d Deps) engine.Step {
	return engine.Step{
		Name:        NameOSPrep,
		Description: "prepare OS (swap, kernel modules, sysctl, identity)",
		Action: func(ctx context.Context) error {
			logger := telemetry.FromContext(ctx)

			// Host identity tweaks are nice-to-have, never run-stopping.
			if cfg.Hostname != "" {
				if current, err := os.Hostname(); err != nil || current != cfg.Hostname {
					if err := d.Runner.Run(ctx, "hostnamectl", "set-hostname", cfg.Hostname); err != nil {
						logger.WithError(err).Warn("failed to set hostname")
					}
				}
			}
			if cfg.Timezone != "" {
				if err := d.Runner.Run(ctx, "timedatectl", "set-timezone", cfg.Timezone); err != nil {
					logger.WithError(err).Warn("failed to set timezone")
				}
			}

			if d.Probes.SwapActive(ctx) {
				if err := d.Kernel.DisableSwap(ctx); err != nil {
					return engine.Fatal("failed to disable swap", err)
				}
				if err := removeSwapFromFstab(filepath.Join(cfg.RootDir, "etc/fstab")); err != nil {
					return engine.Fatal("failed to persist swap removal", err)
				}
			} else {
				logger.Debug("swap already disabled")
			}

			modulesConf := filepath.Join(cfg.RootDir, "etc/modules-load.d/kubernetes.conf")
			if !probe.FileContains(modulesConf, "br_netfilter") {
				if err := writeFile(modulesConf, kubernetesModulesConf, 0644); err != nil {
					return engine.Fatal("failed to persist kernel modules", err)
				}
			}
			for _, mod := range kernelModules {
				if d.Probes.KernelModuleLoaded(ctx, mod) {
					continue
				}
				if err := d.Kernel.LoadModule(ctx, mod); err != nil {
					return engine.Fatal(fmt.Sprintf("failed to load module %s", mod), err)
				}
			}

			sysctlConf := filepath.Join(cfg.RootDir, "etc/sysctl.d/99-kubernetes.conf")
			if !probe.FileContains(sysctlConf, "net.ipv4.ip_forward") {
				if err := writeFile(sysctlConf, kubernetesSysctlConf, 0644); err != nil {
					return engine.Fatal("failed to write sysctl configuration", err)
				}
				if err := d.Kernel.ApplySysctl(ctx); err != nil {
					return engine.Fatal("failed to apply sysctl configuration", err)
				}
			}

			return nil
		},
	}
}

// removeSwapFromFstab comments out swap entries so the device stays off
// across reboots.
func removeSwapFromFstab(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}

	lines := strings.Split(string(data), "\n")
	changed := false
	for i, line := range lines {
		trimmed := strings.TrimSpace(line)
		if trimmed == "" || strings.HasPrefix(trimmed, "#") {
			continue
		}
		fields := strings.Fields(trimmed)
		if len(fields) >= 3 && fields[2] == "swap" {
			lines[i] = "# " + line
			changed = true
		}
	}

	if !changed {
		return nil
	}
	return os.WriteFile(path, []byte(strings.Join(lines, "\n")), 0644)
}
