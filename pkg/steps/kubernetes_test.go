package steps

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/nodeprep/nodeprep/pkg/engine"
	"github.com/nodeprep/nodeprep/pkg/version"
)

func TestKubernetesInstallsResolvedVersion(t *testing.T) {
	srv := archiveServer(t)
	defer srv.Close()

	env := newTestEnv(t, srv)
	env.cfg.KubernetesVersion = "1.28"
	env.packages.available = []string{"1.29.1-1.1", "1.28.5-1.1", "1.28.4-1.1"}

	step := NewKubernetesStep(env.cfg, env.deps)
	if err := step.Action(context.Background()); err != nil {
		t.Fatalf("step failed: %v", err)
	}

	for _, comp := range []string{"kubelet", "kubeadm", "kubectl"} {
		if v := env.packages.installed[comp]; v != "1.28.5-1.1" {
			t.Errorf("expected %s at 1.28.5-1.1, got %q", comp, v)
		}
	}
	if len(env.packages.held) != 3 {
		t.Errorf("expected all components held, got %v", env.packages.held)
	}
	if len(env.services.enabled) != 1 || env.services.enabled[0] != "kubelet" {
		t.Errorf("expected kubelet enabled, got %v", env.services.enabled)
	}
	if len(env.repo.ensured) != 1 || env.repo.ensured[0] != "kubernetes" {
		t.Errorf("expected kubernetes repo configured, got %v", env.repo.ensured)
	}
	if !strings.Contains(env.repo.repoLine, "signed-by=/etc/apt/keyrings/kubernetes.gpg") {
		t.Errorf("repo line missing signed-by clause: %s", env.repo.repoLine)
	}
}

func TestKubernetesSkipsAlreadyInstalledComponents(t *testing.T) {
	srv := archiveServer(t)
	defer srv.Close()

	env := newTestEnv(t, srv)
	env.cfg.KubernetesVersion = "1.28"
	env.packages.available = []string{"1.28.5-1.1"}
	env.packages.installed["kubelet"] = "1.28.5-1.1"
	env.packages.installed["kubeadm"] = "1.28.5-1.1"
	env.packages.installed["kubectl"] = "1.28.5-1.1"
	env.packages.installErr = errors.New("install must not be called")

	step := NewKubernetesStep(env.cfg, env.deps)
	if err := step.Action(context.Background()); err != nil {
		t.Fatalf("step failed: %v", err)
	}
}

func TestKubernetesUnresolvableVersionIsFatal(t *testing.T) {
	srv := archiveServer(t)
	defer srv.Close()

	env := newTestEnv(t, srv)
	env.cfg.KubernetesVersion = "9.9"
	env.packages.available = []string{"1.28.5-1.1", "1.28.4-1.1"}

	step := NewKubernetesStep(env.cfg, env.deps)
	err := step.Action(context.Background())
	if err == nil {
		t.Fatal("expected resolution to fail")
	}
	if !engine.IsFatal(err) {
		t.Errorf("unresolvable version must be fatal, got %v", err)
	}
	if !errors.Is(err, version.ErrVersionNotFound) {
		t.Errorf("expected ErrVersionNotFound in chain, got %v", err)
	}
	if len(env.packages.installed) != 0 {
		t.Errorf("nothing may be installed on resolution failure, got %v", env.packages.installed)
	}
}

func TestKubernetesMinorSkewIsAWarning(t *testing.T) {
	srv := archiveServer(t)
	defer srv.Close()

	env := newTestEnv(t, srv)
	env.cfg.KubernetesVersion = "1.28"
	env.packages.available = []string{"1.28.5-1.1"}
	// kubectl left behind on the previous minor.
	env.packages.installed["kubelet"] = "1.28.5-1.1"
	env.packages.installed["kubeadm"] = "1.28.5-1.1"
	env.packages.installed["kubectl"] = "1.27.9-1.1"

	step := NewKubernetesStep(env.cfg, env.deps)
	err := step.Action(context.Background())
	if err == nil {
		t.Fatal("expected a skew warning")
	}
	if !engine.IsSoft(err) {
		t.Errorf("minor skew must be soft, got %v", err)
	}
	if !strings.Contains(err.Error(), "skew") {
		t.Errorf("expected skew in message, got %v", err)
	}
}

func TestKubernetesHoldFailureIsSoftButEnableStillRuns(t *testing.T) {
	srv := archiveServer(t)
	defer srv.Close()

	env := newTestEnv(t, srv)
	env.cfg.KubernetesVersion = "1.28"
	env.packages.available = []string{"1.28.5-1.1"}
	env.packages.holdErr = errors.New("apt-mark broken")

	step := NewKubernetesStep(env.cfg, env.deps)
	err := step.Action(context.Background())
	if err == nil {
		t.Fatal("expected a soft error")
	}
	if !engine.IsSoft(err) {
		t.Errorf("hold failure must be soft, got %v", err)
	}
	if len(env.services.enabled) != 1 || env.services.enabled[0] != "kubelet" {
		t.Errorf("kubelet must still be enabled after a hold warning, got %v", env.services.enabled)
	}
}
