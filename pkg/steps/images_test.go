package steps

import (
	"context"
	"errors"
	"testing"

	"github.com/nodeprep/nodeprep/pkg/engine"
)

func TestPreloadImagesPullsEveryRequiredImage(t *testing.T) {
	env := newTestEnv(t, nil)
	env.runtime.ready = true
	env.packages.installed["kubeadm"] = "1.28.5-1.1"
	env.bootstrap.images = []string{
		"registry.k8s.io/kube-apiserver:v1.28.5",
		"registry.k8s.io/pause:3.9",
	}

	step := NewPreloadImagesStep(env.cfg, env.deps)
	if err := step.Action(context.Background()); err != nil {
		t.Fatalf("step failed: %v", err)
	}

	if env.bootstrap.version != "1.28.5" {
		t.Errorf("expected package suffix stripped for kubeadm, got %q", env.bootstrap.version)
	}
	if len(env.runtime.pulled) != 2 {
		t.Fatalf("expected 2 pulls, got %v", env.runtime.pulled)
	}
}

func TestPreloadImagesWaitsForRuntime(t *testing.T) {
	env := newTestEnv(t, nil)
	env.runtime.readyAfter = 3
	env.packages.installed["kubeadm"] = "1.28.5-1.1"
	env.bootstrap.images = []string{"registry.k8s.io/pause:3.9"}

	step := NewPreloadImagesStep(env.cfg, env.deps)
	if err := step.Action(context.Background()); err != nil {
		t.Fatalf("step failed: %v", err)
	}
	if env.runtime.probes < 3 {
		t.Errorf("expected the gate to poll, got %d probes", env.runtime.probes)
	}
}

func TestPreloadImagesUnreadyRuntimeIsFatal(t *testing.T) {
	env := newTestEnv(t, nil)
	// Runtime never answers.
	env.packages.installed["kubeadm"] = "1.28.5-1.1"

	step := NewPreloadImagesStep(env.cfg, env.deps)
	err := step.Action(context.Background())
	if err == nil {
		t.Fatal("expected the gate to time out")
	}
	if !engine.IsFatal(err) {
		t.Errorf("unready runtime must be fatal, got %v", err)
	}
	if len(env.runtime.pulled) != 0 {
		t.Errorf("nothing may be pulled into an unready runtime, got %v", env.runtime.pulled)
	}
}

func TestPreloadImagesRequiresKubeadm(t *testing.T) {
	env := newTestEnv(t, nil)
	env.runtime.ready = true

	step := NewPreloadImagesStep(env.cfg, env.deps)
	err := step.Action(context.Background())
	if err == nil {
		t.Fatal("expected failure without kubeadm")
	}
	if !engine.IsFatal(err) {
		t.Errorf("missing kubeadm must be fatal, got %v", err)
	}
}

func TestPreloadImagesPullFailureIsFatal(t *testing.T) {
	env := newTestEnv(t, nil)
	env.runtime.ready = true
	env.runtime.pullErr = errors.New("registry unreachable")
	env.packages.installed["kubeadm"] = "1.28.5-1.1"
	env.bootstrap.images = []string{"registry.k8s.io/pause:3.9"}

	step := NewPreloadImagesStep(env.cfg, env.deps)
	err := step.Action(context.Background())
	if err == nil {
		t.Fatal("expected pull to fail")
	}
	if !engine.IsFatal(err) {
		t.Errorf("pull failure must be fatal, got %v", err)
	}
}

func TestPackageBaseVersion(t *testing.T) {
	cases := map[string]string{
		"1.28.5-1.1": "1.28.5",
		"1.28.5":     "1.28.5",
		"":           "",
	}
	for in, want := range cases {
		if got := packageBaseVersion(in); got != want {
			t.Errorf("packageBaseVersion(%q) = %q, want %q", in, got, want)
		}
	}
}
