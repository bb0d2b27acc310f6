package readiness

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"
)

func TestWaitReturnsImmediatelyWhenAlreadyReady(t *testing.T) {
	started := time.Now()
	err := Wait(context.Background(), func(ctx context.Context) bool { return true },
		time.Second, 500*time.Millisecond)
	if err != nil {
		t.Fatalf("wait failed: %v", err)
	}
	if elapsed := time.Since(started); elapsed > 100*time.Millisecond {
		t.Errorf("ready probe must not sleep, took %s", elapsed)
	}
}

func TestWaitPollsUntilReady(t *testing.T) {
	var probes atomic.Int32
	err := Wait(context.Background(), func(ctx context.Context) bool {
		return probes.Add(1) >= 3
	}, time.Second, 10*time.Millisecond)
	if err != nil {
		t.Fatalf("wait failed: %v", err)
	}
	if n := probes.Load(); n < 3 {
		t.Errorf("expected at least 3 probes, got %d", n)
	}
}

func TestWaitTimesOut(t *testing.T) {
	started := time.Now()
	err := Wait(context.Background(), func(ctx context.Context) bool { return false },
		50*time.Millisecond, 10*time.Millisecond)
	if !errors.Is(err, ErrTimeout) {
		t.Fatalf("expected ErrTimeout, got %v", err)
	}
	if elapsed := time.Since(started); elapsed < 50*time.Millisecond {
		t.Errorf("returned before the timeout elapsed: %s", elapsed)
	}
}

func TestWaitHonorsContextCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(20 * time.Millisecond)
		cancel()
	}()

	err := Wait(ctx, func(ctx context.Context) bool { return false },
		time.Minute, 10*time.Millisecond)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}

func TestSocketProbe(t *testing.T) {
	path := filepath.Join(t.TempDir(), "containerd.sock")
	probe := SocketProbe(path)

	if probe(context.Background()) {
		t.Fatal("probe must fail before the socket exists")
	}
	if err := os.WriteFile(path, nil, 0644); err != nil {
		t.Fatalf("failed to create socket stand-in: %v", err)
	}
	if !probe(context.Background()) {
		t.Fatal("probe must succeed once the socket exists")
	}
}
