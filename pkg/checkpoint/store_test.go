package checkpoint

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func setupTestStore(t *testing.T) *Store {
	t.Helper()

	store := NewStore(filepath.Join(t.TempDir(), "checkpoints"))
	if err := store.Init(); err != nil {
		t.Fatalf("failed to init store: %v", err)
	}
	return store
}

func TestMarkAndExists(t *testing.T) {
	store := setupTestStore(t)

	if store.Exists("step1-os-prep") {
		t.Fatal("fresh store must report nothing complete")
	}

	before := time.Now().Add(-time.Second)
	if err := store.Mark("step1-os-prep"); err != nil {
		t.Fatalf("mark failed: %v", err)
	}

	if !store.Exists("step1-os-prep") {
		t.Fatal("marked step must exist")
	}
	if store.Exists("step2-firewall") {
		t.Fatal("unmarked step must not exist")
	}

	at, ok := store.CompletedAt("step1-os-prep")
	if !ok {
		t.Fatal("expected readable completion time")
	}
	if at.Before(before) || at.After(time.Now().Add(time.Second)) {
		t.Errorf("completion time out of range: %v", at)
	}
}

func TestMarkIsIdempotent(t *testing.T) {
	store := setupTestStore(t)

	if err := store.Mark("step1-os-prep"); err != nil {
		t.Fatalf("first mark failed: %v", err)
	}
	if err := store.Mark("step1-os-prep"); err != nil {
		t.Fatalf("second mark failed: %v", err)
	}
	if !store.Exists("step1-os-prep") {
		t.Fatal("step must remain complete")
	}
}

func TestUnreadableMarkerStillCountsAsComplete(t *testing.T) {
	store := setupTestStore(t)

	// The file name is the record; the timestamp is informational.
	path := filepath.Join(store.Dir(), "step1-os-prep.done")
	if err := os.WriteFile(path, []byte("not a timestamp"), 0644); err != nil {
		t.Fatalf("failed to plant marker: %v", err)
	}

	if !store.Exists("step1-os-prep") {
		t.Fatal("corrupt marker must still count as complete")
	}
	if _, ok := store.CompletedAt("step1-os-prep"); ok {
		t.Error("corrupt timestamp must not parse")
	}
}

func TestClear(t *testing.T) {
	store := setupTestStore(t)

	if err := store.Mark("step1-os-prep"); err != nil {
		t.Fatalf("mark failed: %v", err)
	}
	if err := store.Clear("step1-os-prep"); err != nil {
		t.Fatalf("clear failed: %v", err)
	}
	if store.Exists("step1-os-prep") {
		t.Fatal("cleared step must be pending again")
	}

	// Clearing an absent marker is not an error.
	if err := store.Clear("step9-ghost"); err != nil {
		t.Errorf("clearing absent marker failed: %v", err)
	}
}

func TestClearAll(t *testing.T) {
	store := setupTestStore(t)

	for _, name := range []string{"step1-os-prep", "step2-firewall", "step3-containerd"} {
		if err := store.Mark(name); err != nil {
			t.Fatalf("mark failed: %v", err)
		}
	}

	if err := store.ClearAll(); err != nil {
		t.Fatalf("clear all failed: %v", err)
	}

	list, err := store.List()
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	if len(list) != 0 {
		t.Fatalf("expected empty store, got %v", list)
	}
}

func TestListSortsByName(t *testing.T) {
	store := setupTestStore(t)

	for _, name := range []string{"step3-containerd", "step1-os-prep", "step2-firewall"} {
		if err := store.Mark(name); err != nil {
			t.Fatalf("mark failed: %v", err)
		}
	}

	list, err := store.List()
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}

	want := []string{"step1-os-prep", "step2-firewall", "step3-containerd"}
	if len(list) != len(want) {
		t.Fatalf("expected %d checkpoints, got %d", len(want), len(list))
	}
	for i, name := range want {
		if list[i].Step != name {
			t.Errorf("position %d: expected %s, got %s", i, name, list[i].Step)
		}
	}
}

func TestInitCreatesNestedDirectory(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "var", "lib", "nodeprep", "checkpoints")
	store := NewStore(dir)
	if err := store.Init(); err != nil {
		t.Fatalf("init failed: %v", err)
	}
	if _, err := os.Stat(dir); err != nil {
		t.Fatalf("expected directory to exist: %v", err)
	}
}
