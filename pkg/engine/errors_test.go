package engine

import (
	"errors"
	"fmt"
	"testing"
)

func TestErrorClassification(t *testing.T) {
	cases := []struct {
		name string
		err  error
		soft bool
	}{
		{"soft tag", Soft("degraded", nil), true},
		{"softf tag", Softf("degraded: %s", "offline"), true},
		{"fatal tag", Fatal("broken", nil), false},
		{"plain error", errors.New("plain"), false},
		{"wrapped soft", fmt.Errorf("outer: %w", Soft("inner", nil)), true},
		{"wrapped fatal", fmt.Errorf("outer: %w", Fatal("inner", nil)), false},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := IsSoft(tc.err); got != tc.soft {
				t.Errorf("IsSoft = %v, want %v", got, tc.soft)
			}
			if got := IsFatal(tc.err); got != !tc.soft {
				t.Errorf("IsFatal = %v, want %v", got, !tc.soft)
			}
		})
	}

	if IsFatal(nil) {
		t.Error("nil error is not fatal")
	}
}

func TestStepErrorPreservesCause(t *testing.T) {
	cause := errors.New("connection refused")
	err := Fatal("download failed", cause)

	if !errors.Is(err, cause) {
		t.Error("expected the cause to survive wrapping")
	}

	err.Step = "step3-containerd"
	msg := err.Error()
	if msg != "[fatal] step step3-containerd: download failed: connection refused" {
		t.Errorf("unexpected message: %s", msg)
	}
}
