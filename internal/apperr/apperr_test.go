package apperr

import (
	"errors"
	"fmt"
	"testing"
)

func TestErrorMessage(t *testing.T) {
	plain := New(KindNotFound, "session not found")
	if got := plain.Error(); got != "NOT_FOUND: session not found" {
		t.Errorf("Error() = %q", got)
	}

	fielded := Validation("start_time", "must be before end time")
	if got := fielded.Error(); got != "VALIDATION: start_time: must be before end time" {
		t.Errorf("Error() = %q", got)
	}
}

func TestNewf(t *testing.T) {
	err := Newf(KindInvalidState, "cannot start from status %s", "PAUSED")
	if err.Kind != KindInvalidState {
		t.Errorf("Kind = %s", err.Kind)
	}
	if err.Message != "cannot start from status PAUSED" {
		t.Errorf("Message = %q", err.Message)
	}
}

func TestKindOf(t *testing.T) {
	if got := KindOf(New(KindConflict, "busy")); got != KindConflict {
		t.Errorf("KindOf = %q", got)
	}
	if got := KindOf(errors.New("plain")); got != "" {
		t.Errorf("KindOf(plain) = %q, want empty", got)
	}
	if got := KindOf(nil); got != "" {
		t.Errorf("KindOf(nil) = %q, want empty", got)
	}
}

func TestKindOfWrapped(t *testing.T) {
	inner := New(KindUnavailable, "evaluation service call failed")
	wrapped := fmt.Errorf("complete station: %w", inner)

	if !Is(wrapped, KindUnavailable) {
		t.Error("kind lost through fmt.Errorf wrapping")
	}
	if Is(wrapped, KindValidation) {
		t.Error("Is matched the wrong kind")
	}
}

func TestWrapPreservesCause(t *testing.T) {
	cause := errors.New("connection refused")
	err := Wrap(KindUnavailable, "patient simulator call failed", cause)

	if !errors.Is(err, cause) {
		t.Error("cause not reachable via errors.Is")
	}
	if KindOf(err) != KindUnavailable {
		t.Errorf("KindOf = %q", KindOf(err))
	}
}
