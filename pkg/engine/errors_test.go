package engine

import (
	"errors"
	"fmt"
	"testing"
)

func TestErrorClassMatching(t *testing.T) {
	dep := NewDependencyError("storage_export", "precheck", "node/node-a")
	if !errors.Is(dep, &Error{Class: ClassDependency}) {
		t.Error("dependency error does not match its class")
	}
	if errors.Is(dep, &Error{Class: ClassApply}) {
		t.Error("dependency error matches the apply class")
	}

	wrapped := fmt.Errorf("phase failed: %w", NewApplyError("reexport", 2))
	var engErr *Error
	if !errors.As(wrapped, &engErr) || engErr.Class != ClassApply {
		t.Errorf("errors.As through wrapping failed: %v", wrapped)
	}
}

func TestIsRetryable(t *testing.T) {
	timeout := NewTimeoutError("create export", errors.New("deadline exceeded"))
	if !IsRetryable(timeout) {
		t.Error("timeout should be retryable")
	}
	if IsRetryable(NewApplyError("opus_raid", 1)) {
		t.Error("apply failure should not be retryable")
	}
	if IsRetryable(errors.New("plain")) {
		t.Error("plain error should not be retryable")
	}

	wrapped := fmt.Errorf("call failed: %w", timeout)
	if !IsRetryable(wrapped) {
		t.Error("wrapped timeout should stay retryable")
	}
}

func TestBackoffDelayBounds(t *testing.T) {
	const base, max = 100, 400 // milliseconds for readability

	for attempt := 0; attempt < 8; attempt++ {
		d := backoffDelay(base, attempt, max)
		// With 25% jitter the delay stays within [0.75, 1.25] of the
		// capped exponential.
		if d > max+max/4 {
			t.Errorf("attempt %d: delay %v exceeds jittered cap", attempt, d)
		}
		if d <= 0 {
			t.Errorf("attempt %d: non-positive delay %v", attempt, d)
		}
	}
}
