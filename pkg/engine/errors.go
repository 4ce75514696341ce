package engine

import (
	"errors"
	"fmt"
)

// Class classifies a pipeline error for exit-code mapping and retry
// logic.
type Class string

const (
	// ClassDependency indicates a phase's prerequisites were not met.
	// Fatal, detected before the phase runs.
	ClassDependency Class = "dependency"

	// ClassApply indicates one or more resources failed within a phase.
	// Isolated per resource, but blocks progression to the next phase.
	ClassApply Class = "apply"

	// ClassTimeout indicates an external collaborator call exceeded its
	// deadline. Retryable; recorded as an apply failure once retries
	// are exhausted.
	ClassTimeout Class = "timeout"
)

// Error is a classified pipeline error.
type Error struct {
	Class    Class
	Phase    string
	Resource string
	Message  string
	Err      error
}

func (e *Error) Error() string {
	s := fmt.Sprintf("[%s] %s", e.Class, e.Message)
	if e.Phase != "" {
		s += fmt.Sprintf(" (phase=%s", e.Phase)
		if e.Resource != "" {
			s += fmt.Sprintf(", resource=%s", e.Resource)
		}
		s += ")"
	}
	if e.Err != nil {
		s += ": " + e.Err.Error()
	}
	return s
}

// Unwrap returns the underlying error for error chain inspection.
func (e *Error) Unwrap() error {
	return e.Err
}

// Is implements class-based equality for errors.Is.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Class == t.Class
}

// NewDependencyError reports that a dependency phase has incomplete
// resources.
func NewDependencyError(phase, missingPhase, resourceKey string) *Error {
	return &Error{
		Class:    ClassDependency,
		Phase:    phase,
		Resource: resourceKey,
		Message:  fmt.Sprintf("dependency %q not satisfied", missingPhase),
	}
}

// NewApplyError reports that a phase finished with failed resources.
func NewApplyError(phase string, failed int) *Error {
	return &Error{
		Class:   ClassApply,
		Phase:   phase,
		Message: fmt.Sprintf("%d resource(s) failed", failed),
	}
}

// NewTimeoutError wraps a collaborator call that exceeded its
// deadline.
func NewTimeoutError(op string, err error) *Error {
	return &Error{
		Class:   ClassTimeout,
		Message: fmt.Sprintf("%s timed out", op),
		Err:     err,
	}
}

// IsTimeout reports whether err is a collaborator timeout.
func IsTimeout(err error) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Class == ClassTimeout
	}
	return false
}

// IsRetryable reports whether the error may succeed on retry. Only
// timeout-class errors are retried; everything else is recorded as a
// failure immediately.
func IsRetryable(err error) bool {
	return IsTimeout(err)
}
