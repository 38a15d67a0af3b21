package schemas

import (
	"errors"
	"fmt"
	"time"
)

var (
	// ErrNotFound means resolution exhausted every enabled strategy.
	ErrNotFound = errors.New("element not found")
	// ErrBackendUnavailable means a required backend is not connected.
	ErrBackendUnavailable = errors.New("backend unavailable")
	// ErrStaleReference means a dom handle no longer points at an attached node.
	ErrStaleReference = errors.New("stale reference")
	// ErrTimeout is matched by every *TimeoutError.
	ErrTimeout = errors.New("timeout")
	// ErrBackend is matched by every *BackendError.
	ErrBackend = errors.New("backend error")
	// ErrBudgetExceeded means the vision cost budget has been spent.
	ErrBudgetExceeded = errors.New("vision budget exceeded")
)

// Unavailable builds an ErrBackendUnavailable naming the missing backend.
func Unavailable(kind BackendKind, reason string) error {
	if reason == "" {
		return fmt.Errorf("%s: %w", kind, ErrBackendUnavailable)
	}
	return fmt.Errorf("%s %s: %w", kind, reason, ErrBackendUnavailable)
}

// TimeoutError reports an operation that exceeded its deadline.
type TimeoutError struct {
	Operation string
	Deadline  time.Duration
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("%s timed out after %s", e.Operation, e.Deadline)
}

func (e *TimeoutError) Is(target error) bool { return target == ErrTimeout }

// BackendError wraps a failure reported by a backend itself.
type BackendError struct {
	Backend   BackendKind
	Operation string
	Err       error
}

// NewBackendError wraps err, returning nil for a nil err.
func NewBackendError(kind BackendKind, op string, err error) error {
	if err == nil {
		return nil
	}
	return &BackendError{Backend: kind, Operation: op, Err: err}
}

func (e *BackendError) Error() string {
	return fmt.Sprintf("%s backend %s: %v", e.Backend, e.Operation, e.Err)
}

func (e *BackendError) Unwrap() error { return e.Err }

func (e *BackendError) Is(target error) bool { return target == ErrBackend }
