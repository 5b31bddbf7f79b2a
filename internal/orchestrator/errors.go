package orchestrator

import (
	"context"
	"errors"
	"fmt"
)

// Sentinel errors returned by the orchestrator.
var (
	// ErrCancelled marks a run stopped by CancelAll, DropSession, the
	// stale-run watchdog or shutdown. It matches context.Canceled.
	ErrCancelled = fmt.Errorf("orchestrator: run cancelled: %w", context.Canceled)

	// ErrInvalidRequest wraps every Submit precondition failure.
	ErrInvalidRequest = errors.New("orchestrator: invalid request")

	// ErrTooManyTasks is returned when the active run cap is reached.
	ErrTooManyTasks = errors.New("orchestrator: too many active tasks")

	// ErrClosed is returned by Submit after Shutdown.
	ErrClosed = errors.New("orchestrator: closed")
)

// ValidationError reports which Submit field failed validation.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("orchestrator: invalid %s: %s", e.Field, e.Message)
}

// Is reports whether target is ErrInvalidRequest.
func (e *ValidationError) Is(target error) bool {
	return target == ErrInvalidRequest
}
