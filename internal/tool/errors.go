package tool

import (
	"errors"
	"fmt"
)

var (
	ErrToolNotFound  = errors.New("tool not found")
	ErrEmptyToolName = errors.New("tool name must not be empty")
	ErrDuplicateTool = errors.New("tool already registered")

	// ErrInvalidArguments marks arguments the model got wrong. The
	// gateway maps it to VALIDATION_ERROR.
	ErrInvalidArguments = errors.New("invalid tool arguments")
)

// InvalidArgs returns an ErrInvalidArguments error with a formatted reason.
func InvalidArgs(format string, a ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidArguments, fmt.Sprintf(format, a...))
}
