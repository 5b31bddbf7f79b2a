package content

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound matches every *NotFoundError.
	ErrNotFound = errors.New("content: not found")

	// ErrAPI matches every *APIError.
	ErrAPI = errors.New("content: upstream api error")
)

// NotFoundError reports an upstream 404. It is never retried.
type NotFoundError struct {
	Service  string
	Resource string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s: resource not found at %s", e.Service, e.Resource)
}

// Is lets errors.Is(err, ErrNotFound) match.
func (e *NotFoundError) Is(target error) bool {
	return target == ErrNotFound
}

// APIError is returned once retries are exhausted, or immediately for
// failures that cannot succeed on retry.
type APIError struct {
	Service string
	// Status is the last HTTP status seen, or 0 for transport failures.
	Status  int
	Message string
	Err     error
}

func (e *APIError) Error() string {
	if e.Status > 0 {
		return fmt.Sprintf("%s api error: %d %s", e.Service, e.Status, e.Message)
	}
	return fmt.Sprintf("%s api error: %s", e.Service, e.Message)
}

// Is lets errors.Is(err, ErrAPI) match.
func (e *APIError) Is(target error) bool {
	return target == ErrAPI
}

func (e *APIError) Unwrap() error {
	return e.Err
}
