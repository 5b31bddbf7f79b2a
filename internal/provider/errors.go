package provider

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// Failure classes. Adapters wrap one of these so callers can branch with
// errors.Is without knowing the upstream API.
var (
	ErrRateLimit      = errors.New("provider rate limited")
	ErrContextLength  = errors.New("context length exceeded")
	ErrProviderDown   = errors.New("provider unavailable")
	ErrAuthentication = errors.New("provider authentication failed")
	ErrBadRequest     = errors.New("provider rejected request")

	// ErrEmptyResponse means the model answered with neither text nor a
	// tool call.
	ErrEmptyResponse = errors.New("provider returned empty response")
)

// StatusError is an HTTP failure returned by an upstream model API.
type StatusError struct {
	Status  int
	Message string
	Kind    error
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s (HTTP %d): %v", e.Message, e.Status, e.Kind)
}

func (e *StatusError) Unwrap() error { return e.Kind }

// ClassifyStatus maps an upstream HTTP status and error message to a
// StatusError carrying the matching failure class.
func ClassifyStatus(status int, message string) *StatusError {
	if message == "" {
		message = http.StatusText(status)
	}
	var kind error
	switch {
	case status == http.StatusTooManyRequests:
		kind = ErrRateLimit
	case status == http.StatusUnauthorized, status == http.StatusForbidden:
		kind = ErrAuthentication
	case status >= http.StatusInternalServerError:
		kind = ErrProviderDown
	case IsContextOverflow(message):
		kind = ErrContextLength
	default:
		kind = ErrBadRequest
	}
	return &StatusError{Status: status, Message: message, Kind: kind}
}

// IsContextOverflow reports whether an upstream message complains about
// the prompt not fitting the model's window.
func IsContextOverflow(message string) bool {
	lower := strings.ToLower(message)
	for _, marker := range []string{"context length", "context_length", "maximum context", "token limit"} {
		if strings.Contains(lower, marker) {
			return true
		}
	}
	return false
}

// IsRetryable reports whether err is transient.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrRateLimit) || errors.Is(err, ErrProviderDown)
}
