package provider

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"testing"
)

func TestClassifyStatus(t *testing.T) {
	t.Parallel()

	tests := []struct {
		status    int
		message   string
		want      error
		retryable bool
	}{
		{http.StatusTooManyRequests, "slow down", ErrRateLimit, true},
		{http.StatusUnauthorized, "bad key", ErrAuthentication, false},
		{http.StatusForbidden, "", ErrAuthentication, false},
		{http.StatusBadRequest, "This model's maximum context length is 8192 tokens", ErrContextLength, false},
		{http.StatusRequestEntityTooLarge, "token limit reached", ErrContextLength, false},
		{http.StatusBadRequest, "unknown field", ErrBadRequest, false},
		{http.StatusBadGateway, "", ErrProviderDown, true},
		{http.StatusServiceUnavailable, "overloaded", ErrProviderDown, true},
	}
	for _, tt := range tests {
		t.Run(fmt.Sprintf("%d_%s", tt.status, tt.message), func(t *testing.T) {
			t.Parallel()
			err := ClassifyStatus(tt.status, tt.message)
			if !errors.Is(err, tt.want) {
				t.Errorf("ClassifyStatus(%d, %q) = %v, want %v", tt.status, tt.message, err, tt.want)
			}
			if got := IsRetryable(fmt.Errorf("wrapped: %w", err)); got != tt.retryable {
				t.Errorf("IsRetryable = %v, want %v", got, tt.retryable)
			}
		})
	}
}

func TestStatusError_Message(t *testing.T) {
	t.Parallel()

	err := ClassifyStatus(http.StatusBadGateway, "")
	if err.Message != "Bad Gateway" {
		t.Errorf("Message = %q, want status text", err.Message)
	}
	if !strings.Contains(err.Error(), "HTTP 502") {
		t.Errorf("Error() = %q", err.Error())
	}

	var se *StatusError
	if !errors.As(fmt.Errorf("concentrate: %w", err), &se) || se.Status != http.StatusBadGateway {
		t.Errorf("errors.As did not find the status: %+v", se)
	}
}

func TestIsRetryable_Sentinels(t *testing.T) {
	t.Parallel()

	for _, err := range []error{ErrContextLength, ErrAuthentication, ErrBadRequest, ErrEmptyResponse, errors.New("x")} {
		if IsRetryable(err) {
			t.Errorf("IsRetryable(%v) = true", err)
		}
	}
}
