package concentrate

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/flemzord/cinechat/internal/provider"
)

// apiErrorBody is the error object returned by the API, either as the
// whole body or embedded in a response or stream event.
type apiErrorBody struct {
	Message string `json:"message"`
	Type    string `json:"type"`
	Code    any    `json:"code"` // string or int depending on the upstream vendor
}

// mapHTTPError reads the error message out of a failed response.
func mapHTTPError(statusCode int, body io.Reader) error {
	var envelope struct {
		Error  *apiErrorBody `json:"error"`
		Detail string        `json:"detail"`
	}

	data, readErr := io.ReadAll(io.LimitReader(body, 4096))
	if readErr == nil && len(data) > 0 {
		_ = json.Unmarshal(data, &envelope)
	}

	msg := envelope.Detail
	if envelope.Error != nil && envelope.Error.Message != "" {
		msg = envelope.Error.Message
	}

	return fmt.Errorf("concentrate: %w", provider.ClassifyStatus(statusCode, msg))
}

// mapAPIError converts an in-body or in-stream API error into a provider error.
func mapAPIError(ae apiErrorBody) error {
	msg := ae.Message
	if msg == "" {
		msg = "unknown error"
	}

	lmsg := strings.ToLower(msg)
	switch {
	case strings.Contains(lmsg, "rate limit"):
		return fmt.Errorf("concentrate: %s: %w", msg, provider.ErrRateLimit)
	case provider.IsContextOverflow(msg):
		return fmt.Errorf("concentrate: %s: %w", msg, provider.ErrContextLength)
	default:
		return fmt.Errorf("concentrate: %s: %w", msg, provider.ErrProviderDown)
	}
}
