package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5/middleware"

	"github.com/flemzord/cinechat/internal/content"
	"github.com/flemzord/cinechat/internal/memory"
	"github.com/flemzord/cinechat/internal/orchestrator"
	"github.com/flemzord/cinechat/internal/provider"
	"github.com/flemzord/cinechat/internal/security"
	"github.com/flemzord/cinechat/internal/tool"
)

// Error codes carried by every error body.
const (
	CodeNotFound     = "NOT_FOUND"
	CodeUpstream     = "UPSTREAM_ERROR"
	CodeValidation   = "VALIDATION_ERROR"
	CodeInternal     = "INTERNAL_ERROR"
	CodeUnauthorized = "UNAUTHORIZED"
	CodeRateLimited  = "RATE_LIMITED"
	CodeCancelled    = "CANCELLED"
	CodeUnavailable  = "SERVICE_UNAVAILABLE"
)

const (
	friendlyInternal  = "Something went wrong, please check the server and try again."
	friendlyUpstream  = "External API unavailable, please try again."
	friendlyCancelled = "The request was cancelled before an answer was ready."
)

var errPanic = errors.New("gateway: handler panic")

// ValidationError reports a malformed request.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// ErrorResponse is the body of every error reply.
type ErrorResponse struct {
	Error     string `json:"error"`
	ErrorCode string `json:"error_code"`
	RequestID string `json:"request_id"`
}

// classify maps err to an HTTP status, an error code and the message shown
// to the client. Internal details never leave the process.
func classify(err error) (int, string, string) {
	var (
		verr  *ValidationError
		overr *orchestrator.ValidationError
		nf    *content.NotFoundError
	)
	switch {
	case errors.As(err, &verr):
		return http.StatusUnprocessableEntity, CodeValidation, verr.Error()
	case errors.As(err, &overr):
		return http.StatusUnprocessableEntity, CodeValidation, overr.Field + ": " + overr.Message
	case errors.Is(err, tool.ErrInvalidArguments):
		return http.StatusUnprocessableEntity, CodeValidation, err.Error()
	case errors.Is(err, tool.ErrToolNotFound):
		return http.StatusNotFound, CodeNotFound, "tool not found"
	case errors.Is(err, memory.ErrSessionNotFound):
		return http.StatusNotFound, CodeNotFound, "session not found"
	case errors.As(err, &nf):
		return http.StatusNotFound, CodeNotFound, "Resource not found: " + nf.Resource
	case errors.Is(err, content.ErrAPI),
		errors.Is(err, provider.ErrProviderDown),
		errors.Is(err, provider.ErrRateLimit),
		errors.Is(err, provider.ErrAuthentication):
		return http.StatusServiceUnavailable, CodeUpstream, friendlyUpstream
	case errors.Is(err, security.ErrRateLimited),
		errors.Is(err, orchestrator.ErrTooManyTasks):
		return http.StatusTooManyRequests, CodeRateLimited, "too many requests"
	case errors.Is(err, orchestrator.ErrClosed):
		return http.StatusServiceUnavailable, CodeUnavailable, "server is shutting down"
	case errors.Is(err, orchestrator.ErrCancelled):
		return http.StatusConflict, CodeCancelled, friendlyCancelled
	default:
		return http.StatusInternalServerError, CodeInternal, friendlyInternal
	}
}

// writeError logs err with the request correlation and writes the mapped
// error body.
func writeError(w http.ResponseWriter, r *http.Request, logger *slog.Logger, err error) {
	status, code, msg := classify(err)
	requestID := middleware.GetReqID(r.Context())

	if logger != nil {
		attrs := []any{"request_id", requestID, "path", r.URL.Path, "status", status, "error", err}
		switch {
		case status >= http.StatusInternalServerError:
			logger.Error("request failed", attrs...)
		case errors.Is(err, context.Canceled):
			logger.Info("request cancelled", attrs...)
		default:
			logger.Warn("request rejected", attrs...)
		}
	}

	var limited *security.RateLimitError
	if errors.As(err, &limited) && limited.RetryAfter > 0 {
		w.Header().Set("Retry-After", strconv.Itoa(int(math.Ceil(limited.RetryAfter.Seconds()))))
	}
	writeJSON(w, status, ErrorResponse{Error: msg, ErrorCode: code, RequestID: requestID})
}

// writeJSON encodes v as JSON with the given status code.
func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}
