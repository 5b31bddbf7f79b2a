// Package content provides the shared HTTP client, error taxonomy and item
// normalization used by the movie and TV metadata tools.
package content

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v5"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

// maxResponseBytes caps upstream bodies.
const maxResponseBytes = 10 << 20

var tracer = otel.Tracer("github.com/flemzord/cinechat/internal/content")

// Client performs retried JSON GETs against one upstream service.
type Client struct {
	service string
	baseURL string
	// query is added to every request, e.g. api_key.
	query  url.Values
	policy Policy
	http   *http.Client
	logger *slog.Logger
}

// NewClient builds a client for service rooted at baseURL. A nil httpClient
// gets one bounded by the policy timeout.
func NewClient(service, baseURL string, query url.Values, policy Policy, httpClient *http.Client, logger *slog.Logger) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: policy.Timeout}
	}
	if logger == nil {
		logger = slog.Default()
	}
	if policy.Attempts < 1 {
		policy.Attempts = 1
	}
	return &Client{
		service: service,
		baseURL: strings.TrimRight(baseURL, "/"),
		query:   query,
		policy:  policy,
		http:    httpClient,
		logger:  logger,
	}
}

// Service returns the upstream name used in errors and metrics.
func (c *Client) Service() string {
	return c.service
}

// Get fetches path with params and decodes the JSON body into out.
// A 404 returns *NotFoundError at once. Any other failure is retried and
// then returned as *APIError. Context cancellation is returned as is.
func (c *Client) Get(ctx context.Context, path string, params url.Values, out any) error {
	ctx, span := tracer.Start(ctx, "content.get")
	defer span.End()
	span.SetAttributes(
		attribute.String("content.service", c.service),
		attribute.String("content.path", path),
	)

	endpoint := c.url(path, params)
	attempt := 0
	body, err := backoff.Retry(ctx, func() ([]byte, error) {
		attempt++
		return c.fetch(ctx, endpoint, path)
	},
		backoff.WithBackOff(c.policy.backOff()),
		backoff.WithMaxTries(uint(c.policy.Attempts)),
		backoff.WithMaxElapsedTime(0),
		backoff.WithNotify(func(err error, wait time.Duration) {
			upstreamRetries.WithLabelValues(c.service).Inc()
			c.logger.Warn("content request retry",
				"service", c.service, "path", path, "attempt", attempt, "wait", wait, "error", err)
		}),
	)
	span.SetAttributes(attribute.Int("content.attempts", attempt))

	if err != nil {
		err = c.finalError(ctx, err)
		upstreamRequests.WithLabelValues(c.service, outcome(err)).Inc()
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return err
	}
	upstreamRequests.WithLabelValues(c.service, "ok").Inc()

	if out == nil {
		return nil
	}
	if err := json.Unmarshal(body, out); err != nil {
		return &APIError{Service: c.service, Message: "decode response: " + err.Error(), Err: err}
	}
	return nil
}

// Ping issues a single GET with no retry and discards the body. It is
// used by health probes.
func (c *Client) Ping(ctx context.Context, path string) error {
	_, err := c.fetch(ctx, c.url(path, nil), path)
	if err != nil {
		var perm *backoff.PermanentError
		if errors.As(err, &perm) {
			return perm.Unwrap()
		}
		return err
	}
	return nil
}

// fetch runs one attempt. Non-retryable outcomes are wrapped with
// backoff.Permanent.
func (c *Client) fetch(ctx context.Context, endpoint, path string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, backoff.Permanent(&APIError{Service: c.service, Message: "build request: " + err.Error(), Err: err})
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, backoff.Permanent(ctx.Err())
		}
		// The raw error carries the full URL, which holds the api key.
		return nil, &APIError{Service: c.service, Message: "request to " + path + " failed", Err: unwrapURLError(err)}
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, &APIError{Service: c.service, Status: resp.StatusCode, Message: "read response: " + err.Error(), Err: err}
	}

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return nil, backoff.Permanent(&NotFoundError{Service: c.service, Resource: path})
	case resp.StatusCode < 200 || resp.StatusCode >= 300:
		return nil, &APIError{Service: c.service, Status: resp.StatusCode, Message: http.StatusText(resp.StatusCode)}
	}
	return body, nil
}

func (c *Client) finalError(ctx context.Context, err error) error {
	if errors.Is(err, ErrNotFound) || errors.Is(err, ErrAPI) {
		return err
	}
	if ctxErr := ctx.Err(); ctxErr != nil {
		return ctxErr
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	return &APIError{Service: c.service, Message: err.Error(), Err: err}
}

func (c *Client) url(path string, params url.Values) string {
	q := url.Values{}
	for k, vs := range params {
		q[k] = append([]string(nil), vs...)
	}
	for k, vs := range c.query {
		q[k] = append([]string(nil), vs...)
	}
	u := c.baseURL + path
	if enc := q.Encode(); enc != "" {
		u += "?" + enc
	}
	return u
}

func unwrapURLError(err error) error {
	var uerr *url.Error
	if errors.As(err, &uerr) {
		return uerr.Err
	}
	return err
}

func outcome(err error) string {
	switch {
	case errors.Is(err, ErrNotFound):
		return "not_found"
	case errors.Is(err, ErrAPI):
		return "api_error"
	default:
		return "canceled"
	}
}
