package security

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// ErrRateLimited matches every *RateLimitError.
var ErrRateLimited = errors.New("rate limit exceeded")

// Bucket names understood by RateLimiter.Allow.
const (
	BucketMessage  = "message"
	BucketToolCall = "tool_call"
	BucketToken    = "token"
)

// RateLimitError reports which bucket refused and how long until it
// can serve the request again.
type RateLimitError struct {
	Bucket     string
	RetryAfter time.Duration
}

func (e *RateLimitError) Error() string {
	return fmt.Sprintf("rate limit exceeded for %s, retry in %s", e.Bucket, e.RetryAfter.Round(time.Second))
}

func (e *RateLimitError) Is(target error) bool { return target == ErrRateLimited }

// RateLimitConfig is the rate_limit section of the config file.
type RateLimitConfig struct {
	// MaxActiveTasks caps in-flight agent runs across all sessions.
	MaxActiveTasks  int `yaml:"max_active_tasks"`
	MessagesPerMin  int `yaml:"messages_per_min"`
	ToolCallsPerMin int `yaml:"tool_calls_per_min"`
	// TokensPerHour is unlimited when zero.
	TokensPerHour int `yaml:"tokens_per_hour"`
}

const (
	defaultMaxActiveTasks  = 64
	defaultMessagesPerMin  = 120
	defaultToolCallsPerMin = 600
)

// RateLimiter holds one token bucket per kind. A bucket refills evenly
// over its period and holds at most one period's worth.
type RateLimiter struct {
	mu      sync.Mutex
	config  RateLimitConfig
	buckets map[string]*rate.Limiter
	now     func() time.Time
}

// NewRateLimiter applies defaults to zero fields of cfg.
func NewRateLimiter(cfg RateLimitConfig) *RateLimiter {
	if cfg.MaxActiveTasks <= 0 {
		cfg.MaxActiveTasks = defaultMaxActiveTasks
	}
	if cfg.MessagesPerMin <= 0 {
		cfg.MessagesPerMin = defaultMessagesPerMin
	}
	if cfg.ToolCallsPerMin <= 0 {
		cfg.ToolCallsPerMin = defaultToolCallsPerMin
	}

	rl := &RateLimiter{
		config: cfg,
		now:    time.Now,
		buckets: map[string]*rate.Limiter{
			BucketMessage:  perPeriod(cfg.MessagesPerMin, time.Minute),
			BucketToolCall: perPeriod(cfg.ToolCallsPerMin, time.Minute),
		},
	}
	if cfg.TokensPerHour > 0 {
		rl.buckets[BucketToken] = perPeriod(cfg.TokensPerHour, time.Hour)
	}
	return rl
}

func perPeriod(n int, period time.Duration) *rate.Limiter {
	return rate.NewLimiter(rate.Every(period/time.Duration(n)), n)
}

// Allow takes one event from the kind's bucket. Kinds without a bucket
// are never limited.
func (rl *RateLimiter) Allow(kind string) error {
	return rl.AllowN(kind, 1)
}

// AllowN takes n events at once, or none. The agent charges completion
// tokens against BucketToken with it.
func (rl *RateLimiter) AllowN(kind string, n int) error {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	b, ok := rl.buckets[kind]
	if !ok {
		return nil
	}
	now := rl.now()
	if b.AllowN(now, n) {
		return nil
	}
	return &RateLimitError{Bucket: kind, RetryAfter: retryAfter(b, now, n)}
}

// retryAfter estimates the wait until n events fit. A request larger than
// the bucket never fits and reports one full refill.
func retryAfter(b *rate.Limiter, now time.Time, n int) time.Duration {
	missing := float64(n) - b.TokensAt(now)
	if n > b.Burst() {
		missing = float64(b.Burst())
	}
	if missing <= 0 || b.Limit() <= 0 {
		return 0
	}
	wait := time.Duration(missing / float64(b.Limit()) * float64(time.Second))
	return wait.Round(time.Millisecond)
}

// MaxActiveTasks returns the configured cap on in-flight agent runs.
func (rl *RateLimiter) MaxActiveTasks() int {
	return rl.config.MaxActiveTasks
}
