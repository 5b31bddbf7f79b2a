package content

import (
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v5"
)

// RetryConfig is the retry and timeout block shared by every content module.
type RetryConfig struct {
	// Timeout bounds a single HTTP attempt. Defaults to "60s".
	Timeout string `yaml:"timeout"`

	// Retries is the total number of attempts. Defaults to 3.
	Retries int `yaml:"retries"`

	// BackoffFactor scales the wait between attempts. Defaults to 1.0.
	BackoffFactor float64 `yaml:"backoff_factor"`

	// MinBackoff and MaxBackoff clamp each wait. Default "2s" and "10s".
	MinBackoff string `yaml:"min_backoff"`
	MaxBackoff string `yaml:"max_backoff"`
}

// Defaults fills zero fields.
func (c *RetryConfig) Defaults() {
	if c.Timeout == "" {
		c.Timeout = "60s"
	}
	if c.Retries == 0 {
		c.Retries = 3
	}
	if c.BackoffFactor == 0 {
		c.BackoffFactor = 1.0
	}
	if c.MinBackoff == "" {
		c.MinBackoff = "2s"
	}
	if c.MaxBackoff == "" {
		c.MaxBackoff = "10s"
	}
}

// Policy is a parsed RetryConfig.
type Policy struct {
	Timeout       time.Duration
	Attempts      int
	BackoffFactor float64
	MinBackoff    time.Duration
	MaxBackoff    time.Duration
}

// Parse validates the config and returns its parsed form.
func (c RetryConfig) Parse() (Policy, error) {
	c.Defaults()
	p := Policy{Attempts: c.Retries, BackoffFactor: c.BackoffFactor}
	var err error
	if p.Timeout, err = time.ParseDuration(c.Timeout); err != nil {
		return Policy{}, fmt.Errorf("invalid timeout %q: %w", c.Timeout, err)
	}
	if p.MinBackoff, err = time.ParseDuration(c.MinBackoff); err != nil {
		return Policy{}, fmt.Errorf("invalid min_backoff %q: %w", c.MinBackoff, err)
	}
	if p.MaxBackoff, err = time.ParseDuration(c.MaxBackoff); err != nil {
		return Policy{}, fmt.Errorf("invalid max_backoff %q: %w", c.MaxBackoff, err)
	}
	switch {
	case p.Attempts < 1:
		return Policy{}, fmt.Errorf("retries must be at least 1, got %d", p.Attempts)
	case p.BackoffFactor < 0:
		return Policy{}, fmt.Errorf("backoff_factor must be non-negative")
	case p.MinBackoff > p.MaxBackoff:
		return Policy{}, fmt.Errorf("min_backoff %s exceeds max_backoff %s", p.MinBackoff, p.MaxBackoff)
	}
	return p, nil
}

// backOff returns the exponential schedule: factor * 2^n seconds, clamped
// to [MinBackoff, MaxBackoff].
func (p Policy) backOff() backoff.BackOff {
	initial := time.Duration(p.BackoffFactor * float64(2*time.Second))
	b := &backoff.ExponentialBackOff{
		InitialInterval:     min(max(initial, p.MinBackoff), p.MaxBackoff),
		RandomizationFactor: 0,
		Multiplier:          2,
		MaxInterval:         p.MaxBackoff,
	}
	b.Reset()
	return b
}
