package concentrate

import (
	"strings"
	"time"
)

const (
	defaultBaseURL       = "https://api.concentrate.ai/v1"
	defaultModel         = "gpt-4o-mini"
	defaultTimeout       = "60s"
	defaultContextWindow = 8192
)

// Config holds the YAML configuration for the Concentrate provider module.
type Config struct {
	// APIKey is the Concentrate API key (required).
	APIKey string `yaml:"api_key"`

	// Model is the default model when a request does not select one.
	// Default: "gpt-4o-mini"
	Model string `yaml:"model"`

	// BaseURL is the API root; requests go to BaseURL + "/responses".
	// Default: "https://api.concentrate.ai/v1"
	BaseURL string `yaml:"base_url"`

	// HealthURL is probed by HealthCheck. Derived from BaseURL when empty.
	HealthURL string `yaml:"health_url"`

	// Timeout bounds dial, TLS and response headers. Stream bodies are
	// governed by the request context instead.
	// Default: "60s"
	Timeout string `yaml:"timeout"`

	// MaxOutputTokens is sent when a request does not set MaxTokens.
	MaxOutputTokens int `yaml:"max_output_tokens"`

	// ContextWindow reported to the agent. Default: 8192.
	ContextWindow int `yaml:"context_window"`
}

// defaults fills in zero-value fields with sensible defaults.
func (c *Config) defaults() {
	if c.BaseURL == "" {
		c.BaseURL = defaultBaseURL
	}
	c.BaseURL = strings.TrimRight(c.BaseURL, "/")
	if c.Model == "" {
		c.Model = defaultModel
	}
	if c.Timeout == "" {
		c.Timeout = defaultTimeout
	}
	if c.ContextWindow <= 0 {
		c.ContextWindow = defaultContextWindow
	}
	if c.HealthURL == "" {
		c.HealthURL = strings.Replace(c.BaseURL, "/v1", "/health", 1)
	}
}

// parsedTimeout parses Timeout as a time.Duration.
func (c *Config) parsedTimeout() (time.Duration, error) {
	return time.ParseDuration(c.Timeout)
}

func (c *Config) responsesURL() string {
	return c.BaseURL + "/responses"
}
