package gateway

import (
	"errors"
	"fmt"
	"net"
	"net/url"
	"time"
)

// Config holds HTTP gateway configuration. WriteTimeout defaults to zero
// so SSE streams are not cut off.
type Config struct {
	Bind            string        `yaml:"bind"`
	Auth            AuthConfig    `yaml:"auth"`
	ReadTimeout     time.Duration `yaml:"read_timeout"`
	WriteTimeout    time.Duration `yaml:"write_timeout"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`

	// AllowedOrigins feeds the CORS policy and the WebSocket origin check.
	AllowedOrigins []string `yaml:"allowed_origins"`

	// MessageMaxLength bounds a chat message, in characters.
	MessageMaxLength int `yaml:"message_max_length"`

	// HealthTimeout bounds each dependency probe of /health.
	HealthTimeout time.Duration `yaml:"health_timeout"`

	// StreamChunkWords re-chunks streamed text into pieces of N words.
	// Zero forwards deltas as the model produces them.
	StreamChunkWords int `yaml:"stream_chunk_words"`

	// MaxBodySize bounds JSON request bodies, in bytes.
	MaxBodySize int `yaml:"max_body_size"`
}

// defaults fills zero values with sensible defaults.
func (c *Config) defaults() {
	if c.Bind == "" {
		c.Bind = "127.0.0.1:8000"
	}
	if c.ReadTimeout <= 0 {
		c.ReadTimeout = 10 * time.Second
	}
	if c.ShutdownTimeout <= 0 {
		c.ShutdownTimeout = 5 * time.Second
	}
	if len(c.AllowedOrigins) == 0 {
		c.AllowedOrigins = []string{"http://localhost:8501", "http://frontend:8501"}
	}
	if c.MessageMaxLength <= 0 {
		c.MessageMaxLength = 2000
	}
	if c.HealthTimeout <= 0 {
		c.HealthTimeout = 5 * time.Second
	}
}

func (c *Config) validate() error {
	if _, err := net.ResolveTCPAddr("tcp", c.Bind); err != nil {
		return errors.New("gateway: invalid bind address: " + c.Bind)
	}
	if c.StreamChunkWords < 0 {
		return errors.New("gateway: stream_chunk_words must not be negative")
	}
	for _, o := range c.AllowedOrigins {
		if o == "*" {
			continue
		}
		u, err := url.Parse(o)
		if err != nil || u.Scheme == "" || u.Host == "" {
			return fmt.Errorf("gateway: invalid allowed origin %q", o)
		}
	}
	return nil
}

// originPatterns converts allowed origins into the host patterns the
// WebSocket handshake matches against.
func (c *Config) originPatterns() []string {
	out := make([]string, 0, len(c.AllowedOrigins))
	for _, o := range c.AllowedOrigins {
		if o == "*" {
			out = append(out, "*")
			continue
		}
		if u, err := url.Parse(o); err == nil && u.Host != "" {
			out = append(out, u.Host)
		}
	}
	return out
}

// AuthConfig configures authentication for the API routes.
type AuthConfig struct {
	BearerToken string `yaml:"bearer_token"`
	BasicUser   string `yaml:"basic_user"`
	BasicPass   string `yaml:"basic_pass"`
}

// IsConfigured returns true if any auth method is configured.
func (a AuthConfig) IsConfigured() bool {
	return a.BearerToken != "" || (a.BasicUser != "" && a.BasicPass != "")
}
