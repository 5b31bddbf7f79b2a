package tmdb

import (
	"errors"
	"net/url"
	"strings"

	"github.com/flemzord/cinechat/internal/content"
)

const defaultBaseURL = "https://api.themoviedb.org/3"

// Config holds the TMDB module configuration.
type Config struct {
	// BaseURL is the API root. Defaults to https://api.themoviedb.org/3.
	BaseURL string `yaml:"base_url"`

	// APIKey is sent as the api_key query parameter, typically ${TMDB_API_KEY}.
	APIKey string `yaml:"api_key"`

	// Language is forwarded to TMDB when set, e.g. "en-US".
	Language string `yaml:"language"`

	content.RetryConfig `yaml:",inline"`
}

func (c *Config) defaults() {
	if c.BaseURL == "" {
		c.BaseURL = defaultBaseURL
	}
	c.BaseURL = strings.TrimRight(c.BaseURL, "/")
	c.RetryConfig.Defaults()
}

func (c *Config) validate() error {
	if c.APIKey == "" {
		return errors.New("tmdb: api_key is required")
	}
	u, err := url.Parse(c.BaseURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return errors.New("tmdb: base_url must be an absolute URL")
	}
	if _, err := c.RetryConfig.Parse(); err != nil {
		return errors.New("tmdb: " + err.Error())
	}
	return nil
}

// authQuery is added to every request.
func (c *Config) authQuery() url.Values {
	q := url.Values{"api_key": {c.APIKey}}
	if c.Language != "" {
		q.Set("language", c.Language)
	}
	return q
}
