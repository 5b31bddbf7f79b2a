package tvmaze

import (
	"errors"
	"net/url"
	"strings"

	"github.com/flemzord/cinechat/internal/content"
)

const defaultBaseURL = "https://api.tvmaze.com"

// Config holds the TVMaze module configuration. TVMaze needs no key.
type Config struct {
	BaseURL string `yaml:"base_url"`

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
	u, err := url.Parse(c.BaseURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return errors.New("tvmaze: base_url must be an absolute URL")
	}
	if _, err := c.RetryConfig.Parse(); err != nil {
		return errors.New("tvmaze: " + err.Error())
	}
	return nil
}
