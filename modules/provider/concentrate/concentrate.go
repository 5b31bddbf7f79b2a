// Package concentrate implements a provider.Provider backed by the
// Concentrate /responses endpoint. It supports single JSON responses,
// server-sent event streams with a non-stream fallback, and native
// function calling.
package concentrate

import (
	"fmt"
	"net"
	"net/http"
	"net/url"

	"gopkg.in/yaml.v3"

	"github.com/flemzord/cinechat/internal/core"
	"github.com/flemzord/cinechat/internal/provider"
	"github.com/flemzord/cinechat/internal/security"
)

// Interface guards.
var (
	_ provider.Provider      = (*Concentrate)(nil)
	_ provider.HealthChecker = (*Concentrate)(nil)
	_ core.Configurable      = (*Concentrate)(nil)
	_ core.Provisioner       = (*Concentrate)(nil)
	_ core.Validator         = (*Concentrate)(nil)
)

func init() {
	core.RegisterModule(&Concentrate{})
}

// Concentrate is a provider.Provider that talks to the Concentrate API.
type Concentrate struct {
	config Config
	client *http.Client
}

// New builds a provider outside the module system, mostly for tests and
// the mcp command. cfg is completed with defaults.
func New(cfg Config, client *http.Client) *Concentrate {
	cfg.defaults()
	if client == nil {
		client = http.DefaultClient
	}
	return &Concentrate{config: cfg, client: client}
}

// ModuleInfo returns the module metadata for registration.
func (c *Concentrate) ModuleInfo() core.ModuleInfo {
	return core.ModuleInfo{
		ID:  "provider.concentrate",
		New: func() core.Module { return &Concentrate{} },
	}
}

// Configure decodes the YAML configuration and applies defaults.
func (c *Concentrate) Configure(node *yaml.Node) error {
	if err := node.Decode(&c.config); err != nil {
		return fmt.Errorf("concentrate: decoding config: %w", err)
	}
	c.config.defaults()
	return nil
}

// Provision creates the HTTP client and registers the provider and its
// health probe as services.
//
// The client uses transport-level timeouts instead of http.Client.Timeout
// so long-running streams are not cut mid-answer.
func (c *Concentrate) Provision(ctx *core.AppContext) error {
	c.config.defaults()
	timeout, err := c.config.parsedTimeout()
	if err != nil {
		return fmt.Errorf("concentrate: invalid timeout %q: %w", c.config.Timeout, err)
	}

	c.client = &http.Client{
		Transport: &http.Transport{
			Proxy:                 http.ProxyFromEnvironment,
			DialContext:           (&net.Dialer{Timeout: timeout}).DialContext,
			TLSHandshakeTimeout:   timeout,
			ResponseHeaderTimeout: timeout,
		},
	}

	if creds, ok := core.ServiceAs[*security.CredentialStore](ctx, core.ServiceCredentials); ok && c.config.APIKey != "" {
		creds.Set(security.CredentialConcentrateKey, c.config.APIKey)
	}
	ctx.RegisterService("provider.concentrate", c)
	ctx.AppendService(core.ServiceHealthCheckers, core.NamedCheck{Name: "concentrate_ai", Check: c.HealthCheck})
	return nil
}

// Validate checks that required configuration fields are set.
func (c *Concentrate) Validate() error {
	if c.config.APIKey == "" {
		return fmt.Errorf("concentrate: api_key is required")
	}

	u, err := url.Parse(c.config.BaseURL)
	if err != nil {
		return fmt.Errorf("concentrate: invalid base_url: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("concentrate: base_url scheme must be http or https, got %q", u.Scheme)
	}
	if u.Host == "" {
		return fmt.Errorf("concentrate: base_url must include a host")
	}
	return nil
}
