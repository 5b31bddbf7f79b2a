// Package tmdb registers the TMDB tool catalogue: search, details,
// listings, related items, discovery and external id lookup.
package tmdb

import (
	"fmt"
	"log/slog"

	"gopkg.in/yaml.v3"

	"github.com/flemzord/cinechat/internal/content"
	"github.com/flemzord/cinechat/internal/core"
	"github.com/flemzord/cinechat/internal/security"
)

func init() {
	core.RegisterModule(&Module{})
}

// Compile-time interface guards.
var (
	_ core.Configurable = (*Module)(nil)
	_ core.Provisioner  = (*Module)(nil)
	_ core.Validator    = (*Module)(nil)
)

// Module publishes the TMDB tools and the tmdb_api health probe.
type Module struct {
	config Config
	client *Client
	logger *slog.Logger
}

// ModuleInfo implements core.Module.
func (m *Module) ModuleInfo() core.ModuleInfo {
	return core.ModuleInfo{
		ID:  "content.tmdb",
		New: func() core.Module { return &Module{} },
	}
}

// Configure implements core.Configurable.
func (m *Module) Configure(node *yaml.Node) error {
	if err := node.Decode(&m.config); err != nil {
		return fmt.Errorf("tmdb: decode config: %w", err)
	}
	m.config.defaults()
	return nil
}

// Provision implements core.Provisioner.
func (m *Module) Provision(ctx *core.AppContext) error {
	m.config.defaults()
	m.logger = ctx.Logger
	if err := m.config.validate(); err != nil {
		return err
	}

	client, err := New(m.config, m.logger)
	if err != nil {
		return err
	}
	m.client = client

	if creds, ok := core.ServiceAs[*security.CredentialStore](ctx, core.ServiceCredentials); ok {
		creds.Set(security.CredentialTMDBKey, m.config.APIKey)
	}
	for _, t := range Tools(client) {
		ctx.AppendService(core.ServiceContentTools, t)
	}
	ctx.AppendService(core.ServiceHealthCheckers, core.NamedCheck{Name: "tmdb_api", Check: client.Ping})
	return nil
}

// Validate implements core.Validator.
func (m *Module) Validate() error {
	return m.config.validate()
}

// New builds a TMDB client from cfg outside the module system.
func New(cfg Config, logger *slog.Logger) (*Client, error) {
	cfg.defaults()
	policy, err := cfg.RetryConfig.Parse()
	if err != nil {
		return nil, fmt.Errorf("tmdb: %w", err)
	}
	api := content.NewClient("tmdb", cfg.BaseURL, cfg.authQuery(), policy, nil, logger)
	return NewClient(api), nil
}
