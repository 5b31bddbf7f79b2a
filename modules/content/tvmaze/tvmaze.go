// Package tvmaze registers the get_tv_schedule tool backed by TVMaze.
package tvmaze

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"gopkg.in/yaml.v3"

	"github.com/flemzord/cinechat/internal/content"
	"github.com/flemzord/cinechat/internal/core"
	"github.com/flemzord/cinechat/internal/tool"
)

func init() {
	core.RegisterModule(&Module{})
}

var (
	_ core.Configurable = (*Module)(nil)
	_ core.Provisioner  = (*Module)(nil)
	_ core.Validator    = (*Module)(nil)
)

// Module publishes the TVMaze schedule tool and the tvmaze_api probe.
type Module struct {
	config Config
}

// ModuleInfo implements core.Module.
func (m *Module) ModuleInfo() core.ModuleInfo {
	return core.ModuleInfo{
		ID:  "content.tvmaze",
		New: func() core.Module { return &Module{} },
	}
}

// Configure implements core.Configurable.
func (m *Module) Configure(node *yaml.Node) error {
	if err := node.Decode(&m.config); err != nil {
		return fmt.Errorf("tvmaze: decode config: %w", err)
	}
	m.config.defaults()
	return nil
}

// Provision implements core.Provisioner.
func (m *Module) Provision(ctx *core.AppContext) error {
	m.config.defaults()
	if err := m.config.validate(); err != nil {
		return err
	}
	client, err := New(m.config, ctx.Logger)
	if err != nil {
		return err
	}

	ctx.AppendService(core.ServiceContentTools, ScheduleTool(client))
	ctx.AppendService(core.ServiceHealthCheckers, core.NamedCheck{Name: "tvmaze_api", Check: client.Ping})
	return nil
}

// Validate implements core.Validator.
func (m *Module) Validate() error {
	return m.config.validate()
}

// New builds a TVMaze client from cfg.
func New(cfg Config, logger *slog.Logger) (*Client, error) {
	cfg.defaults()
	policy, err := cfg.RetryConfig.Parse()
	if err != nil {
		return nil, fmt.Errorf("tvmaze: %w", err)
	}
	return NewClient(content.NewClient("tvmaze", cfg.BaseURL, nil, policy, nil, logger)), nil
}

type scheduleArgs struct {
	ShowName string `json:"show_name"`
}

// ScheduleTool exposes Client.Schedule as get_tv_schedule.
func ScheduleTool(c *Client) tool.Tool {
	return &tool.Func[scheduleArgs]{
		ToolName: "get_tv_schedule",
		Desc:     "Get the airing status of a TV show: network, status and the next and previous episode air dates.",
		Params: json.RawMessage(`{
			"type": "object",
			"properties": {
				"show_name": {"type": "string", "description": "Show title, e.g. Severance"}
			},
			"required": ["show_name"]
		}`),
		Run: func(ctx context.Context, a scheduleArgs) (any, error) {
			return c.Schedule(ctx, a.ShowName)
		},
	}
}
