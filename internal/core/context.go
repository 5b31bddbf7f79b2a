// Package core provides the module system that wires cinechat together:
// module registration, lifecycle ordering and a shared service registry.
package core

import (
	"fmt"
	"log/slog"

	"gopkg.in/yaml.v3"
)

// AppContext is handed to every module during Provision. Contexts derived
// with ForModule share one service registry.
type AppContext struct {
	// Logger is tagged with the module ID once scoped by ForModule.
	Logger *slog.Logger

	// DataDir holds persistent state such as the SQLite history file.
	DataDir string

	root     *slog.Logger
	sections map[string]yaml.Node
	services *serviceRegistry
}

// NewAppContext returns a root context. A nil logger uses slog.Default().
func NewAppContext(logger *slog.Logger, dataDir string) *AppContext {
	if logger == nil {
		logger = slog.Default()
	}
	return &AppContext{
		Logger:   logger,
		DataDir:  dataDir,
		root:     logger,
		services: newServiceRegistry(),
	}
}

// WithModuleConfigs returns a copy of ctx that serves the given per-module
// YAML sections, keyed by module ID.
func (ctx *AppContext) WithModuleConfigs(sections map[string]yaml.Node) *AppContext {
	cp := *ctx
	cp.sections = sections
	return &cp
}

// ModuleConfig returns the YAML section configured for id.
func (ctx *AppContext) ModuleConfig(id string) (yaml.Node, bool) {
	node, ok := ctx.sections[id]
	return node, ok
}

// ForModule scopes ctx to one module: the logger gains a module attribute,
// everything else is shared.
func (ctx *AppContext) ForModule(id ModuleID) *AppContext {
	cp := *ctx
	cp.Logger = ctx.root.With("module", string(id))
	return &cp
}

// LoadModule builds the module registered as id and takes it through
// Configure, Provision and Validate. Each hook is optional.
func (ctx *AppContext) LoadModule(id string) (Module, error) {
	info, ok := GetModule(id)
	if !ok {
		return nil, fmt.Errorf("unknown module: %s", id)
	}
	mod := info.New()

	if c, ok := mod.(Configurable); ok {
		if node, found := ctx.ModuleConfig(id); found {
			if err := c.Configure(&node); err != nil {
				return nil, fmt.Errorf("configuring module %s: %w", id, err)
			}
		}
	}
	if p, ok := mod.(Provisioner); ok {
		if err := p.Provision(ctx.ForModule(info.ID)); err != nil {
			return nil, fmt.Errorf("provisioning module %s: %w", id, err)
		}
	}
	if v, ok := mod.(Validator); ok {
		if err := v.Validate(); err != nil {
			return nil, fmt.Errorf("validating module %s: %w", id, err)
		}
	}
	return mod, nil
}
