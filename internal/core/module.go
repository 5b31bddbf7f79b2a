package core

import (
	"context"
	"strings"

	"gopkg.in/yaml.v3"
)

// ModuleID names a module as "<family>.<name>", e.g. "memory.sqlite".
type ModuleID string

// Family returns the part before the first dot ("memory" for
// "memory.sqlite"), or the whole ID when there is no dot.
func (id ModuleID) Family() string {
	family, _, _ := strings.Cut(string(id), ".")
	return family
}

// Name returns the part after the family.
func (id ModuleID) Name() string {
	_, name, ok := strings.Cut(string(id), ".")
	if !ok {
		return string(id)
	}
	return name
}

// ModuleInfo describes a registered module.
type ModuleInfo struct {
	ID ModuleID

	// New returns a fresh, unconfigured instance.
	New func() Module
}

// Module is implemented by everything the App manages.
type Module interface {
	ModuleInfo() ModuleInfo
}

// Optional lifecycle hooks. LoadModule runs Configure, Provision and
// Validate in that order; App.Start and App.Stop run the other two.

// Configurable modules receive their section of the modules map.
// Configure is skipped when the config file has no section for the module.
type Configurable interface {
	Configure(node *yaml.Node) error
}

// Provisioner modules apply defaults, open resources and publish
// services on the shared AppContext.
type Provisioner interface {
	Provision(ctx *AppContext) error
}

// Validator modules check their provisioned state. No side effects.
type Validator interface {
	Validate() error
}

// Starter modules begin background work: listeners, pools, tickers.
type Starter interface {
	Start() error
}

// Stopper modules release what Start acquired. Stop runs in reverse
// start order and must honor ctx.
type Stopper interface {
	Stop(ctx context.Context) error
}
