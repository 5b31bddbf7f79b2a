package core

import (
	"context"
	"sync"
)

// Well-known service names.
const (
	ServiceMemoryStore    = "memory.store"
	ServiceContentTools   = "content.tools"
	ServiceHealthCheckers = "health.checkers"
	ServiceOrchestrator   = "orchestrator"
	ServiceToolRegistry   = "tool.registry"
	ServiceCredentials    = "security.credentials"
	ServiceAuditLogger    = "security.audit"
	ServiceRateLimiter    = "security.ratelimiter"
	ServiceVersion        = "app.version"
)

// NamedCheck is a dependency probe reported by the health endpoint.
type NamedCheck struct {
	Name  string
	Check func(ctx context.Context) error
}

type serviceRegistry struct {
	mu       sync.RWMutex
	services map[string]any
	lists    map[string][]any
}

func newServiceRegistry() *serviceRegistry {
	return &serviceRegistry{
		services: make(map[string]any),
		lists:    make(map[string][]any),
	}
}

// RegisterService publishes a value under name, replacing any previous one.
func (ctx *AppContext) RegisterService(name string, svc any) {
	ctx.services.mu.Lock()
	defer ctx.services.mu.Unlock()
	ctx.services.services[name] = svc
}

// GetService returns the value published under name.
func (ctx *AppContext) GetService(name string) (any, bool) {
	ctx.services.mu.RLock()
	defer ctx.services.mu.RUnlock()
	svc, ok := ctx.services.services[name]
	return svc, ok
}

// AppendService adds values to the list published under name. Lists let
// several modules contribute to the same service (tools, health probes).
func (ctx *AppContext) AppendService(name string, svcs ...any) {
	ctx.services.mu.Lock()
	defer ctx.services.mu.Unlock()
	ctx.services.lists[name] = append(ctx.services.lists[name], svcs...)
}

// ServiceList returns a copy of the list published under name.
func (ctx *AppContext) ServiceList(name string) []any {
	ctx.services.mu.RLock()
	defer ctx.services.mu.RUnlock()
	return append([]any(nil), ctx.services.lists[name]...)
}

// ServiceAs returns the service published under name as a T.
func ServiceAs[T any](ctx *AppContext, name string) (T, bool) {
	var zero T
	svc, ok := ctx.GetService(name)
	if !ok {
		return zero, false
	}
	v, ok := svc.(T)
	return v, ok
}

// ListAs returns the entries of the list published under name that are Ts.
func ListAs[T any](ctx *AppContext, name string) []T {
	var out []T
	for _, svc := range ctx.ServiceList(name) {
		if v, ok := svc.(T); ok {
			out = append(out, v)
		}
	}
	return out
}

// HealthChecks returns the probes registered under ServiceHealthCheckers.
func HealthChecks(ctx *AppContext) []NamedCheck {
	return ListAs[NamedCheck](ctx, ServiceHealthCheckers)
}
