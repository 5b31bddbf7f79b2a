package tool

import (
	"context"
	"encoding/json"
	"fmt"
	"maps"
	"slices"
	"strconv"
	"strings"
	"sync"
	"unicode/utf8"

	"github.com/flemzord/cinechat/internal/provider"
	"github.com/flemzord/cinechat/internal/security"
)

// auditDetailLimit caps arguments and outputs copied into audit events.
const auditDetailLimit = 4096

// Option configures a Registry.
type Option func(*Registry)

// WithAudit records every call and its result.
func WithAudit(l *security.AuditLogger) Option {
	return func(r *Registry) { r.audit = l }
}

// WithRateLimiter charges every call to the tool_call bucket.
func WithRateLimiter(l *security.RateLimiter) Option {
	return func(r *Registry) { r.limiter = l }
}

// Registry maps tool names to tools and runs calls through the rate
// limiter and the audit log.
type Registry struct {
	audit   *security.AuditLogger
	limiter *security.RateLimiter

	mu    sync.RWMutex
	tools map[string]Tool
}

// NewRegistry returns an empty registry.
func NewRegistry(opts ...Option) *Registry {
	r := &Registry{tools: map[string]Tool{}}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Register adds t under its trimmed name.
func (r *Registry) Register(t Tool) error {
	name := strings.TrimSpace(t.Name())
	if name == "" {
		return ErrEmptyToolName
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, taken := r.tools[name]; taken {
		return fmt.Errorf("%w: %s", ErrDuplicateTool, name)
	}
	r.tools[name] = t
	return nil
}

// RegisterAll registers tools in order and stops at the first error.
func (r *Registry) RegisterAll(tools ...Tool) error {
	for _, t := range tools {
		if err := r.Register(t); err != nil {
			return err
		}
	}
	return nil
}

// Get looks a tool up by name.
func (r *Registry) Get(name string) (Tool, error) {
	r.mu.RLock()
	t, ok := r.tools[name]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrToolNotFound, name)
	}
	return t, nil
}

func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.tools)
}

// Names lists the registered tools alphabetically.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return slices.Sorted(maps.Keys(r.tools))
}

// Definitions describes every tool to the model, ordered by name.
func (r *Registry) Definitions() []provider.ToolDefinition {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := slices.Sorted(maps.Keys(r.tools))
	defs := make([]provider.ToolDefinition, len(names))
	for i, name := range names {
		t := r.tools[name]
		defs[i] = provider.ToolDefinition{Name: name, Description: t.Description(), Parameters: t.Schema()}
	}
	return defs
}

// Execute runs the named tool. A rate-limited call never reaches the tool.
func (r *Registry) Execute(ctx context.Context, name string, args json.RawMessage) (Output, error) {
	t, err := r.Get(name)
	if err != nil {
		return Output{}, err
	}
	if r.limiter != nil {
		if err := r.limiter.Allow(security.BucketToolCall); err != nil {
			r.record(security.EventRateLimit, name, "tool_call rate limit exceeded", nil)
			return Output{}, fmt.Errorf("tool %s: %w", name, err)
		}
	}

	r.record(security.EventToolCall, name, clip(string(args)), nil)
	out, err := t.Execute(ctx, args)

	detail := clip(out.Content)
	if err != nil {
		detail = "error: " + err.Error()
	}
	r.record(security.EventToolResult, name, detail, map[string]string{
		"is_error": strconv.FormatBool(out.IsError || err != nil),
	})
	return out, err
}

func (r *Registry) record(kind security.EventType, name, detail string, meta map[string]string) {
	if r.audit == nil {
		return
	}
	r.audit.Log(security.AuditEvent{Type: kind, ToolName: name, Detail: detail, Metadata: meta})
}

// clip shortens s to auditDetailLimit bytes on a rune boundary.
func clip(s string) string {
	if len(s) <= auditDetailLimit {
		return s
	}
	cut := auditDetailLimit
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut] + "...(truncated)"
}
