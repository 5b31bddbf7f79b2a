package tool

import (
	"context"
	"encoding/json"
	"errors"
	"slices"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/flemzord/cinechat/internal/security"
	"github.com/flemzord/cinechat/internal/security/securitytest"
)

type registryTestTool struct {
	name         string
	output       Output
	executeErr   error
	executeCalls *int
}

func (t registryTestTool) Name() string            { return t.name }
func (t registryTestTool) Description() string     { return "registry test tool" }
func (t registryTestTool) Schema() json.RawMessage { return json.RawMessage(`{"type":"object"}`) }
func (t registryTestTool) Execute(context.Context, json.RawMessage) (Output, error) {
	if t.executeCalls != nil {
		*t.executeCalls = *t.executeCalls + 1
	}
	if t.executeErr != nil {
		return Output{}, t.executeErr
	}
	if t.output.Content != "" || t.output.IsError {
		return t.output, nil
	}
	return Output{Content: "ok"}, nil
}

func TestRegistryRegister_EmptyName(t *testing.T) {
	t.Parallel()

	r := NewRegistry()
	for _, name := range []string{"", "   "} {
		if err := r.Register(registryTestTool{name: name}); !errors.Is(err, ErrEmptyToolName) {
			t.Fatalf("Register(%q): expected ErrEmptyToolName, got %v", name, err)
		}
	}
}

func TestRegistryRegister_Duplicate(t *testing.T) {
	t.Parallel()

	r := NewRegistry()
	t1 := registryTestTool{name: "search_tmdb"}
	if err := r.Register(t1); err != nil {
		t.Fatalf("unexpected first register error: %v", err)
	}

	err := r.RegisterAll(registryTestTool{name: "get_tv_schedule"}, t1)
	if !errors.Is(err, ErrDuplicateTool) {
		t.Fatalf("expected ErrDuplicateTool, got %v", err)
	}
	if r.Len() != 2 {
		t.Errorf("Len() = %d, want 2", r.Len())
	}
}

func TestRegistryDefinitions_SortedAndTrimmed(t *testing.T) {
	t.Parallel()

	r := NewRegistry()
	if err := r.RegisterAll(
		registryTestTool{name: " search_tmdb "},
		registryTestTool{name: "get_media_details"},
	); err != nil {
		t.Fatalf("register error: %v", err)
	}

	defs := r.Definitions()
	if len(defs) != 2 {
		t.Fatalf("got %d definitions, want 2", len(defs))
	}
	if defs[0].Name != "get_media_details" || defs[1].Name != "search_tmdb" {
		t.Errorf("names = %q, %q", defs[0].Name, defs[1].Name)
	}
	if string(defs[1].Parameters) != `{"type":"object"}` {
		t.Errorf("parameters = %s", defs[1].Parameters)
	}
	if got := r.Names(); strings.Join(got, ",") != "get_media_details,search_tmdb" {
		t.Errorf("Names() = %v", got)
	}
}

func TestRegistryExecute(t *testing.T) {
	t.Parallel()

	r := NewRegistry()
	calls := 0
	if err := r.Register(registryTestTool{
		name:         "search_tmdb",
		executeCalls: &calls,
		output:       Output{Content: "done"},
	}); err != nil {
		t.Fatalf("register error: %v", err)
	}

	out, err := r.Execute(context.Background(), "search_tmdb", json.RawMessage(`{"query":"heat"}`))
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if out.Content != "done" || calls != 1 {
		t.Errorf("out = %+v, calls = %d", out, calls)
	}
}

func TestRegistryExecute_NotFound(t *testing.T) {
	t.Parallel()

	_, err := NewRegistry().Execute(context.Background(), "missing", nil)
	if !errors.Is(err, ErrToolNotFound) {
		t.Fatalf("expected ErrToolNotFound, got %v", err)
	}
}

func TestRegistryExecute_AuditsCallAndResult(t *testing.T) {
	t.Parallel()

	audit, rec := securitytest.NewAuditRecorder()
	r := NewRegistry(WithAudit(audit))
	boom := errors.New("upstream down")
	if err := r.Register(registryTestTool{name: "get_trending_media", executeErr: boom}); err != nil {
		t.Fatal(err)
	}

	if _, err := r.Execute(context.Background(), "get_trending_media", json.RawMessage(`{}`)); !errors.Is(err, boom) {
		t.Fatalf("Execute err = %v", err)
	}
	if got := rec.Types(); !slices.Equal(got, []security.EventType{security.EventToolCall, security.EventToolResult}) {
		t.Fatalf("event types = %v", got)
	}
	if events := rec.Events(); events[1].Metadata["is_error"] != "true" {
		t.Errorf("is_error = %q", events[1].Metadata["is_error"])
	}
}

func TestRegistryExecute_RateLimited(t *testing.T) {
	t.Parallel()

	r := NewRegistry(WithRateLimiter(security.NewRateLimiter(security.RateLimitConfig{ToolCallsPerMin: 1})))
	calls := 0
	if err := r.Register(registryTestTool{name: "search_tmdb", executeCalls: &calls}); err != nil {
		t.Fatal(err)
	}

	if _, err := r.Execute(context.Background(), "search_tmdb", nil); err != nil {
		t.Fatalf("first call: %v", err)
	}
	if _, err := r.Execute(context.Background(), "search_tmdb", nil); !errors.Is(err, security.ErrRateLimited) {
		t.Fatalf("second call err = %v, want ErrRateLimited", err)
	}
	if calls != 1 {
		t.Errorf("calls = %d, want 1", calls)
	}
}

func TestClip(t *testing.T) {
	t.Parallel()

	if got := clip("short"); got != "short" {
		t.Errorf("clip(short) = %q", got)
	}

	got := clip(strings.Repeat("é", auditDetailLimit))
	if !strings.HasSuffix(got, "...(truncated)") {
		t.Error("missing truncation marker")
	}
	if !utf8.ValidString(got) || len(got) > auditDetailLimit+len("...(truncated)") {
		t.Errorf("bad cut: %d bytes, valid=%v", len(got), utf8.ValidString(got))
	}
}
