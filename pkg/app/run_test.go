package app

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"gopkg.in/yaml.v3"

	"github.com/flemzord/cinechat/internal/config"
	"github.com/flemzord/cinechat/internal/core"
	"github.com/flemzord/cinechat/internal/memory"
	"github.com/flemzord/cinechat/internal/orchestrator"
	"github.com/flemzord/cinechat/internal/provider/providertest"
	"github.com/flemzord/cinechat/internal/tool"
	"github.com/flemzord/cinechat/internal/tool/tooltest"
)

// Stub modules standing in for the real gateway, store, provider and
// content modules.

type stubGateway struct {
	MaxLength int `yaml:"message_max_length"`
}

func (*stubGateway) ModuleInfo() core.ModuleInfo {
	return core.ModuleInfo{ID: "gateway.apptest", New: func() core.Module { return &stubGateway{} }}
}

func (g *stubGateway) Configure(node *yaml.Node) error { return node.Decode(g) }

func (g *stubGateway) MessageMaxLength() int { return g.MaxLength }

type stubStore struct{}

func (stubStore) ModuleInfo() core.ModuleInfo {
	return core.ModuleInfo{ID: "memory.apptest", New: func() core.Module { return &stubStore{} }}
}

func (*stubStore) Provision(ctx *core.AppContext) error {
	store := memory.NewInMemoryStore()
	ctx.RegisterService(core.ServiceMemoryStore, memory.Store(store))
	ctx.AppendService(core.ServiceHealthCheckers, core.NamedCheck{Name: "database", Check: store.Ping})
	return nil
}

type stubProvider struct {
	*providertest.MockProvider
}

func (stubProvider) ModuleInfo() core.ModuleInfo {
	return core.ModuleInfo{ID: "provider.apptest", New: func() core.Module {
		return stubProvider{MockProvider: &providertest.MockProvider{}}
	}}
}

type stubContent struct{}

func (stubContent) ModuleInfo() core.ModuleInfo {
	return core.ModuleInfo{ID: "content.apptest", New: func() core.Module { return &stubContent{} }}
}

func (*stubContent) Provision(ctx *core.AppContext) error {
	ctx.AppendService(core.ServiceContentTools, tool.Tool(&tooltest.MockTool{
		NameFunc: func() string { return "search_tmdb" },
	}))
	return nil
}

func init() {
	core.RegisterModule(&stubGateway{})
	core.RegisterModule(&stubStore{})
	core.RegisterModule(stubProvider{})
	core.RegisterModule(&stubContent{})
}

const stubConfig = `version: "1"
log:
  level: debug
agent:
  max_run_age: 15m
modules:
  gateway.apptest: {}
  memory.apptest: {}
  provider.apptest: {}
  content.apptest: {}
`

func TestBuild_WiresOrchestrator(t *testing.T) {
	cfg, err := config.Parse([]byte(stubConfig))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if err := config.Validate(cfg); err != nil {
		t.Fatalf("Validate: %v", err)
	}

	var logs bytes.Buffer
	application, rt, err := Build(cfg, RunParams{
		DataDir:   t.TempDir(),
		Version:   "1.0.0",
		LogOutput: &logs,
	})
	if err != nil {
		t.Fatalf("Build: %v", err)
	}

	if _, ok := core.ServiceAs[*orchestrator.Orchestrator](rt.AppCtx, core.ServiceOrchestrator); !ok {
		t.Error("orchestrator service not registered")
	}
	reg, ok := core.ServiceAs[*tool.Registry](rt.AppCtx, core.ServiceToolRegistry)
	if !ok || reg.Len() != 1 {
		t.Errorf("tool registry = %v, %v; want one tool", reg, ok)
	}
	if v, _ := core.ServiceAs[string](rt.AppCtx, core.ServiceVersion); v != "1.0.0" {
		t.Errorf("version service = %q", v)
	}
	for _, id := range []string{"orchestrator", "cron"} {
		if _, ok := application.Module(id); !ok {
			t.Errorf("module %q not appended", id)
		}
	}

	if err := application.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	application.Stop()

	if !strings.Contains(logs.String(), "orchestrator wired") {
		t.Errorf("expected wiring log, got: %s", logs.String())
	}
}

func TestBuild_OrchestratorFollowsGatewayMessageLimit(t *testing.T) {
	cfg, err := config.Parse([]byte(strings.Replace(stubConfig,
		"gateway.apptest: {}", "gateway.apptest:\n    message_max_length: 3000", 1)))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}

	application, rt, err := Build(cfg, RunParams{DataDir: t.TempDir(), LogOutput: &bytes.Buffer{}})
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	t.Cleanup(func() { _ = application.Stop() })
	orch, _ := core.ServiceAs[*orchestrator.Orchestrator](rt.AppCtx, core.ServiceOrchestrator)

	tests := []struct {
		name      string
		length    int
		wantValid bool
	}{
		{name: "above_default", length: 2500, wantValid: true},
		{name: "at_limit", length: 3000, wantValid: true},
		{name: "over_limit", length: 3001, wantValid: false},
	}
	for _, tt := range tests {
		_, err := orch.Submit(context.Background(), orchestrator.SubmitRequest{
			SessionID: "s-" + tt.name,
			Message:   strings.Repeat("a", tt.length),
		})
		var verr *orchestrator.ValidationError
		if got := !errors.As(err, &verr); got != tt.wantValid {
			t.Errorf("%s: Submit err = %v, want accepted = %v", tt.name, err, tt.wantValid)
		}
	}
}

func TestBuild_RedactsModuleCredentials(t *testing.T) {
	cfg, err := config.Parse([]byte(stubConfig))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}

	var logs bytes.Buffer
	_, rt, err := Build(cfg, RunParams{DataDir: t.TempDir(), LogOutput: &logs})
	if err != nil {
		t.Fatalf("Build: %v", err)
	}

	rt.Credentials.Set("tmdb_api_key", "tmdb-key-0123456789")
	rt.Logger.Info("upstream call", "url", "https://api.themoviedb.org/3/movie/550?api_key=tmdb-key-0123456789")

	if strings.Contains(logs.String(), "tmdb-key-0123456789") {
		t.Errorf("secret leaked into logs: %s", logs.String())
	}
}

func TestResolveConfigPath_XDGConfigHome(t *testing.T) {
	dir := t.TempDir()
	cfgDir := filepath.Join(dir, "cinechat")
	if err := os.MkdirAll(cfgDir, 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	cfgPath := filepath.Join(cfgDir, "cinechat.yaml")
	if err := os.WriteFile(cfgPath, []byte("version: \"1\""), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}

	t.Setenv("XDG_CONFIG_HOME", dir)

	got, err := ResolveConfigPath()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != cfgPath {
		t.Errorf("got %q, want %q", got, cfgPath)
	}
}

func TestResolveConfigPath_NotFound(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", "/nonexistent/path")
	t.Chdir(t.TempDir())

	if _, err := ResolveConfigPath(); err == nil {
		t.Error("expected error when no config file found")
	}
}

func TestDefaultDataDir_XDGDataHome(t *testing.T) {
	t.Setenv("XDG_DATA_HOME", "/custom/data")
	if got, want := DefaultDataDir(), "/custom/data/cinechat"; got != want {
		t.Errorf("got %q, want %q", got, want)
	}
}

func TestDefaultDataDir_Fallback(t *testing.T) {
	t.Setenv("XDG_DATA_HOME", "")

	home, _ := os.UserHomeDir()
	if got, want := DefaultDataDir(), filepath.Join(home, ".local", "share", "cinechat"); got != want {
		t.Errorf("got %q, want %q", got, want)
	}
}

func TestRun_InvalidConfigPath(t *testing.T) {
	if err := Run(RunParams{ConfigPath: "/nonexistent/config.yaml"}); err == nil {
		t.Error("expected error for invalid config path")
	}
}

func TestRun_InvalidConfigContent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.yaml")
	if err := os.WriteFile(path, []byte("not: valid: yaml: ["), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	if err := Run(RunParams{ConfigPath: path}); err == nil {
		t.Error("expected error for invalid YAML")
	}
}

func TestRun_ValidationFailure(t *testing.T) {
	path := filepath.Join(t.TempDir(), "noversion.yaml")
	if err := os.WriteFile(path, []byte("modules:\n  foo.bar: {}"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	if err := Run(RunParams{ConfigPath: path}); err == nil {
		t.Error("expected validation error")
	}
}

func TestRun_StopChannel(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cinechat.yaml")
	if err := os.WriteFile(path, []byte(stubConfig), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}

	stop := make(chan struct{})
	close(stop)
	err := Run(RunParams{
		ConfigPath: path,
		DataDir:    t.TempDir(),
		LogOutput:  &bytes.Buffer{},
		Stop:       stop,
	})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
}
