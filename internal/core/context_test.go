package core

import (
	"bytes"
	"errors"
	"log/slog"
	"slices"
	"strings"
	"testing"

	"gopkg.in/yaml.v3"
)

// trackingModule appends the hooks it sees to a shared log and fails the
// one named in failAt.
type trackingModule struct {
	id     ModuleID
	log    *[]string
	failAt string
	key    *string
}

func (m *trackingModule) ModuleInfo() ModuleInfo {
	return ModuleInfo{
		ID: m.id,
		New: func() Module {
			cp := *m
			return &cp
		},
	}
}

func (m *trackingModule) record(hook string) error {
	if m.log != nil {
		*m.log = append(*m.log, hook)
	}
	if hook == m.failAt {
		return errors.New(hook + " boom")
	}
	return nil
}

func (m *trackingModule) Configure(node *yaml.Node) error {
	if m.key != nil {
		var section struct {
			Key string `yaml:"key"`
		}
		if err := node.Decode(&section); err != nil {
			return err
		}
		*m.key = section.Key
	}
	return m.record("configure")
}

func (m *trackingModule) Provision(*AppContext) error { return m.record("provision") }
func (m *trackingModule) Validate() error             { return m.record("validate") }

// provisionOnly has no Configure hook.
type provisionOnly struct {
	id  ModuleID
	ran *bool
}

func (m *provisionOnly) ModuleInfo() ModuleInfo {
	return ModuleInfo{ID: m.id, New: func() Module { return &provisionOnly{id: m.id, ran: m.ran} }}
}

func (m *provisionOnly) Provision(*AppContext) error {
	*m.ran = true
	return nil
}

func section(t *testing.T, src string) yaml.Node {
	t.Helper()
	var doc yaml.Node
	if err := yaml.Unmarshal([]byte(src), &doc); err != nil {
		t.Fatal(err)
	}
	return *doc.Content[0]
}

func TestAppContext_LoadModule(t *testing.T) {
	tests := []struct {
		name       string
		withConfig bool
		failAt     string
		wantHooks  []string
		wantErr    bool
	}{
		{name: "configured", withConfig: true, wantHooks: []string{"configure", "provision", "validate"}},
		{name: "no_section_skips_configure", wantHooks: []string{"provision", "validate"}},
		{name: "configure_fails", withConfig: true, failAt: "configure", wantHooks: []string{"configure"}, wantErr: true},
		{name: "provision_fails", failAt: "provision", wantHooks: []string{"provision"}, wantErr: true},
		{name: "validate_fails", failAt: "validate", wantHooks: []string{"provision", "validate"}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Cleanup(resetRegistry)

			var hooks []string
			key := ""
			id := "content." + tt.name
			RegisterModule(&trackingModule{id: ModuleID(id), log: &hooks, failAt: tt.failAt, key: &key})

			ctx := NewAppContext(nil, t.TempDir())
			if tt.withConfig {
				ctx = ctx.WithModuleConfigs(map[string]yaml.Node{id: section(t, "key: tmdb-key")})
			}

			mod, err := ctx.LoadModule(id)
			if (err != nil) != tt.wantErr {
				t.Fatalf("LoadModule() error = %v, wantErr %v", err, tt.wantErr)
			}
			if !tt.wantErr && mod == nil {
				t.Fatal("LoadModule returned nil module")
			}
			if !slices.Equal(hooks, tt.wantHooks) {
				t.Errorf("hooks = %v, want %v", hooks, tt.wantHooks)
			}
			if tt.withConfig && tt.failAt != "configure" && key != "tmdb-key" {
				t.Errorf("decoded key = %q, want tmdb-key", key)
			}
		})
	}
}

func TestAppContext_LoadModule_UnknownID(t *testing.T) {
	t.Cleanup(resetRegistry)

	if _, err := NewAppContext(nil, "").LoadModule("memory.nowhere"); err == nil {
		t.Fatal("expected error for unknown module")
	}
}

func TestAppContext_LoadModule_SectionWithoutConfigure(t *testing.T) {
	t.Cleanup(resetRegistry)

	ran := false
	RegisterModule(&provisionOnly{id: "gateway.bare", ran: &ran})
	ctx := NewAppContext(nil, "").WithModuleConfigs(map[string]yaml.Node{
		"gateway.bare": section(t, "bind: 127.0.0.1:8080"),
	})

	if _, err := ctx.LoadModule("gateway.bare"); err != nil {
		t.Fatalf("LoadModule: %v", err)
	}
	if !ran {
		t.Error("Provision did not run")
	}
}

func TestAppContext_ForModule(t *testing.T) {
	var buf bytes.Buffer
	root := NewAppContext(slog.New(slog.NewTextHandler(&buf, nil)), "/var/lib/cinechat").
		WithModuleConfigs(map[string]yaml.Node{"memory.sqlite": section(t, "path: chat.db")})

	child := root.ForModule("memory.sqlite")
	grandchild := child.ForModule("content.tmdb")
	grandchild.Logger.Info("hello")

	if got := buf.String(); !strings.Contains(got, "module=content.tmdb") ||
		strings.Contains(got, "module=memory.sqlite") {
		t.Errorf("log line = %q, want only the innermost module attribute", got)
	}
	if child.DataDir != root.DataDir {
		t.Errorf("DataDir = %q, want %q", child.DataDir, root.DataDir)
	}
	if _, ok := child.ModuleConfig("memory.sqlite"); !ok {
		t.Error("scoped context lost module sections")
	}
}

func TestAppContext_ServicesSharedAcrossModules(t *testing.T) {
	ctx := NewAppContext(nil, "/data")
	a := ctx.ForModule("content.tmdb")
	b := ctx.ForModule("content.tvmaze")

	a.RegisterService(ServiceMemoryStore, "store")
	a.AppendService(ServiceHealthCheckers, NamedCheck{Name: "tmdb_api"})
	b.AppendService(ServiceHealthCheckers, NamedCheck{Name: "tvmaze_api"}, "not a check")

	if v, ok := ServiceAs[string](b, ServiceMemoryStore); !ok || v != "store" {
		t.Errorf("ServiceAs = %q, %v", v, ok)
	}
	if _, ok := ServiceAs[int](ctx, ServiceMemoryStore); ok {
		t.Error("ServiceAs with wrong type should report false")
	}
	checks := HealthChecks(ctx)
	if len(checks) != 2 || checks[0].Name != "tmdb_api" || checks[1].Name != "tvmaze_api" {
		t.Errorf("HealthChecks = %+v", checks)
	}
}
