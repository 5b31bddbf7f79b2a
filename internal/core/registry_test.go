package core

import "testing"

func TestModuleID_Parts(t *testing.T) {
	tests := []struct {
		id           ModuleID
		family, name string
	}{
		{"memory.sqlite", "memory", "sqlite"},
		{"provider.concentrate", "provider", "concentrate"},
		{"orchestrator", "orchestrator", "orchestrator"},
	}
	for _, tt := range tests {
		if tt.id.Family() != tt.family || tt.id.Name() != tt.name {
			t.Errorf("%s = (%q, %q), want (%q, %q)", tt.id, tt.id.Family(), tt.id.Name(), tt.family, tt.name)
		}
	}
}

func TestRegistry_ByFamily(t *testing.T) {
	t.Cleanup(resetRegistry)

	for _, id := range []ModuleID{"memory.sqlite", "memory.gorm", "content.tmdb"} {
		RegisterModule(&trackingModule{id: id})
	}

	mem := GetModulesByFamily("memory")
	if len(mem) != 2 || mem[0].ID != "memory.gorm" || mem[1].ID != "memory.sqlite" {
		t.Errorf("memory family = %v, want gorm then sqlite", mem)
	}
	if all := GetModules(); len(all) != 3 || all[0].ID != "content.tmdb" {
		t.Errorf("GetModules = %v", all)
	}
	if _, ok := GetModule("content.tmdb"); !ok {
		t.Error("GetModule(content.tmdb) not found")
	}
}

func TestRegisterModule_Panics(t *testing.T) {
	t.Cleanup(resetRegistry)

	mustPanic := func(name string, fn func()) {
		t.Helper()
		defer func() {
			if recover() == nil {
				t.Errorf("%s: expected panic", name)
			}
		}()
		fn()
	}

	RegisterModule(&trackingModule{id: "content.tvmaze"})
	mustPanic("duplicate", func() { RegisterModule(&trackingModule{id: "content.tvmaze"}) })
	mustPanic("empty", func() { RegisterModule(&trackingModule{id: ""}) })
}
