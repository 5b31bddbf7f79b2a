package core

import (
	"cmp"
	"fmt"
	"slices"
	"sync"
)

// moduleRegistry holds the modules compiled into the binary. Modules add
// themselves from init() through RegisterModule.
type moduleRegistry struct {
	mu   sync.RWMutex
	byID map[ModuleID]ModuleInfo
}

var registry = &moduleRegistry{byID: make(map[ModuleID]ModuleInfo)}

// RegisterModule registers a module by instantiating it to read its ModuleInfo.
// It panics on an empty ID, a nil constructor or a duplicate ID.
func RegisterModule(instance Module) {
	info := instance.ModuleInfo()
	switch {
	case info.ID == "":
		panic("core: module ID must not be empty")
	case info.New == nil:
		panic(fmt.Sprintf("core: module %s has no constructor", info.ID))
	}

	registry.mu.Lock()
	defer registry.mu.Unlock()
	if _, dup := registry.byID[info.ID]; dup {
		panic(fmt.Sprintf("core: module already registered: %s", info.ID))
	}
	registry.byID[info.ID] = info
}

// GetModule returns the ModuleInfo for the given ID, or false if not found.
func GetModule(id string) (ModuleInfo, bool) {
	registry.mu.RLock()
	defer registry.mu.RUnlock()
	info, ok := registry.byID[ModuleID(id)]
	return info, ok
}

// GetModules returns all registered modules sorted by ID.
func GetModules() []ModuleInfo {
	return registry.filter(func(ModuleInfo) bool { return true })
}

// GetModulesByFamily returns the registered modules of one family, e.g.
// "memory" lists memory.gorm and memory.sqlite.
func GetModulesByFamily(family string) []ModuleInfo {
	return registry.filter(func(info ModuleInfo) bool { return info.ID.Family() == family })
}

func (r *moduleRegistry) filter(keep func(ModuleInfo) bool) []ModuleInfo {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []ModuleInfo
	for _, info := range r.byID {
		if keep(info) {
			out = append(out, info)
		}
	}
	slices.SortFunc(out, func(a, b ModuleInfo) int { return cmp.Compare(a.ID, b.ID) })
	return out
}

// resetRegistry clears the registry. Only for testing.
func resetRegistry() {
	registry.mu.Lock()
	defer registry.mu.Unlock()
	registry.byID = make(map[ModuleID]ModuleInfo)
}
