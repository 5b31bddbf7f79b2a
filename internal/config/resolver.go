package config

import (
	"cmp"
	"slices"
	"strings"
)

// startOrder ranks module families. Stores come up first so providers,
// content clients and the gateway can use them, and the gateway comes
// last so it stops first on shutdown.
var startOrder = map[string]int{
	"memory":   0,
	"provider": 1,
	"content":  2,
	"gateway":  3,
}

// Resolve returns the configured module IDs in start order: by family
// rank, then by ID. Unknown families sort before the gateway.
func Resolve(cfg *Config) []string {
	ids := make([]string, 0, len(cfg.Modules))
	for id := range cfg.Modules {
		ids = append(ids, id)
	}
	slices.SortFunc(ids, func(a, b string) int {
		return cmp.Or(cmp.Compare(rank(a), rank(b)), cmp.Compare(a, b))
	})
	return ids
}

func rank(id string) int {
	family, _, _ := strings.Cut(id, ".")
	if r, ok := startOrder[family]; ok {
		return r
	}
	return startOrder["gateway"] - 1
}
