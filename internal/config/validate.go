package config

import (
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/flemzord/cinechat/internal/core"
)

var (
	toolChoices      = []string{"auto", "none", "required"}
	requiredFamilies = []string{"gateway", "memory", "provider"}
)

// Validate checks the structural validity of a Config.
// It verifies the version field, ensures modules are present,
// and checks that all referenced module IDs exist in the registry.
// It also requires a gateway, a memory store and a provider, and
// validates the log, agent and telemetry sections.
func Validate(cfg *Config) error {
	var errs []error

	if cfg.Version == "" {
		errs = append(errs, errors.New("config: version field is required"))
	} else if cfg.Version != "1" {
		errs = append(errs, fmt.Errorf("config: unsupported version %q (supported: \"1\")", cfg.Version))
	}

	if len(cfg.Modules) == 0 {
		errs = append(errs, errors.New("config: at least one module must be configured"))
	}

	for id := range cfg.Modules {
		if _, ok := core.GetModule(id); !ok {
			errs = append(errs, fmt.Errorf("config: unknown module %q", id))
		}
	}

	errs = append(errs, validateFamilies(cfg.Modules)...)
	errs = append(errs, validateLog(cfg.Log)...)
	errs = append(errs, validateAgent(cfg.Agent)...)
	if err := cfg.Telemetry.Validate(); err != nil {
		errs = append(errs, fmt.Errorf("config: %w", err))
	}

	return errors.Join(errs...)
}

// validateFamilies requires one module of each family the server cannot
// run without. Only one memory store may be active.
func validateFamilies(modules map[string]yaml.Node) []error {
	counts := make(map[string]int)
	for id := range modules {
		family, _, _ := strings.Cut(id, ".")
		counts[family]++
	}

	var errs []error
	for _, family := range requiredFamilies {
		if counts[family] == 0 {
			errs = append(errs, fmt.Errorf("config: a %s.* module is required", family))
		}
	}
	if counts["memory"] > 1 {
		errs = append(errs, errors.New("config: only one memory.* module may be configured"))
	}
	return errs
}

func validateLog(l LogConfig) []error {
	var errs []error
	if l.Level != "" {
		if _, err := ParseLevel(l.Level); err != nil {
			errs = append(errs, err)
		}
	}
	if l.Format != "" && l.Format != "text" && l.Format != "json" {
		errs = append(errs, fmt.Errorf("config: log.format %q must be text or json", l.Format))
	}
	return errs
}

func validateAgent(a AgentConfig) []error {
	var errs []error
	if a.ToolChoice != "" && !slices.Contains(toolChoices, a.ToolChoice) {
		errs = append(errs, fmt.Errorf("config: agent.tool_choice %q must be one of %v", a.ToolChoice, toolChoices))
	}
	if a.Temperature != nil && (*a.Temperature < 0 || *a.Temperature > 2) {
		errs = append(errs, fmt.Errorf("config: agent.temperature %v out of [0,2]", *a.Temperature))
	}
	if a.MaxIterations < 0 || a.MaxOutputTokens < 0 || a.MemoryTokenLimit < 0 || a.MaxParallelTools < 0 {
		errs = append(errs, errors.New("config: agent limits must not be negative"))
	}
	if a.RunTimeout < 0 || a.MaxRunAge < 0 {
		errs = append(errs, errors.New("config: agent durations must not be negative"))
	}
	return errs
}

// ParseLevel maps a log.level value to a slog level.
func ParseLevel(s string) (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(s)); err != nil {
		return slog.LevelInfo, fmt.Errorf("config: log.level %q must be debug, info, warn or error", s)
	}
	return level, nil
}
