package config

import (
	"bytes"
	"fmt"
	"os"
	"regexp"
	"slices"
	"strings"

	"gopkg.in/yaml.v3"
)

// varRef matches ${NAME} and ${NAME:-fallback}. A fallback may contain
// "\}" to embed a closing brace.
var varRef = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)(?::-((?:[^}\\]|\\.)*))?\}`)

// Load reads the file at path and returns it parsed with defaults applied.
func Load(path string) (*Config, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: reading %s: %w", path, err)
	}
	cfg, err := Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("config: %s: %w", path, err)
	}
	return cfg, nil
}

// Parse substitutes environment variables into raw and decodes the result.
func Parse(raw []byte) (*Config, error) {
	expanded, err := substitute(raw, os.LookupEnv)
	if err != nil {
		return nil, err
	}

	var cfg Config
	if err := yaml.Unmarshal(expanded, &cfg); err != nil {
		return nil, fmt.Errorf("parsing: %w", err)
	}
	cfg.ApplyDefaults()
	return &cfg, nil
}

// substitute replaces variable references line by line. Comment lines are
// left alone so a commented-out key never requires its variable. Every
// unset variable without a fallback is reported, once, in one error.
func substitute(raw []byte, lookup func(string) (string, bool)) ([]byte, error) {
	var missing []string
	lines := bytes.SplitAfter(raw, []byte("\n"))
	for i, line := range lines {
		if bytes.HasPrefix(bytes.TrimSpace(line), []byte("#")) {
			continue
		}
		lines[i] = varRef.ReplaceAllFunc(line, func(ref []byte) []byte {
			m := varRef.FindSubmatch(ref)
			name := string(m[1])
			if v, ok := lookup(name); ok {
				return []byte(v)
			}
			if m[2] != nil || bytes.Contains(ref, []byte(":-")) {
				return []byte(strings.ReplaceAll(string(m[2]), `\}`, "}"))
			}
			if !slices.Contains(missing, name) {
				missing = append(missing, name)
			}
			return ref
		})
	}
	if len(missing) > 0 {
		slices.Sort(missing)
		return nil, fmt.Errorf("unresolved variables: %s", strings.Join(missing, ", "))
	}
	return bytes.Join(lines, nil), nil
}
