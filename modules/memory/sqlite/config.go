package sqlite

import (
	"fmt"
	"slices"
	"strings"
)

const (
	defaultBusyTimeout = 5000
	defaultDBFile      = "chat_history.db"
)

var synchronousModes = []string{"off", "normal", "full", "extra"}

// Config is the memory.sqlite section of the config file.
//
//	memory.sqlite:
//	  path: /var/lib/cinechat/chat_history.db
//	  wal: true
//	  busy_timeout: 5000
//	  synchronous: normal
type Config struct {
	// Path defaults to chat_history.db under the data directory.
	Path string `yaml:"path"`

	// WAL is on unless explicitly disabled.
	WAL *bool `yaml:"wal"`

	// BusyTimeout is in milliseconds.
	BusyTimeout int `yaml:"busy_timeout"`

	// Synchronous sets PRAGMA synchronous. Empty keeps the SQLite default.
	Synchronous string `yaml:"synchronous"`
}

func (c *Config) defaults() {
	if c.BusyTimeout == 0 {
		c.BusyTimeout = defaultBusyTimeout
	}
	c.Synchronous = strings.ToLower(c.Synchronous)
}

func (c *Config) walEnabled() bool {
	return c.WAL == nil || *c.WAL
}

func (c *Config) validate() error {
	if c.BusyTimeout < 0 {
		return fmt.Errorf("sqlite: busy_timeout must be non-negative, got %d", c.BusyTimeout)
	}
	if c.Synchronous != "" && !slices.Contains(synchronousModes, c.Synchronous) {
		return fmt.Errorf("sqlite: synchronous must be one of %s, got %q",
			strings.Join(synchronousModes, ", "), c.Synchronous)
	}
	return nil
}

// pragmas returns the statements run on the connection before migrating.
func (c *Config) pragmas() []string {
	out := []string{
		fmt.Sprintf("PRAGMA busy_timeout=%d", c.BusyTimeout),
		"PRAGMA foreign_keys=ON",
	}
	if c.walEnabled() {
		out = append(out, "PRAGMA journal_mode=WAL")
	}
	if c.Synchronous != "" {
		out = append(out, "PRAGMA synchronous="+strings.ToUpper(c.Synchronous))
	}
	return out
}
