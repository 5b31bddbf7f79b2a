package gorm

import (
	"fmt"
	"time"
)

const (
	driverPostgres     = "postgres"
	defaultMaxOpen     = 10
	defaultMaxIdle     = 5
	defaultMaxLifetime = "30m"
)

// Config holds the external database memory module configuration.
type Config struct {
	// Driver selects the gorm dialector. Only "postgres" is supported.
	Driver string `yaml:"driver"`

	// DSN is the connection string, typically ${MEMORY_DB_URI}.
	DSN string `yaml:"dsn"`

	// MaxOpenConns bounds the pool. Defaults to 10.
	MaxOpenConns int `yaml:"max_open_conns"`

	// MaxIdleConns bounds idle connections. Defaults to 5.
	MaxIdleConns int `yaml:"max_idle_conns"`

	// ConnMaxLifetime recycles connections. Defaults to "30m".
	ConnMaxLifetime string `yaml:"conn_max_lifetime"`
}

func (c *Config) defaults() {
	if c.Driver == "" {
		c.Driver = driverPostgres
	}
	if c.MaxOpenConns == 0 {
		c.MaxOpenConns = defaultMaxOpen
	}
	if c.MaxIdleConns == 0 {
		c.MaxIdleConns = defaultMaxIdle
	}
	if c.ConnMaxLifetime == "" {
		c.ConnMaxLifetime = defaultMaxLifetime
	}
}

func (c *Config) validate() error {
	if c.Driver != driverPostgres {
		return fmt.Errorf("gorm: unsupported driver %q", c.Driver)
	}
	if c.DSN == "" {
		return fmt.Errorf("gorm: dsn is required")
	}
	if c.MaxOpenConns < 0 || c.MaxIdleConns < 0 {
		return fmt.Errorf("gorm: pool sizes must be non-negative")
	}
	if _, err := c.lifetime(); err != nil {
		return fmt.Errorf("gorm: invalid conn_max_lifetime %q: %w", c.ConnMaxLifetime, err)
	}
	return nil
}

func (c *Config) lifetime() (time.Duration, error) {
	return time.ParseDuration(c.ConnMaxLifetime)
}
