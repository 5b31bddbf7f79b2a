// Package config handles YAML configuration loading, environment variable
// expansion, and structural validation for cinechat.
package config

import (
	"time"

	"gopkg.in/yaml.v3"

	"github.com/flemzord/cinechat/internal/security"
	"github.com/flemzord/cinechat/internal/telemetry"
)

// DefaultSystemPrompt frames the assistant as a film and TV analyst that
// answers from tool results rather than memory.
const DefaultSystemPrompt = `You are an expert film and television analyst.
Use the available tools to look up movies, TV shows, people, schedules and
recommendations before answering. Prefer facts returned by the tools over
recollection, cite titles with their year, and say so when a lookup finds
nothing.`

// Config is the top-level configuration structure.
type Config struct {
	// Version is the config format version. Currently only "1" is supported.
	Version string `yaml:"version"`

	// Modules maps module IDs to their raw YAML configuration.
	// Keys must match registered module IDs (e.g. "content.tmdb").
	Modules map[string]yaml.Node `yaml:"modules"`

	Log       LogConfig                `yaml:"log"`
	Agent     AgentConfig              `yaml:"agent"`
	Telemetry telemetry.Config         `yaml:"telemetry"`
	RateLimit security.RateLimitConfig `yaml:"rate_limit"`
}

// LogConfig selects the root logger.
type LogConfig struct {
	Level  string `yaml:"level"`  // debug, info, warn, error
	Format string `yaml:"format"` // text, json
}

// AgentConfig drives every chat run.
type AgentConfig struct {
	Model            string        `yaml:"model"`
	MaxIterations    int           `yaml:"max_iterations"`
	MaxOutputTokens  int           `yaml:"max_output_tokens"`
	Temperature      *float64      `yaml:"temperature,omitempty"`
	ToolChoice       string        `yaml:"tool_choice"`
	SystemPrompt     string        `yaml:"system_prompt"`
	RunTimeout       time.Duration `yaml:"run_timeout"`
	MaxRunAge        time.Duration `yaml:"max_run_age"`
	MemoryTokenLimit int           `yaml:"memory_token_limit"`
	SerializeTurns   bool          `yaml:"serialize_turns"`
	MaxParallelTools int           `yaml:"max_parallel_tools"`
}

// ApplyDefaults fills unset fields.
func (c *Config) ApplyDefaults() {
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Log.Format == "" {
		c.Log.Format = "text"
	}
	if c.Agent.Model == "" {
		c.Agent.Model = "gpt-4o-mini"
	}
	if c.Agent.MaxIterations <= 0 {
		c.Agent.MaxIterations = 10
	}
	if c.Agent.MaxOutputTokens <= 0 {
		c.Agent.MaxOutputTokens = 1000
	}
	if c.Agent.ToolChoice == "" {
		c.Agent.ToolChoice = "auto"
	}
	if c.Agent.SystemPrompt == "" {
		c.Agent.SystemPrompt = DefaultSystemPrompt
	}
	if c.Agent.MemoryTokenLimit <= 0 {
		c.Agent.MemoryTokenLimit = 4000
	}
	if c.Telemetry.ServiceName == "" {
		c.Telemetry.ServiceName = "cinechat"
	}
}
