package agent

import (
	"cmp"
	"time"

	"github.com/flemzord/cinechat/internal/provider"
)

const (
	DefaultMaxIterations   = 10
	DefaultLoopThreshold   = 3
	DefaultMaxOutputTokens = 1000
)

// LoopConfig bounds a run and shapes each completion request. Zero values
// take the defaults above; TokenBudget and Timeout stay unlimited.
type LoopConfig struct {
	MaxIterations int
	TokenBudget   int
	Timeout       time.Duration
	// LoopThreshold is how often one call (name and arguments) may repeat
	// before the run is stopped as stuck.
	LoopThreshold int

	Model           string
	MaxOutputTokens int
	Temperature     *float64
	ToolChoice      string
}

func (c LoopConfig) withDefaults() LoopConfig {
	c.MaxIterations = positiveOr(c.MaxIterations, DefaultMaxIterations)
	c.LoopThreshold = positiveOr(c.LoopThreshold, DefaultLoopThreshold)
	c.MaxOutputTokens = positiveOr(c.MaxOutputTokens, DefaultMaxOutputTokens)
	c.ToolChoice = cmp.Or(c.ToolChoice, provider.ToolChoiceAuto)
	return c
}

func positiveOr(v, def int) int {
	if v <= 0 {
		return def
	}
	return v
}
