package agent

import (
	"encoding/json"
	"strings"

	"github.com/flemzord/cinechat/internal/provider"
)

// runGuard enforces the per-run limits of a Loop: repeated identical tool
// calls and the cumulative token budget. One guard belongs to one run and
// is only touched from that run's goroutine.
type runGuard struct {
	loopThreshold int
	tokenBudget   int

	calls map[string]int
	usage provider.TokenUsage
}

func newRunGuard(cfg LoopConfig) *runGuard {
	return &runGuard{
		loopThreshold: cfg.LoopThreshold,
		tokenBudget:   cfg.TokenBudget,
		calls:         make(map[string]int),
	}
}

// repeats records tc and reports whether the same lookup has now been
// requested loopThreshold times in this run.
func (g *runGuard) repeats(tc provider.ToolCall) bool {
	if g.loopThreshold <= 0 {
		return false
	}
	key := callFingerprint(tc.Name, tc.Arguments)
	g.calls[key]++
	return g.calls[key] >= g.loopThreshold
}

// charge adds usage to the running total and reports whether the budget
// is now spent.
func (g *runGuard) charge(usage provider.TokenUsage) bool {
	g.usage = g.usage.Add(usage)
	return g.overBudget()
}

// overBudget is always false with a zero budget.
func (g *runGuard) overBudget() bool {
	return g.tokenBudget > 0 && g.usage.TotalTokens >= g.tokenBudget
}

func (g *runGuard) spent() provider.TokenUsage {
	return g.usage
}

// callFingerprint keys a tool call by name and arguments. Arguments are
// re-encoded so key order and whitespace do not matter; a payload that is
// not valid JSON is keyed by its trimmed bytes.
func callFingerprint(name string, args json.RawMessage) string {
	var b strings.Builder
	b.WriteString(name)
	b.WriteByte(':')

	var decoded any
	if err := json.Unmarshal(args, &decoded); err == nil {
		if canonical, err := json.Marshal(decoded); err == nil {
			b.Write(canonical)
			return b.String()
		}
	}
	b.WriteString(strings.TrimSpace(string(args)))
	return b.String()
}
