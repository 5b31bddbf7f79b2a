// Package ctxengine keeps the conversation handed to the model inside a
// token budget.
package ctxengine

import (
	"math"

	"github.com/flemzord/cinechat/internal/provider"
)

// TokenEstimator approximates how many tokens a model spends on text.
type TokenEstimator interface {
	Estimate(text string) int
}

// EstimatorFunc adapts a function to TokenEstimator.
type EstimatorFunc func(text string) int

// Estimate implements TokenEstimator.
func (f EstimatorFunc) Estimate(text string) int { return f(text) }

// DefaultCharsPerToken suits English prose.
const DefaultCharsPerToken = 4.0

// CharRatio estimates one token per charsPerToken bytes, rounding up.
// A non-positive ratio uses DefaultCharsPerToken.
func CharRatio(charsPerToken float64) TokenEstimator {
	if charsPerToken <= 0 {
		charsPerToken = DefaultCharsPerToken
	}
	return EstimatorFunc(func(text string) int {
		return int(math.Ceil(float64(len(text)) / charsPerToken))
	})
}

// perMessage is charged once per message for role and framing tokens.
const perMessage = 4

// MessageCost estimates the tokens msg occupies in a prompt.
func MessageCost(est TokenEstimator, msg provider.LLMMessage) int {
	cost := perMessage + est.Estimate(msg.Content) + est.Estimate(msg.Name)
	for _, call := range msg.ToolCalls {
		cost += est.Estimate(call.Name) + est.Estimate(string(call.Arguments))
	}
	return cost
}

// ConversationCost sums MessageCost over messages.
func ConversationCost(est TokenEstimator, messages []provider.LLMMessage) int {
	total := 0
	for _, m := range messages {
		total += MessageCost(est, m)
	}
	return total
}
