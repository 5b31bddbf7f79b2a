package ctxengine

import "github.com/flemzord/cinechat/internal/provider"

// DefaultHistoryTokens is the history budget used when none is configured.
const DefaultHistoryTokens = 4000

// HistoryWindow trims a conversation to its most recent turns.
type HistoryWindow struct {
	estimator TokenEstimator
	limit     int
}

// NewHistoryWindow returns a window of limit tokens. A nil estimator uses
// CharRatio(DefaultCharsPerToken); limit <= 0 uses DefaultHistoryTokens.
func NewHistoryWindow(estimator TokenEstimator, limit int) *HistoryWindow {
	if estimator == nil {
		estimator = CharRatio(DefaultCharsPerToken)
	}
	if limit <= 0 {
		limit = DefaultHistoryTokens
	}
	return &HistoryWindow{estimator: estimator, limit: limit}
}

// Limit returns the token budget of the window.
func (w *HistoryWindow) Limit() int {
	return w.limit
}

// Fit returns the longest suffix of history that fits the budget. The
// last message is always kept, even when it alone exceeds the budget.
// The input slice is not modified.
func (w *HistoryWindow) Fit(history []provider.LLMMessage) []provider.LLMMessage {
	if len(history) == 0 {
		return history
	}
	used := 0
	start := len(history)
	for i := len(history) - 1; i >= 0; i-- {
		cost := MessageCost(w.estimator, history[i])
		if used+cost > w.limit && start < len(history) {
			break
		}
		used += cost
		start = i
	}
	return history[start:]
}
