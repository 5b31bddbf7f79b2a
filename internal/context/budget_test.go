package ctxengine_test

import (
	"encoding/json"
	"fmt"
	"testing"

	ctxengine "github.com/flemzord/cinechat/internal/context"
	"github.com/flemzord/cinechat/internal/provider"
)

// byteCount charges one token per byte.
var byteCount = ctxengine.EstimatorFunc(func(s string) int { return len(s) })

// turns returns n alternating user and assistant messages "msg-0".."msg-n".
func turns(n int) []provider.LLMMessage {
	msgs := make([]provider.LLMMessage, n)
	for i := range msgs {
		msgs[i] = provider.UserMessage(fmt.Sprintf("msg-%d", i))
		if i%2 == 1 {
			msgs[i] = provider.AssistantMessage(fmt.Sprintf("msg-%d", i), nil)
		}
	}
	return msgs
}

func TestCharRatio(t *testing.T) {
	t.Parallel()

	tests := []struct {
		ratio float64
		input string
		want  int
	}{
		{4, "", 0},
		{4, "a", 1},
		{4, "abcdefgh", 2},
		{4, "abcdefghi", 3},
		{3, "Le Samouraï", 4},
		{0, "abcde", 2},
		{-2, "abcdefgh", 2},
	}
	for _, tt := range tests {
		if got := ctxengine.CharRatio(tt.ratio).Estimate(tt.input); got != tt.want {
			t.Errorf("CharRatio(%v).Estimate(%q) = %d, want %d", tt.ratio, tt.input, got, tt.want)
		}
	}
}

func TestConversationCost(t *testing.T) {
	t.Parallel()

	call := provider.ToolCall{ID: "c1", Name: "search_tmdb", Arguments: json.RawMessage(`{"q":1}`)}
	msgs := []provider.LLMMessage{
		provider.UserMessage("hello"),
		provider.AssistantMessage("", []provider.ToolCall{call}),
		provider.ToolResultMessage(call, "{}", false),
	}

	// 4+5, 4+11+7, 4+2+11
	if got := ctxengine.ConversationCost(byteCount, msgs); got != 48 {
		t.Errorf("ConversationCost = %d, want 48", got)
	}
	if got := ctxengine.ConversationCost(byteCount, nil); got != 0 {
		t.Errorf("ConversationCost(nil) = %d, want 0", got)
	}
}

func TestHistoryWindow_Fit(t *testing.T) {
	t.Parallel()

	// Each "msg-N" message costs 4 + 5 = 9 tokens with byteCount.
	tests := []struct {
		name  string
		n     int
		limit int
		want  int
	}{
		{name: "all_fit", n: 4, limit: 100, want: 4},
		{name: "exact_fit", n: 4, limit: 36, want: 4},
		{name: "trims_oldest", n: 6, limit: 30, want: 3},
		{name: "keeps_last_when_over", n: 3, limit: 1, want: 1},
		{name: "empty", n: 0, limit: 10, want: 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			msgs := turns(tt.n)
			got := ctxengine.NewHistoryWindow(byteCount, tt.limit).Fit(msgs)
			if len(got) != tt.want {
				t.Fatalf("len = %d, want %d", len(got), tt.want)
			}
			if tt.want > 0 && got[len(got)-1].Content != msgs[len(msgs)-1].Content {
				t.Errorf("last = %q, want %q", got[len(got)-1].Content, msgs[len(msgs)-1].Content)
			}
		})
	}
}

func TestNewHistoryWindow_Defaults(t *testing.T) {
	t.Parallel()

	w := ctxengine.NewHistoryWindow(nil, 0)
	if w.Limit() != ctxengine.DefaultHistoryTokens {
		t.Errorf("Limit = %d, want %d", w.Limit(), ctxengine.DefaultHistoryTokens)
	}
	if got := w.Fit(turns(2)); len(got) != 2 {
		t.Errorf("Fit = %d messages, want 2", len(got))
	}
}
