// Package agent runs the tool-calling loop behind a chat turn: ask the
// model, execute the lookups it requests, feed the results back, and
// repeat until it answers in plain text.
package agent

import (
	"encoding/json"
	"time"

	"github.com/flemzord/cinechat/internal/provider"
	"github.com/flemzord/cinechat/internal/tool"
)

// StopReason records how a run ended.
type StopReason string

const (
	StopReasonComplete      StopReason = "complete"
	StopReasonMaxIterations StopReason = "max_iterations"
	StopReasonLoopDetected  StopReason = "loop_detected"
	StopReasonTokenBudget   StopReason = "token_budget"
	StopReasonTimeout       StopReason = "timeout"
	StopReasonError         StopReason = "error"
)

// Complete reports whether the model produced its final answer rather
// than being cut off by a guard.
func (r StopReason) Complete() bool { return r == StopReasonComplete }

// ToolCallRecord is one executed tool call. A tool error is already
// rendered into Output; Err keeps the original for logging.
type ToolCallRecord struct {
	ID        string
	Name      string
	Arguments json.RawMessage
	Output    tool.Output
	Duration  time.Duration
	Panicked  bool
	Err       error
}

type StreamEventType string

const (
	StreamEventText      StreamEventType = "text"
	StreamEventToolStart StreamEventType = "tool_start"
	StreamEventToolEnd   StreamEventType = "tool_end"
	StreamEventUsage     StreamEventType = "usage"
	StreamEventDone      StreamEventType = "done"
	StreamEventError     StreamEventType = "error"
)

// StreamEvent is emitted by RunStream. Exactly one of the pointer fields
// is set, depending on Type; Done carries Final.
type StreamEvent struct {
	Type     StreamEventType
	Content  string
	ToolCall *ToolCallRecord
	Usage    *provider.TokenUsage
	Final    *Response
	Err      error
}

// Request is the conversation a run starts from.
type Request struct {
	Messages     []provider.LLMMessage
	SystemPrompt string
	Tools        []provider.ToolDefinition
}

// Response aggregates a run. Content joins the text of every iteration.
type Response struct {
	Content    string
	ToolCalls  []ToolCallRecord
	TotalUsage provider.TokenUsage
	Iterations int
	StopReason StopReason
}

// ToolNames lists the tools called during the run, in call order.
func (r *Response) ToolNames() []string {
	names := make([]string, 0, len(r.ToolCalls))
	for _, tc := range r.ToolCalls {
		names = append(names, tc.Name)
	}
	return names
}
