package provider

import "encoding/json"

// MessageRole is who authored a message.
type MessageRole string

const (
	MessageRoleSystem    MessageRole = "system"
	MessageRoleUser      MessageRole = "user"
	MessageRoleAssistant MessageRole = "assistant"
	MessageRoleTool      MessageRole = "tool"
)

// FinishReason is why the model stopped generating.
type FinishReason string

const (
	FinishReasonStop      FinishReason = "stop"
	FinishReasonLength    FinishReason = "length"
	FinishReasonToolUse   FinishReason = "tool_use"
	FinishReasonFiltering FinishReason = "filtering"
	FinishReasonError     FinishReason = "error"
)

// Tool choice modes.
const (
	ToolChoiceAuto     = "auto"
	ToolChoiceNone     = "none"
	ToolChoiceRequired = "required"
)

// LLMMessage is one entry of the conversation sent to the model.
type LLMMessage struct {
	Role    MessageRole `json:"role"`
	Content string      `json:"content"`
	// Name and ToolID are set on tool results.
	Name   string `json:"name,omitempty"`
	ToolID string `json:"tool_id,omitempty"`
	// ToolCalls is set on assistant turns that asked for tools.
	ToolCalls []ToolCall `json:"tool_calls,omitempty"`
	IsError   bool       `json:"is_error,omitempty"`
}

// SystemMessage returns a system prompt message.
func SystemMessage(text string) LLMMessage {
	return LLMMessage{Role: MessageRoleSystem, Content: text}
}

// UserMessage returns a message typed by the user.
func UserMessage(text string) LLMMessage {
	return LLMMessage{Role: MessageRoleUser, Content: text}
}

// AssistantMessage returns a model turn, with the tool calls it made.
func AssistantMessage(text string, calls []ToolCall) LLMMessage {
	return LLMMessage{Role: MessageRoleAssistant, Content: text, ToolCalls: calls}
}

// ToolResultMessage answers call with output.
func ToolResultMessage(call ToolCall, output string, isError bool) LLMMessage {
	return LLMMessage{
		Role:    MessageRoleTool,
		Content: output,
		Name:    call.Name,
		ToolID:  call.ID,
		IsError: isError,
	}
}

// ToolCall is a tool invocation requested by the model. Arguments is the
// raw JSON object the model produced.
type ToolCall struct {
	ID        string          `json:"id"`
	Name      string          `json:"name"`
	Arguments json.RawMessage `json:"arguments"`
}

// ToolDefinition advertises a tool to the model. Parameters is a JSON Schema.
type ToolDefinition struct {
	Name        string          `json:"name"`
	Description string          `json:"description,omitempty"`
	Parameters  json.RawMessage `json:"parameters,omitempty"`
}

// CompletionRequest is the input of Complete and Stream. An empty Model
// selects the provider's default.
type CompletionRequest struct {
	Model       string           `json:"model,omitempty"`
	Messages    []LLMMessage     `json:"messages"`
	Tools       []ToolDefinition `json:"tools,omitempty"`
	ToolChoice  string           `json:"tool_choice,omitempty"`
	MaxTokens   int              `json:"max_tokens,omitempty"`
	Temperature *float64         `json:"temperature,omitempty"`
	TopP        *float64         `json:"top_p,omitempty"`
}

// CompletionResponse is the result of Complete.
type CompletionResponse struct {
	Content      string       `json:"content"`
	ToolCalls    []ToolCall   `json:"tool_calls,omitempty"`
	FinishReason FinishReason `json:"finish_reason"`
	Usage        TokenUsage   `json:"usage"`
}

// StreamChunk is one event of a streamed completion. A chunk with Err set
// is the last one.
type StreamChunk struct {
	Content      string       `json:"content,omitempty"`
	ToolCalls    []ToolCall   `json:"tool_calls,omitempty"`
	FinishReason FinishReason `json:"finish_reason,omitempty"`
	Usage        *TokenUsage  `json:"usage,omitempty"`
	Err          error        `json:"-"`
}

// TokenUsage counts the tokens billed for one or more completions.
type TokenUsage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// Add returns the sum of u and other.
func (u TokenUsage) Add(other TokenUsage) TokenUsage {
	return TokenUsage{
		PromptTokens:     u.PromptTokens + other.PromptTokens,
		CompletionTokens: u.CompletionTokens + other.CompletionTokens,
		TotalTokens:      u.TotalTokens + other.TotalTokens,
	}
}
