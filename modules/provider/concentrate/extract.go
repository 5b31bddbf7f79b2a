package concentrate

import (
	"encoding/json"
	"strings"

	"github.com/flemzord/cinechat/internal/provider"
)

// extractText returns the assistant text of a response. Shapes are tried
// in order: output_text, assistant message blocks, then a plain text field.
func extractText(resp apiResponse) string {
	if s, ok := rawString(resp.OutputText); ok && strings.TrimSpace(s) != "" {
		return s
	}

	var b strings.Builder
	for _, item := range resp.Output {
		if item.Type != "message" || item.Role != "assistant" {
			continue
		}
		for _, block := range item.Content {
			b.WriteString(block.Text)
		}
	}
	if b.Len() > 0 {
		return b.String()
	}

	if s, ok := rawString(resp.Text); ok && strings.TrimSpace(s) != "" {
		return s
	}
	return ""
}

// extractToolCalls collects function_call items in output order.
func extractToolCalls(items []apiOutputItem) []provider.ToolCall {
	var calls []provider.ToolCall
	for _, item := range items {
		if item.Type != "function_call" {
			continue
		}
		calls = append(calls, toolCallFromItem(item))
	}
	return calls
}

func toolCallFromItem(item apiOutputItem) provider.ToolCall {
	id := item.CallID
	if id == "" {
		id = item.ID
	}
	args := item.Arguments
	if strings.TrimSpace(args) == "" {
		args = "{}"
	}
	return provider.ToolCall{
		ID:        id,
		Name:      item.Name,
		Arguments: json.RawMessage(args),
	}
}

// rawString decodes raw as a JSON string. Objects and absent fields
// report false.
func rawString(raw json.RawMessage) (string, bool) {
	if len(raw) == 0 || raw[0] != '"' {
		return "", false
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return "", false
	}
	return s, true
}
