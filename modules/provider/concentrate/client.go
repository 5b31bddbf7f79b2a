package concentrate

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/flemzord/cinechat/internal/provider"
)

// apiRequest is the /responses request body.
type apiRequest struct {
	Model           string         `json:"model"`
	Input           []apiInputItem `json:"input"`
	Stream          bool           `json:"stream"`
	MaxOutputTokens int            `json:"max_output_tokens,omitempty"`
	ToolChoice      string         `json:"tool_choice,omitempty"`
	Tools           []apiTool      `json:"tools,omitempty"`
	Temperature     *float64       `json:"temperature,omitempty"`
	TopP            *float64       `json:"top_p,omitempty"`
}

// apiInputItem is either a role/content turn or a function call item.
type apiInputItem struct {
	Type      string `json:"type,omitempty"`
	Role      string `json:"role,omitempty"`
	Content   string `json:"content,omitempty"`
	CallID    string `json:"call_id,omitempty"`
	Name      string `json:"name,omitempty"`
	Arguments string `json:"arguments,omitempty"`
	Output    string `json:"output,omitempty"`
}

// apiTool describes a function tool.
type apiTool struct {
	Type        string          `json:"type"`
	Name        string          `json:"name"`
	Description string          `json:"description,omitempty"`
	Parameters  json.RawMessage `json:"parameters,omitempty"`
}

// apiResponse is the non-streaming /responses body. Text may appear in
// output_text, in assistant message blocks, or in a top-level text field.
type apiResponse struct {
	ID         string          `json:"id"`
	Status     string          `json:"status"`
	OutputText json.RawMessage `json:"output_text"`
	Text       json.RawMessage `json:"text"`
	Output     []apiOutputItem `json:"output"`
	Usage      *apiUsage       `json:"usage"`
	Error      *apiErrorBody   `json:"error"`
}

// apiOutputItem is one entry of the output list.
type apiOutputItem struct {
	Type      string            `json:"type"`
	ID        string            `json:"id"`
	Role      string            `json:"role"`
	Content   []apiContentBlock `json:"content"`
	CallID    string            `json:"call_id"`
	Name      string            `json:"name"`
	Arguments string            `json:"arguments"`
}

// apiContentBlock is a typed content block inside a message item.
type apiContentBlock struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

// apiUsage holds token consumption data.
type apiUsage struct {
	InputTokens  int `json:"input_tokens"`
	OutputTokens int `json:"output_tokens"`
	TotalTokens  int `json:"total_tokens"`
}

// Complete sends a non-streaming request.
func (c *Concentrate) Complete(ctx context.Context, req provider.CompletionRequest) (provider.CompletionResponse, error) {
	return c.complete(ctx, c.buildRequest(req, false))
}

func (c *Concentrate) complete(ctx context.Context, apiReq apiRequest) (provider.CompletionResponse, error) {
	apiReq.Stream = false
	resp, err := c.doRequest(ctx, apiReq)
	if err != nil {
		return provider.CompletionResponse{}, err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return provider.CompletionResponse{}, mapHTTPError(resp.StatusCode, resp.Body)
	}

	var apiResp apiResponse
	if err := json.NewDecoder(resp.Body).Decode(&apiResp); err != nil {
		return provider.CompletionResponse{}, fmt.Errorf("concentrate: decoding response: %w", err)
	}
	if apiResp.Error != nil && apiResp.Error.Message != "" {
		return provider.CompletionResponse{}, mapAPIError(*apiResp.Error)
	}
	return convertResponse(apiResp), nil
}

// Stream sends a streaming request. Connection errors and non-200
// statuses are returned directly; everything after that arrives on the
// channel. When the event stream ends without any text or tool call, a
// single non-stream request is issued and its result delivered instead.
func (c *Concentrate) Stream(ctx context.Context, req provider.CompletionRequest) (<-chan provider.StreamChunk, error) {
	apiReq := c.buildRequest(req, true)

	resp, err := c.doRequest(ctx, apiReq)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		defer func() { _ = resp.Body.Close() }()
		return nil, mapHTTPError(resp.StatusCode, resp.Body)
	}

	ch := make(chan provider.StreamChunk, 8)
	go func() {
		defer close(ch)
		c.relay(ctx, resp.Body, apiReq, ch)
	}()
	return ch, nil
}

// ContextWindowSize returns the configured context window.
func (c *Concentrate) ContextWindowSize() int {
	return c.config.ContextWindow
}

// ModelName returns the default model identifier.
func (c *Concentrate) ModelName() string {
	return c.config.Model
}

// HealthCheck probes the gateway's health endpoint.
func (c *Concentrate) HealthCheck(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.config.HealthURL, nil)
	if err != nil {
		return fmt.Errorf("concentrate: creating health request: %w", err)
	}
	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("concentrate: health probe: %w", provider.ErrProviderDown)
	}
	defer func() { _ = resp.Body.Close() }()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("concentrate: health probe returned HTTP %d", resp.StatusCode)
	}
	return nil
}

// buildRequest converts a provider.CompletionRequest into an apiRequest.
func (c *Concentrate) buildRequest(req provider.CompletionRequest, stream bool) apiRequest {
	ar := apiRequest{
		Model:           req.Model,
		Input:           convertMessages(req.Messages),
		Stream:          stream,
		MaxOutputTokens: req.MaxTokens,
		ToolChoice:      req.ToolChoice,
		Temperature:     req.Temperature,
		TopP:            req.TopP,
	}
	if ar.Model == "" {
		ar.Model = c.config.Model
	}
	if ar.MaxOutputTokens == 0 {
		ar.MaxOutputTokens = c.config.MaxOutputTokens
	}
	if len(req.Tools) > 0 {
		ar.Tools = convertTools(req.Tools)
		if ar.ToolChoice == "" {
			ar.ToolChoice = provider.ToolChoiceAuto
		}
	} else {
		ar.ToolChoice = provider.ToolChoiceNone
	}
	return ar
}

// doRequest sends an API request and returns the raw HTTP response.
func (c *Concentrate) doRequest(ctx context.Context, apiReq apiRequest) (*http.Response, error) {
	body, err := json.Marshal(apiReq)
	if err != nil {
		return nil, fmt.Errorf("concentrate: marshaling request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.config.responsesURL(), bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("concentrate: creating request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "text/event-stream")
	httpReq.Header.Set("Authorization", "Bearer "+c.config.APIKey)

	resp, err := c.client.Do(httpReq)
	if err != nil {
		if ctx.Err() != nil {
			return nil, fmt.Errorf("concentrate: sending request: %w", ctx.Err())
		}
		return nil, fmt.Errorf("concentrate: sending request: %w", provider.ErrProviderDown)
	}
	return resp, nil
}

// convertMessages maps conversation turns to /responses input items.
// Assistant tool calls and tool results become function call items.
func convertMessages(msgs []provider.LLMMessage) []apiInputItem {
	out := make([]apiInputItem, 0, len(msgs))
	for _, m := range msgs {
		switch {
		case m.Role == provider.MessageRoleTool:
			out = append(out, apiInputItem{
				Type:   "function_call_output",
				CallID: m.ToolID,
				Output: m.Content,
			})
		case len(m.ToolCalls) > 0:
			if m.Content != "" {
				out = append(out, apiInputItem{Role: string(m.Role), Content: m.Content})
			}
			for _, tc := range m.ToolCalls {
				out = append(out, apiInputItem{
					Type:      "function_call",
					CallID:    tc.ID,
					Name:      tc.Name,
					Arguments: string(tc.Arguments),
				})
			}
		default:
			role := m.Role
			if role == "" {
				role = provider.MessageRoleUser
			}
			out = append(out, apiInputItem{Role: string(role), Content: m.Content})
		}
	}
	return out
}

// convertTools converts provider tool definitions to API tools.
func convertTools(tools []provider.ToolDefinition) []apiTool {
	out := make([]apiTool, len(tools))
	for i, t := range tools {
		out[i] = apiTool{
			Type:        "function",
			Name:        t.Name,
			Description: t.Description,
			Parameters:  t.Parameters,
		}
	}
	return out
}

// convertResponse converts an API response to a provider.CompletionResponse.
func convertResponse(resp apiResponse) provider.CompletionResponse {
	cr := provider.CompletionResponse{
		Content:      extractText(resp),
		ToolCalls:    extractToolCalls(resp.Output),
		FinishReason: provider.FinishReasonStop,
	}
	if len(cr.ToolCalls) > 0 {
		cr.FinishReason = provider.FinishReasonToolUse
	} else if resp.Status == "incomplete" {
		cr.FinishReason = provider.FinishReasonLength
	}
	if resp.Usage != nil {
		cr.Usage = convertUsage(*resp.Usage)
	}
	return cr
}

func convertUsage(u apiUsage) provider.TokenUsage {
	total := u.TotalTokens
	if total == 0 {
		total = u.InputTokens + u.OutputTokens
	}
	return provider.TokenUsage{
		PromptTokens:     u.InputTokens,
		CompletionTokens: u.OutputTokens,
		TotalTokens:      total,
	}
}
