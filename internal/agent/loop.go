package agent

import (
	"context"
	"errors"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/flemzord/cinechat/internal/provider"
)

// Sentinel errors for agent loop termination.
var (
	ErrTokenBudgetExceeded  = errors.New("agent: token budget exceeded")
	ErrMaxIterationsReached = errors.New("agent: max iterations reached")
	ErrLoopDetected         = errors.New("agent: loop detected")
)

var tracer = otel.Tracer("github.com/flemzord/cinechat/internal/agent")

// Loop implements the ReAct (Reason + Act) reasoning loop. Every model
// call is streamed; Run and RunStream differ only in whether the caller
// observes the events.
type Loop struct {
	provider provider.Provider
	executor *ToolExecutor
	config   LoopConfig
}

// NewLoop creates a Loop with the given provider, executor, and config.
func NewLoop(p provider.Provider, executor *ToolExecutor, cfg LoopConfig) *Loop {
	return &Loop{
		provider: p,
		executor: executor,
		config:   cfg.withDefaults(),
	}
}

// buildInitialMessages assembles the initial message history from the request.
func buildInitialMessages(req Request) []provider.LLMMessage {
	messages := make([]provider.LLMMessage, 0, len(req.Messages)+1)
	if req.SystemPrompt != "" {
		messages = append(messages, provider.SystemMessage(req.SystemPrompt))
	}
	return append(messages, req.Messages...)
}

// appendToolResults adds tool execution results to the conversation history.
func appendToolResults(messages []provider.LLMMessage, records []ToolCallRecord) []provider.LLMMessage {
	for _, rec := range records {
		call := provider.ToolCall{ID: rec.ID, Name: rec.Name}
		messages = append(messages, provider.ToolResultMessage(call, rec.Output.Content, rec.Output.IsError))
	}
	return messages
}

func (l *Loop) completionRequest(messages []provider.LLMMessage, tools []provider.ToolDefinition) provider.CompletionRequest {
	req := provider.CompletionRequest{
		Model:       l.config.Model,
		Messages:    messages,
		Tools:       tools,
		MaxTokens:   l.config.MaxOutputTokens,
		Temperature: l.config.Temperature,
	}
	if len(tools) > 0 {
		req.ToolChoice = l.config.ToolChoice
	}
	return req
}

// Run executes the loop and returns the final response.
//
// When l.config.Timeout is set a context.WithTimeout is applied. If the
// caller's context already carries a shorter deadline, the shorter one
// takes effect.
func (l *Loop) Run(ctx context.Context, req Request) (Response, error) {
	return l.run(ctx, req, func(StreamEvent) {})
}

// RunStream executes the loop and streams events over a channel. The last
// event is StreamEventDone carrying the final response, or
// StreamEventError. The caller must drain the channel.
func (l *Loop) RunStream(ctx context.Context, req Request) (<-chan StreamEvent, error) {
	ch := make(chan StreamEvent, 16)

	go func() {
		defer close(ch)

		resp, err := l.run(ctx, req, func(ev StreamEvent) { ch <- ev })
		if err != nil {
			ch <- StreamEvent{Type: StreamEventError, Err: err, Final: &resp}
			return
		}
		ch <- StreamEvent{Type: StreamEventDone, Final: &resp}
	}()

	return ch, nil
}

func (l *Loop) run(ctx context.Context, req Request, emit func(StreamEvent)) (Response, error) {
	if l.config.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, l.config.Timeout)
		defer cancel()
	}

	ctx, span := tracer.Start(ctx, "agent.run", trace.WithAttributes(
		attribute.String("agent.model", l.modelName()),
		attribute.Int("agent.history", len(req.Messages)),
	))
	defer span.End()

	guard := newRunGuard(l.config)
	messages := buildInitialMessages(req)

	var (
		content      strings.Builder
		allToolCalls []ToolCallRecord
	)
	finish := func(iterations int, reason StopReason, err error) (Response, error) {
		usage := guard.spent()
		span.SetAttributes(
			attribute.Int("agent.iterations", iterations),
			attribute.String("agent.stop_reason", string(reason)),
			attribute.Int("agent.total_tokens", usage.TotalTokens),
		)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		return Response{
			Content:    content.String(),
			ToolCalls:  allToolCalls,
			TotalUsage: usage,
			Iterations: iterations,
			StopReason: reason,
		}, err
	}

	for i := 0; i < l.config.MaxIterations; i++ {
		// Check context cancellation (timeout or external cancel).
		if err := ctx.Err(); err != nil {
			return finish(i, stopReasonFor(err), err)
		}

		if guard.overBudget() {
			return finish(i, StopReasonTokenBudget, ErrTokenBudgetExceeded)
		}

		src, err := l.provider.Stream(ctx, l.completionRequest(messages, req.Tools))
		if err != nil {
			return finish(i, stopReasonFor(err), err)
		}

		// Forward text deltas as they arrive; tool calls are collected by
		// the stream and read once it completes.
		stream := provider.NewTextStream(src)
		for {
			chunk, ok := stream.Next(ctx)
			if !ok {
				break
			}
			if chunk.Content != "" {
				content.WriteString(chunk.Content)
				emit(StreamEvent{Type: StreamEventText, Content: chunk.Content})
			}
		}
		turn, err := stream.Wait(ctx)
		if err != nil {
			// Drain remaining chunks to prevent provider goroutine leak.
			go func() {
				for range src { //nolint:revive // intentional empty drain loop
				}
			}()
			return finish(i, stopReasonFor(err), err)
		}

		if turn.Usage.TotalTokens > 0 {
			spent := guard.charge(turn.Usage)
			usage := turn.Usage
			emit(StreamEvent{Type: StreamEventUsage, Usage: &usage})
			if spent {
				return finish(i+1, StopReasonTokenBudget, ErrTokenBudgetExceeded)
			}
		}

		// No tool calls → the model is done reasoning.
		if len(turn.ToolCalls) == 0 {
			return finish(i+1, StopReasonComplete, nil)
		}

		// Check for loops before appending assistant message to avoid
		// leaving an orphan assistant message without tool results.
		for _, tc := range turn.ToolCalls {
			if guard.repeats(tc) {
				return finish(i+1, StopReasonLoopDetected, ErrLoopDetected)
			}
		}

		messages = append(messages, provider.AssistantMessage(turn.Content, turn.ToolCalls))

		for _, tc := range turn.ToolCalls {
			emit(StreamEvent{
				Type:     StreamEventToolStart,
				ToolCall: &ToolCallRecord{ID: tc.ID, Name: tc.Name, Arguments: tc.Arguments},
			})
		}

		records := l.executor.Execute(ctx, turn.ToolCalls)
		allToolCalls = append(allToolCalls, records...)

		for idx := range records {
			emit(StreamEvent{Type: StreamEventToolEnd, ToolCall: &records[idx]})
		}

		// Re-inject tool results into conversation.
		messages = appendToolResults(messages, records)
	}

	return finish(l.config.MaxIterations, StopReasonMaxIterations, ErrMaxIterationsReached)
}

func (l *Loop) modelName() string {
	if l.config.Model != "" {
		return l.config.Model
	}
	return l.provider.ModelName()
}

func stopReasonFor(err error) StopReason {
	if errors.Is(err, context.DeadlineExceeded) {
		return StopReasonTimeout
	}
	return StopReasonError
}
