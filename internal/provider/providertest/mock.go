// Package providertest holds a scriptable model for tests.
package providertest

import (
	"context"
	"sync/atomic"

	"github.com/flemzord/cinechat/internal/provider"
)

// DefaultModel is reported by a MockProvider without ModelNameFunc.
const DefaultModel = "mock-model"

// MockProvider implements provider.Provider from optional funcs. Missing
// funcs fall back to harmless defaults: Stream and Complete reply with an
// empty stop turn, HealthCheck succeeds.
type MockProvider struct {
	CompleteFunc          func(ctx context.Context, req provider.CompletionRequest) (provider.CompletionResponse, error)
	StreamFunc            func(ctx context.Context, req provider.CompletionRequest) (<-chan provider.StreamChunk, error)
	ContextWindowSizeFunc func() int
	ModelNameFunc         func() string
	HealthCheckFunc       func(ctx context.Context) error

	completes atomic.Int32
	streams   atomic.Int32
	probes    atomic.Int32
}

func (m *MockProvider) Complete(ctx context.Context, req provider.CompletionRequest) (provider.CompletionResponse, error) {
	m.completes.Add(1)
	if m.CompleteFunc == nil {
		return provider.CompletionResponse{FinishReason: provider.FinishReasonStop}, nil
	}
	return m.CompleteFunc(ctx, req)
}

func (m *MockProvider) Stream(ctx context.Context, req provider.CompletionRequest) (<-chan provider.StreamChunk, error) {
	m.streams.Add(1)
	if m.StreamFunc == nil {
		return ReplyStream(ctx, nil), nil
	}
	return m.StreamFunc(ctx, req)
}

func (m *MockProvider) ContextWindowSize() int {
	if m.ContextWindowSizeFunc == nil {
		return 128_000
	}
	return m.ContextWindowSizeFunc()
}

func (m *MockProvider) ModelName() string {
	if m.ModelNameFunc == nil {
		return DefaultModel
	}
	return m.ModelNameFunc()
}

func (m *MockProvider) HealthCheck(ctx context.Context) error {
	m.probes.Add(1)
	if m.HealthCheckFunc == nil {
		return nil
	}
	return m.HealthCheckFunc(ctx)
}

// Calls returns how many times Complete, Stream and HealthCheck ran.
func (m *MockProvider) Calls() (complete, stream, health int) {
	return int(m.completes.Load()), int(m.streams.Load()), int(m.probes.Load())
}

// ReplyStream returns a channel that sends each delta as a content chunk
// and then a stop chunk. When gate is non-nil nothing is sent until it is
// closed; a context cancelled while waiting yields a single error chunk.
func ReplyStream(ctx context.Context, gate <-chan struct{}, deltas ...string) <-chan provider.StreamChunk {
	ch := make(chan provider.StreamChunk)
	go func() {
		defer close(ch)
		if gate != nil {
			select {
			case <-gate:
			case <-ctx.Done():
				ch <- provider.StreamChunk{Err: ctx.Err()}
				return
			}
		}
		for _, d := range deltas {
			select {
			case ch <- provider.StreamChunk{Content: d}:
			case <-ctx.Done():
				return
			}
		}
		select {
		case ch <- provider.StreamChunk{FinishReason: provider.FinishReasonStop}:
		case <-ctx.Done():
		}
	}()
	return ch
}

var (
	_ provider.Provider      = (*MockProvider)(nil)
	_ provider.HealthChecker = (*MockProvider)(nil)
)
