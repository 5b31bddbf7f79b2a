// Package provider is the boundary between the agent loop and a remote
// language model. Adapters such as provider.concentrate implement Provider
// and register themselves as core modules.
package provider

import "context"

// Provider talks to one model API.
type Provider interface {
	Complete(ctx context.Context, req CompletionRequest) (CompletionResponse, error)

	// Stream starts a streamed completion. Connection failures are
	// returned directly; failures after the first byte arrive as the
	// last chunk's Err. The channel is closed when the stream ends.
	Stream(ctx context.Context, req CompletionRequest) (<-chan StreamChunk, error)

	// ContextWindowSize is the model's window in tokens.
	ContextWindowSize() int
	ModelName() string
}

// HealthChecker is implemented by providers that can cheaply probe
// their upstream. The probe feeds /health and the background health job.
type HealthChecker interface {
	HealthCheck(ctx context.Context) error
}
