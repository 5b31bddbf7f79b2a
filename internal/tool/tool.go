// Package tool defines the operations the agent can call and the registry
// that dispatches them. Every tool is read-only against an upstream
// metadata service; tools never see the caller's credentials.
package tool

import (
	"context"
	"encoding/json"
)

// Tool is the interface every callable operation implements.
type Tool interface {
	// Name returns the unique identifier the model calls the tool by.
	Name() string

	// Description tells the model when to use the tool.
	Description() string

	// Schema returns a JSON Schema describing the tool's parameters.
	Schema() json.RawMessage

	// Execute runs the tool with the model-supplied arguments.
	Execute(ctx context.Context, args json.RawMessage) (Output, error)
}

// Output is the result of a tool execution.
type Output struct {
	// Content is the text fed back to the model, usually JSON.
	Content string

	// IsError indicates whether the output represents an error condition.
	IsError bool
}
