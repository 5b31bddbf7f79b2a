package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/flemzord/cinechat/internal/provider"
	"github.com/flemzord/cinechat/internal/tool"
)

// DefaultMaxParallelTools bounds the lookups one model turn may run at once.
const DefaultMaxParallelTools = 4

// ToolRunner dispatches one tool call by name. *tool.Registry implements it.
type ToolRunner interface {
	Execute(ctx context.Context, name string, args json.RawMessage) (tool.Output, error)
}

// ToolExecutor runs the tool calls of a model turn concurrently.
type ToolExecutor struct {
	runner      ToolRunner
	maxParallel int
}

// NewToolExecutor dispatches through runner, at most maxParallel calls at
// a time. A non-positive maxParallel uses DefaultMaxParallelTools.
func NewToolExecutor(runner ToolRunner, maxParallel int) *ToolExecutor {
	if maxParallel <= 0 {
		maxParallel = DefaultMaxParallelTools
	}
	return &ToolExecutor{runner: runner, maxParallel: maxParallel}
}

// Execute returns one record per call, in call order. Failures never
// abort the batch: an error or a panic becomes an error Output the model
// reads on its next iteration.
func (e *ToolExecutor) Execute(ctx context.Context, calls []provider.ToolCall) []ToolCallRecord {
	records := make([]ToolCallRecord, len(calls))

	var g errgroup.Group
	g.SetLimit(e.maxParallel)
	for i, call := range calls {
		g.Go(func() error {
			records[i] = e.run(ctx, call)
			return nil
		})
	}
	_ = g.Wait()
	return records
}

func (e *ToolExecutor) run(ctx context.Context, call provider.ToolCall) (rec ToolCallRecord) {
	rec = ToolCallRecord{ID: call.ID, Name: call.Name, Arguments: call.Arguments}
	started := time.Now()
	defer func() {
		rec.Duration = time.Since(started)
		if p := recover(); p != nil {
			rec.Panicked = true
			rec.Output = tool.Output{Content: fmt.Sprintf("tool %s panicked: %v", call.Name, p), IsError: true}
		}
	}()

	out, err := e.runner.Execute(ctx, call.Name, call.Arguments)
	if err != nil {
		rec.Err = err
		rec.Output = tool.Output{Content: err.Error(), IsError: true}
		return rec
	}
	rec.Output = out
	return rec
}
