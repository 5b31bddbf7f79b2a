package tool

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
)

// Func adapts a typed function into a Tool. Arguments are decoded into A
// before Run is called, and Run's result is encoded as JSON.
type Func[A any] struct {
	ToolName string
	Desc     string
	Params   json.RawMessage
	Run      func(ctx context.Context, args A) (any, error)
}

var _ Tool = (*Func[struct{}])(nil)

// Name implements Tool.
func (f *Func[A]) Name() string { return f.ToolName }

// Description implements Tool.
func (f *Func[A]) Description() string { return f.Desc }

// Schema implements Tool.
func (f *Func[A]) Schema() json.RawMessage {
	if len(f.Params) == 0 {
		return json.RawMessage(`{"type":"object","properties":{}}`)
	}
	return f.Params
}

// Execute implements Tool. Malformed arguments produce an error output the
// model can correct, not a Go error.
func (f *Func[A]) Execute(ctx context.Context, raw json.RawMessage) (Output, error) {
	var args A
	if trimmed := bytes.TrimSpace(raw); len(trimmed) > 0 && !bytes.Equal(trimmed, []byte("null")) {
		if err := json.Unmarshal(trimmed, &args); err != nil {
			return Output{
				Content: fmt.Sprintf("%v: %v", ErrInvalidArguments, err),
				IsError: true,
			}, nil
		}
	}

	result, err := f.Run(ctx, args)
	if err != nil {
		return Output{}, err
	}
	return JSONOutput(result)
}

// JSONOutput encodes v as the tool output content.
func JSONOutput(v any) (Output, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return Output{}, fmt.Errorf("tool: encode result: %w", err)
	}
	return Output{Content: string(b)}, nil
}
