package tool

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"
)

type searchArgs struct {
	Query string `json:"query"`
	Limit int    `json:"limit"`
}

func newSearchFunc(run func(context.Context, searchArgs) (any, error)) *Func[searchArgs] {
	return &Func[searchArgs]{
		ToolName: "search_tmdb",
		Desc:     "search",
		Run:      run,
	}
}

func TestFuncDecodesArguments(t *testing.T) {
	t.Parallel()

	var got searchArgs
	f := newSearchFunc(func(_ context.Context, a searchArgs) (any, error) {
		got = a
		return map[string]any{"query": a.Query, "total_results": 1}, nil
	})

	out, err := f.Execute(context.Background(), json.RawMessage(`{"query":"Heat","limit":3}`))
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if got.Query != "Heat" || got.Limit != 3 {
		t.Errorf("args = %+v", got)
	}
	if out.IsError || out.Content != `{"query":"Heat","total_results":1}` {
		t.Errorf("out = %+v", out)
	}
}

func TestFuncEmptyArgumentsUseZeroValue(t *testing.T) {
	t.Parallel()

	for _, raw := range []string{"", "null", "  "} {
		called := false
		f := newSearchFunc(func(_ context.Context, a searchArgs) (any, error) {
			called = true
			if a != (searchArgs{}) {
				t.Errorf("args = %+v, want zero", a)
			}
			return []string{}, nil
		})
		if _, err := f.Execute(context.Background(), json.RawMessage(raw)); err != nil {
			t.Fatalf("Execute(%q): %v", raw, err)
		}
		if !called {
			t.Errorf("Execute(%q) did not call Run", raw)
		}
	}
}

func TestFuncMalformedArgumentsReportToModel(t *testing.T) {
	t.Parallel()

	f := newSearchFunc(func(context.Context, searchArgs) (any, error) {
		t.Fatal("Run must not be called")
		return nil, nil
	})

	out, err := f.Execute(context.Background(), json.RawMessage(`{"limit":"ten"}`))
	if err != nil {
		t.Fatalf("Execute returned Go error: %v", err)
	}
	if !out.IsError || !strings.HasPrefix(out.Content, ErrInvalidArguments.Error()) {
		t.Errorf("out = %+v", out)
	}
}

func TestFuncRunErrorPropagates(t *testing.T) {
	t.Parallel()

	boom := errors.New("boom")
	f := newSearchFunc(func(context.Context, searchArgs) (any, error) { return nil, boom })
	if _, err := f.Execute(context.Background(), nil); !errors.Is(err, boom) {
		t.Fatalf("err = %v, want boom", err)
	}
}

func TestFuncDefaultSchema(t *testing.T) {
	t.Parallel()

	f := newSearchFunc(nil)
	var schema map[string]any
	if err := json.Unmarshal(f.Schema(), &schema); err != nil {
		t.Fatalf("schema not JSON: %v", err)
	}
	if schema["type"] != "object" {
		t.Errorf("schema = %v", schema)
	}
}
