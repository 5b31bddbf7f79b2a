package gateway

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/flemzord/cinechat/internal/core"
	"github.com/flemzord/cinechat/internal/memory"
	"github.com/flemzord/cinechat/internal/orchestrator"
	"github.com/flemzord/cinechat/internal/provider"
	"github.com/flemzord/cinechat/internal/provider/providertest"
	"github.com/flemzord/cinechat/internal/tool"
)

// fakeModel answers every turn with reply, split in deltas. When gate is
// set, it waits for gate to close before answering.
type fakeModel struct {
	reply   []string
	err     error
	gate    chan struct{}
	started chan struct{}
}

func newFakeModel(reply ...string) *fakeModel {
	return &fakeModel{reply: reply, started: make(chan struct{}, 16)}
}

func (f *fakeModel) gated() *fakeModel {
	f.gate = make(chan struct{})
	return f
}

func (f *fakeModel) provider() provider.Provider {
	return &providertest.MockProvider{
		ModelNameFunc: func() string { return "test-model" },
		StreamFunc: func(ctx context.Context, _ provider.CompletionRequest) (<-chan provider.StreamChunk, error) {
			if f.err != nil {
				return nil, f.err
			}
			f.started <- struct{}{}
			return providertest.ReplyStream(ctx, f.gate, f.reply...), nil
		},
	}
}

func (f *fakeModel) waitStarted(t *testing.T) {
	t.Helper()
	select {
	case <-f.started:
	case <-time.After(5 * time.Second):
		t.Fatal("model was never called")
	}
}

type testEnv struct {
	gw    *Gateway
	store *memory.InMemoryStore
	chat  *orchestrator.Orchestrator
	srv   *httptest.Server
}

func newTestEnv(t *testing.T, model *fakeModel, mutate func(*Gateway)) *testEnv {
	t.Helper()

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	store := memory.NewInMemoryStore()
	tools := tool.NewRegistry()
	chat := orchestrator.New(orchestrator.Deps{
		Store:    store,
		Provider: model.provider(),
		Tools:    tools,
		Logger:   logger,
	}, orchestrator.Config{})

	g := &Gateway{
		logger:  logger,
		metrics: NewMetrics(),
		version: "test",
		store:   store,
		chat:    chat,
		tools:   tools,
		checks: []core.NamedCheck{
			{Name: "database", Check: store.Ping},
		},
	}
	g.config.defaults()
	if mutate != nil {
		mutate(g)
	}

	srv := httptest.NewServer(g.buildRouter())
	t.Cleanup(func() {
		srv.Close()
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = chat.Shutdown(ctx)
	})
	return &testEnv{gw: g, store: store, chat: chat, srv: srv}
}

// do sends a JSON request and decodes a JSON reply into out when non-nil.
func (e *testEnv) do(t *testing.T, method, path string, body any, out any) *http.Response {
	t.Helper()
	return e.doCtx(t, context.Background(), method, path, body, out)
}

func (e *testEnv) doCtx(t *testing.T, ctx context.Context, method, path string, body any, out any) *http.Response {
	t.Helper()

	var rd io.Reader
	switch b := body.(type) {
	case nil:
	case string:
		rd = strings.NewReader(b)
	default:
		data, err := json.Marshal(b)
		if err != nil {
			t.Fatalf("marshal: %v", err)
		}
		rd = bytes.NewReader(data)
	}
	req, err := http.NewRequestWithContext(ctx, method, e.srv.URL+path, rd)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := e.srv.Client().Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, path, err)
	}
	defer resp.Body.Close()
	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			t.Fatalf("%s %s: decode: %v", method, path, err)
		}
	}
	return resp
}

func (e *testEnv) newSession(t *testing.T) string {
	t.Helper()
	var created createSessionResponse
	resp := e.do(t, http.MethodPost, "/session/new", nil, &created)
	if resp.StatusCode != http.StatusOK || created.SessionID == "" {
		t.Fatalf("create session: status %d, id %q", resp.StatusCode, created.SessionID)
	}
	return created.SessionID
}

// readSSE collects the events of a server-sent event stream.
func readSSE(t *testing.T, body io.Reader) []chatEvent {
	t.Helper()
	var events []chatEvent
	sc := bufio.NewScanner(body)
	for sc.Scan() {
		line := sc.Text()
		data, ok := strings.CutPrefix(line, "data: ")
		if !ok {
			continue
		}
		var ev chatEvent
		if err := json.Unmarshal([]byte(data), &ev); err != nil {
			t.Fatalf("bad event %q: %v", data, err)
		}
		events = append(events, ev)
	}
	if err := sc.Err(); err != nil {
		t.Fatalf("read stream: %v", err)
	}
	return events
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for %s", what)
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func submitRequest(sessionID, message string) orchestrator.SubmitRequest {
	return orchestrator.SubmitRequest{SessionID: sessionID, Message: message}
}
