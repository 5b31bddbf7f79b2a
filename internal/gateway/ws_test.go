package gateway

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
)

func dialWS(t *testing.T, env *testEnv) (*websocket.Conn, context.Context) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	t.Cleanup(cancel)

	url := "ws" + strings.TrimPrefix(env.srv.URL, "http") + "/chat/ws"
	conn, _, err := websocket.Dial(ctx, url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { _ = conn.Close(websocket.StatusNormalClosure, "") })
	return conn, ctx
}

func readTurn(t *testing.T, ctx context.Context, conn *websocket.Conn) []chatEvent {
	t.Helper()
	var events []chatEvent
	for {
		var ev chatEvent
		if err := wsjson.Read(ctx, conn, &ev); err != nil {
			t.Fatalf("read: %v", err)
		}
		events = append(events, ev)
		if ev.Done {
			return events
		}
	}
}

func TestChatWS_Turns(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t, newFakeModel("Fight Club ", "is a 1999 film."), nil)
	sid := env.newSession(t)
	conn, ctx := dialWS(t, env)

	for i := range 2 {
		if err := wsjson.Write(ctx, conn, ChatRequest{SessionID: sid, Message: "Tell me about Fight Club"}); err != nil {
			t.Fatalf("write: %v", err)
		}
		events := readTurn(t, ctx, conn)

		var text strings.Builder
		for _, ev := range events {
			if ev.Error != "" {
				t.Fatalf("turn %d: unexpected error event %+v", i, ev)
			}
			text.WriteString(ev.Content)
		}
		if text.String() != "Fight Club is a 1999 film." {
			t.Errorf("turn %d: content = %q", i, text.String())
		}
	}

	msgs, err := env.store.ListMessages(context.Background(), sid)
	if err != nil {
		t.Fatalf("ListMessages: %v", err)
	}
	if len(msgs) != 4 {
		t.Errorf("stored %d messages, want 4", len(msgs))
	}
}

func TestChatWS_ValidationKeepsConnection(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t, newFakeModel("ok"), nil)
	sid := env.newSession(t)
	conn, ctx := dialWS(t, env)

	if err := wsjson.Write(ctx, conn, ChatRequest{SessionID: sid, Message: ""}); err != nil {
		t.Fatalf("write: %v", err)
	}
	events := readTurn(t, ctx, conn)
	if len(events) != 1 || events[0].ErrorCode != CodeValidation {
		t.Fatalf("events = %+v, want one VALIDATION_ERROR event", events)
	}

	if err := wsjson.Write(ctx, conn, ChatRequest{SessionID: sid, Message: "hello"}); err != nil {
		t.Fatalf("write: %v", err)
	}
	events = readTurn(t, ctx, conn)
	if last := events[len(events)-1]; last.Error != "" {
		t.Errorf("second turn failed: %+v", last)
	}
}
