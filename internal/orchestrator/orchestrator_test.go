package orchestrator

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/flemzord/cinechat/internal/memory"
	"github.com/flemzord/cinechat/internal/provider"
	"github.com/flemzord/cinechat/internal/provider/providertest"
	"github.com/flemzord/cinechat/internal/tool"
)

// fakeModel streams reply once gate is closed. A nil gate replies at once.
type fakeModel struct {
	gate    chan struct{}
	reply   []string
	err     error
	started chan provider.CompletionRequest

	// onStream runs before the stream opens.
	onStream func(req provider.CompletionRequest)
}

func newFakeModel(gated bool, reply ...string) *fakeModel {
	f := &fakeModel{reply: reply, started: make(chan provider.CompletionRequest, 16)}
	if gated {
		f.gate = make(chan struct{})
	}
	return f
}

func (f *fakeModel) provider() *providertest.MockProvider {
	return &providertest.MockProvider{
		ModelNameFunc: func() string { return "test-model" },
		StreamFunc: func(ctx context.Context, req provider.CompletionRequest) (<-chan provider.StreamChunk, error) {
			if f.onStream != nil {
				f.onStream(req)
			}
			if f.err != nil {
				return nil, f.err
			}
			f.started <- req
			return providertest.ReplyStream(ctx, f.gate, f.reply...), nil
		},
	}
}

func (f *fakeModel) waitStarted(t *testing.T) provider.CompletionRequest {
	t.Helper()
	select {
	case req := <-f.started:
		return req
	case <-time.After(5 * time.Second):
		t.Fatal("model was never called")
		return provider.CompletionRequest{}
	}
}

func newTestOrchestrator(t *testing.T, model *fakeModel, cfg Config) (*Orchestrator, *memory.InMemoryStore) {
	t.Helper()
	store := memory.NewInMemoryStore()
	o := New(Deps{
		Store:    store,
		Provider: model.provider(),
		Tools:    tool.NewRegistry(),
	}, cfg)
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = o.Shutdown(ctx)
	})
	return o, store
}

func waitCtx(t *testing.T) context.Context {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	t.Cleanup(cancel)
	return ctx
}

func roles(t *testing.T, store memory.Store, sessionID string) []string {
	t.Helper()
	msgs, err := store.ListMessages(context.Background(), sessionID)
	if err != nil {
		t.Fatalf("ListMessages: %v", err)
	}
	out := make([]string, len(msgs))
	for i, m := range msgs {
		out[i] = string(m.Role) + ":" + m.Content
	}
	return out
}

func TestSubmitPersistsUserTurnBeforeRun(t *testing.T) {
	t.Parallel()

	model := newFakeModel(false, "Dune ", "is trending.")
	o, store := newTestOrchestrator(t, model, Config{})

	var seenAtStart []memory.Message
	model.onStream = func(provider.CompletionRequest) {
		seenAtStart, _ = store.ListMessages(context.Background(), "s1")
	}

	task, err := o.Submit(context.Background(), SubmitRequest{SessionID: "s1", Message: "What is trending?"})
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	content, err := o.Await(waitCtx(t), task)
	if err != nil {
		t.Fatalf("Await: %v", err)
	}
	if content != "Dune is trending." {
		t.Errorf("content = %q", content)
	}
	if len(seenAtStart) != 1 || seenAtStart[0].Role != memory.RoleUser {
		t.Errorf("store at model start = %+v, want the user turn", seenAtStart)
	}

	got := roles(t, store, "s1")
	want := []string{"user:What is trending?", "assistant:Dune is trending."}
	if strings.Join(got, "|") != strings.Join(want, "|") {
		t.Errorf("messages = %v, want %v", got, want)
	}
	sess, err := store.GetSession(context.Background(), "s1")
	if err != nil || sess.Title != memory.DefaultTitle("s1") {
		t.Errorf("session = %+v, %v", sess, err)
	}
}

func TestSubmitValidation(t *testing.T) {
	t.Parallel()

	o, store := newTestOrchestrator(t, newFakeModel(false, "x"), Config{MaxMessageLength: 5})

	tests := []struct {
		name  string
		req   SubmitRequest
		field string
	}{
		{name: "empty_session", req: SubmitRequest{Message: "hi"}, field: "session_id"},
		{name: "blank_message", req: SubmitRequest{SessionID: "s", Message: "   "}, field: "message"},
		{name: "too_long", req: SubmitRequest{SessionID: "s", Message: "abcdef"}, field: "message"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := o.Submit(context.Background(), tt.req)
			if !errors.Is(err, ErrInvalidRequest) {
				t.Fatalf("err = %v, want ErrInvalidRequest", err)
			}
			var ve *ValidationError
			if !errors.As(err, &ve) || ve.Field != tt.field {
				t.Errorf("field = %v, want %s", ve, tt.field)
			}
		})
	}

	// Five multi-byte characters fit a five character limit.
	if _, err := o.Submit(context.Background(), SubmitRequest{SessionID: "s", Message: "ééééé"}); err != nil {
		t.Errorf("rune-counted message rejected: %v", err)
	}
	if _, err := store.GetSession(context.Background(), "empty"); !errors.Is(err, memory.ErrSessionNotFound) {
		t.Errorf("unexpected session: %v", err)
	}
}

func TestRunSurvivesCallerCancellation(t *testing.T) {
	t.Parallel()

	model := newFakeModel(true, "still here")
	o, store := newTestOrchestrator(t, model, Config{})

	reqCtx, cancelReq := context.WithCancel(context.Background())
	task, err := o.Submit(reqCtx, SubmitRequest{SessionID: "s1", Message: "hello"})
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	model.waitStarted(t)

	// The observer leaves: the request context ends and Await returns.
	awaitCtx, cancelAwait := context.WithCancel(context.Background())
	cancelAwait()
	if _, err := o.Await(awaitCtx, task); !errors.Is(err, context.Canceled) {
		t.Fatalf("Await with gone caller = %v, want context.Canceled", err)
	}
	cancelReq()

	close(model.gate)
	content, err := task.Wait(waitCtx(t))
	if err != nil || content != "still here" {
		t.Fatalf("Wait = %q, %v", content, err)
	}
	if got := roles(t, store, "s1"); len(got) != 2 || got[1] != "assistant:still here" {
		t.Errorf("messages = %v", got)
	}
}

func TestStatusLifecycle(t *testing.T) {
	t.Parallel()

	model := newFakeModel(true, "done")
	o, _ := newTestOrchestrator(t, model, Config{})

	task, err := o.Submit(context.Background(), SubmitRequest{SessionID: "s1", Message: "hi"})
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if active := o.ActiveTasks("s1"); len(active) != 1 || active[0].ID() != task.ID() {
		t.Fatalf("active = %v, want the submitted task", active)
	}
	if task.State() != TaskRunning {
		t.Errorf("state = %s, want running", task.State())
	}

	close(model.gate)
	if _, err := task.Wait(waitCtx(t)); err != nil {
		t.Fatalf("Wait: %v", err)
	}
	if active := o.ActiveTasks("s1"); len(active) != 0 {
		t.Errorf("active after completion = %d, want 0", len(active))
	}
	if task.State() != TaskCompleted {
		t.Errorf("state = %s, want completed", task.State())
	}
}

func TestCancelAllWritesNoReply(t *testing.T) {
	t.Parallel()

	model := newFakeModel(true, "never stored")
	o, store := newTestOrchestrator(t, model, Config{})

	var tasks []*Task
	for _, msg := range []string{"first", "second"} {
		task, err := o.Submit(context.Background(), SubmitRequest{SessionID: "s1", Message: msg})
		if err != nil {
			t.Fatalf("Submit: %v", err)
		}
		tasks = append(tasks, task)
	}
	model.waitStarted(t)
	model.waitStarted(t)

	if n := o.CancelAll("s1"); n != 2 {
		t.Fatalf("CancelAll = %d, want 2", n)
	}
	if active := o.ActiveTasks("s1"); len(active) != 0 {
		t.Errorf("active after CancelAll = %d, want 0", len(active))
	}
	for _, task := range tasks {
		_, err := task.Wait(waitCtx(t))
		if !errors.Is(err, ErrCancelled) || !errors.Is(err, context.Canceled) {
			t.Errorf("Wait = %v, want ErrCancelled", err)
		}
		if task.State() != TaskCancelled {
			t.Errorf("state = %s, want cancelled", task.State())
		}
	}

	close(model.gate)
	got := roles(t, store, "s1")
	if len(got) != 2 || got[0] != "user:first" || got[1] != "user:second" {
		t.Errorf("messages = %v, want only the user turns", got)
	}
	if n := o.CancelAll("s1"); n != 0 {
		t.Errorf("second CancelAll = %d, want 0", n)
	}
}

func TestDropSessionDuringRun(t *testing.T) {
	t.Parallel()

	model := newFakeModel(true, "orphan")
	o, store := newTestOrchestrator(t, model, Config{})

	task, err := o.Submit(context.Background(), SubmitRequest{SessionID: "s1", Message: "hi"})
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	model.waitStarted(t)

	if err := store.DeleteSession(context.Background(), "s1"); err != nil {
		t.Fatalf("DeleteSession: %v", err)
	}
	if n := o.DropSession("s1"); n != 1 {
		t.Errorf("DropSession = %d, want 1", n)
	}
	close(model.gate)
	if _, err := task.Wait(waitCtx(t)); !errors.Is(err, ErrCancelled) {
		t.Errorf("Wait = %v, want ErrCancelled", err)
	}

	if _, err := store.GetSession(context.Background(), "s1"); !errors.Is(err, memory.ErrSessionNotFound) {
		t.Errorf("GetSession = %v, want ErrSessionNotFound", err)
	}
	if msgs, _ := store.ListMessages(context.Background(), "s1"); len(msgs) != 0 {
		t.Errorf("messages after drop = %d, want 0", len(msgs))
	}
}

func TestCommittedReplyFailsOnDeletedSession(t *testing.T) {
	t.Parallel()

	model := newFakeModel(false, "late")
	o, store := newTestOrchestrator(t, model, Config{})

	// The session disappears between the model reply and the commit.
	model.onStream = func(provider.CompletionRequest) {
		_ = store.DeleteSession(context.Background(), "s1")
	}
	task, err := o.Submit(context.Background(), SubmitRequest{SessionID: "s1", Message: "hi"})
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if _, err := task.Wait(waitCtx(t)); !errors.Is(err, memory.ErrSessionNotFound) {
		t.Fatalf("Wait = %v, want ErrSessionNotFound", err)
	}
	if task.State() != TaskFailed {
		t.Errorf("state = %s, want failed", task.State())
	}
	if msgs, _ := store.ListMessages(context.Background(), "s1"); len(msgs) != 0 {
		t.Errorf("messages = %d, want 0", len(msgs))
	}
}

func TestRunFailureKeepsUserTurn(t *testing.T) {
	t.Parallel()

	model := newFakeModel(false)
	model.err = provider.ErrProviderDown
	o, store := newTestOrchestrator(t, model, Config{})

	task, err := o.Submit(context.Background(), SubmitRequest{SessionID: "s1", Message: "hi"})
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if _, err := task.Wait(waitCtx(t)); !errors.Is(err, provider.ErrProviderDown) {
		t.Fatalf("Wait = %v, want ErrProviderDown", err)
	}
	if got := roles(t, store, "s1"); len(got) != 1 || got[0] != "user:hi" {
		t.Errorf("messages = %v", got)
	}
	if len(o.ActiveTasks("s1")) != 0 {
		t.Error("failed task still registered")
	}
}

// Turns of one session interleave by default: the second run hydrates the
// first user turn but not its pending reply.
func TestConcurrentTurnsInterleaveByDefault(t *testing.T) {
	t.Parallel()

	model := newFakeModel(true, "reply")
	o, _ := newTestOrchestrator(t, model, Config{})

	first, err := o.Submit(context.Background(), SubmitRequest{SessionID: "s1", Message: "one"})
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	model.waitStarted(t)
	second, err := o.Submit(context.Background(), SubmitRequest{SessionID: "s1", Message: "two"})
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	req := model.waitStarted(t)

	if got := len(o.ActiveTasks("s1")); got != 2 {
		t.Errorf("active = %d, want 2 running together", got)
	}
	if len(req.Messages) != 2 || req.Messages[0].Content != "one" || req.Messages[1].Content != "two" {
		t.Errorf("second run memory = %+v", req.Messages)
	}

	close(model.gate)
	for _, task := range []*Task{first, second} {
		if _, err := task.Wait(waitCtx(t)); err != nil {
			t.Errorf("Wait: %v", err)
		}
	}
}

func TestSerializeTurnsQueuesLaterRuns(t *testing.T) {
	t.Parallel()

	model := newFakeModel(true, "reply")
	o, _ := newTestOrchestrator(t, model, Config{SerializeTurns: true})

	first, err := o.Submit(context.Background(), SubmitRequest{SessionID: "s1", Message: "one"})
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	model.waitStarted(t)
	var queued []*Task
	for _, msg := range []string{"two", "three"} {
		task, err := o.Submit(context.Background(), SubmitRequest{SessionID: "s1", Message: msg})
		if err != nil {
			t.Fatalf("Submit(%s): %v", msg, err)
		}
		queued = append(queued, task)
	}

	select {
	case <-model.started:
		t.Fatal("a queued run reached the model while the first was running")
	case <-time.After(50 * time.Millisecond):
	}

	close(model.gate)
	if _, err := first.Wait(waitCtx(t)); err != nil {
		t.Fatalf("first Wait: %v", err)
	}

	// Each queued run sees the replies committed before it, ends on its
	// own question and never sees the turns queued behind it.
	wants := []string{
		"user:one|assistant:reply|user:two",
		"user:one|assistant:reply|user:two|assistant:reply|user:three",
	}
	for i, task := range queued {
		req := model.waitStarted(t)
		if _, err := task.Wait(waitCtx(t)); err != nil {
			t.Fatalf("queued run %d Wait: %v", i, err)
		}
		var contents []string
		for _, m := range req.Messages {
			contents = append(contents, string(m.Role)+":"+m.Content)
		}
		if got := strings.Join(contents, "|"); got != wants[i] {
			t.Errorf("queued run %d memory = %s, want %s", i, got, wants[i])
		}
	}
}

func TestQueuedMemory(t *testing.T) {
	t.Parallel()

	msg := func(id string, role memory.Role, content string) memory.Message {
		return memory.Message{ID: id, Role: role, Content: content}
	}
	turn := msg("m3", memory.RoleUser, "two")

	tests := []struct {
		name string
		msgs []memory.Message
		want string
	}{
		{
			name: "reply_committed_after_own_turn",
			msgs: []memory.Message{
				msg("m1", memory.RoleUser, "one"),
				turn,
				msg("m4", memory.RoleUser, "three"),
				msg("m5", memory.RoleAssistant, "reply"),
			},
			want: "user:one|assistant:reply|user:two",
		},
		{
			name: "own_turn_cleared_while_queued",
			msgs: nil,
			want: "user:two",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			var got []string
			for _, m := range queuedMemory(tt.msgs, turn) {
				got = append(got, string(m.Role)+":"+m.Content)
			}
			if strings.Join(got, "|") != tt.want {
				t.Errorf("queuedMemory = %v, want %s", got, tt.want)
			}
		})
	}
}

func TestMaxActiveTasks(t *testing.T) {
	t.Parallel()

	model := newFakeModel(true, "x")
	o, _ := newTestOrchestrator(t, model, Config{MaxActiveTasks: 1})

	if _, err := o.Submit(context.Background(), SubmitRequest{SessionID: "a", Message: "hi"}); err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if _, err := o.Submit(context.Background(), SubmitRequest{SessionID: "b", Message: "hi"}); !errors.Is(err, ErrTooManyTasks) {
		t.Errorf("err = %v, want ErrTooManyTasks", err)
	}
	close(model.gate)
}

func TestMaxActiveTasksUnderConcurrentSubmits(t *testing.T) {
	t.Parallel()

	model := newFakeModel(true, "x")
	o, store := newTestOrchestrator(t, model, Config{MaxActiveTasks: 2})
	defer close(model.gate)

	const callers = 16
	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		accepted int
	)
	for i := range callers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := o.Submit(context.Background(), SubmitRequest{SessionID: "s" + strconv.Itoa(i), Message: "hi"})
			switch {
			case err == nil:
				mu.Lock()
				accepted++
				mu.Unlock()
			case !errors.Is(err, ErrTooManyTasks):
				t.Errorf("Submit: %v", err)
			}
		}()
	}
	wg.Wait()

	if accepted != 2 || o.Len() != 2 {
		t.Fatalf("accepted = %d, registered = %d, want 2", accepted, o.Len())
	}
	stored := 0
	for i := range callers {
		stored += len(roles(t, store, "s"+strconv.Itoa(i)))
	}
	if stored != 2 {
		t.Errorf("stored user turns = %d, want 2: rejected submits must not persist", stored)
	}
}

func TestDeltasReplayAndMatchContent(t *testing.T) {
	t.Parallel()

	model := newFakeModel(true, "The ", "Wire ", "ended in 2008.")
	o, _ := newTestOrchestrator(t, model, Config{})

	task, err := o.Submit(context.Background(), SubmitRequest{SessionID: "s1", Message: "When did The Wire end?"})
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}

	live := task.Deltas(waitCtx(t))
	close(model.gate)

	var streamed strings.Builder
	for d := range live {
		streamed.WriteString(d)
	}
	content, err := task.Wait(waitCtx(t))
	if err != nil {
		t.Fatalf("Wait: %v", err)
	}
	if streamed.String() != content {
		t.Errorf("streamed %q, content %q", streamed.String(), content)
	}

	var replayed strings.Builder
	for d := range task.Deltas(waitCtx(t)) {
		replayed.WriteString(d)
	}
	if replayed.String() != content || task.Text() != content {
		t.Errorf("replayed %q, text %q, want %q", replayed.String(), task.Text(), content)
	}
}

func TestCancelStale(t *testing.T) {
	t.Parallel()

	var (
		mu  sync.Mutex
		now = time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	)
	clock := func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		return now
	}

	model := newFakeModel(true, "x")
	store := memory.NewInMemoryStore()
	o := New(Deps{Store: store, Provider: model.provider(), Tools: tool.NewRegistry(), Now: clock}, Config{})

	task, err := o.Submit(context.Background(), SubmitRequest{SessionID: "s1", Message: "hi"})
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if n := o.CancelStale(5 * time.Minute); n != 0 {
		t.Errorf("fresh CancelStale = %d, want 0", n)
	}

	mu.Lock()
	now = now.Add(10 * time.Minute)
	mu.Unlock()

	if n := o.CancelStale(5 * time.Minute); n != 1 {
		t.Errorf("CancelStale = %d, want 1", n)
	}
	if _, err := task.Wait(waitCtx(t)); !errors.Is(err, ErrCancelled) {
		t.Errorf("Wait = %v, want ErrCancelled", err)
	}
	if n := o.CancelStale(0); n != 0 {
		t.Errorf("CancelStale(0) = %d, want 0", n)
	}
}

func TestShutdownCancelsAndRejects(t *testing.T) {
	t.Parallel()

	model := newFakeModel(true, "x")
	store := memory.NewInMemoryStore()
	o := New(Deps{Store: store, Provider: model.provider(), Tools: tool.NewRegistry()}, Config{})

	task, err := o.Submit(context.Background(), SubmitRequest{SessionID: "s1", Message: "hi"})
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	model.waitStarted(t)

	if err := o.Shutdown(waitCtx(t)); err != nil {
		t.Fatalf("Shutdown: %v", err)
	}
	if _, err := task.Wait(waitCtx(t)); !errors.Is(err, ErrCancelled) {
		t.Errorf("Wait = %v, want ErrCancelled", err)
	}
	if _, err := o.Submit(context.Background(), SubmitRequest{SessionID: "s1", Message: "again"}); !errors.Is(err, ErrClosed) {
		t.Errorf("Submit after shutdown = %v, want ErrClosed", err)
	}
	if o.Len() != 0 {
		t.Errorf("Len = %d, want 0", o.Len())
	}
}

func TestHistoryTrimmedToMemoryLimit(t *testing.T) {
	t.Parallel()

	model := newFakeModel(false, "ok")
	o, store := newTestOrchestrator(t, model, Config{MemoryTokenLimit: 30})

	if _, _, err := store.EnsureSession(context.Background(), memory.Session{ID: "s1"}); err != nil {
		t.Fatalf("EnsureSession: %v", err)
	}
	for i := 0; i < 10; i++ {
		if _, err := store.AppendMessage(context.Background(), memory.Message{
			SessionID: "s1", Role: memory.RoleUser, Content: strings.Repeat("x", 40),
		}); err != nil {
			t.Fatalf("AppendMessage: %v", err)
		}
	}

	task, err := o.Submit(context.Background(), SubmitRequest{SessionID: "s1", Message: "latest"})
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	req := model.waitStarted(t)
	if _, err := task.Wait(waitCtx(t)); err != nil {
		t.Fatalf("Wait: %v", err)
	}

	if len(req.Messages) >= 11 {
		t.Errorf("model saw %d messages, want a trimmed history", len(req.Messages))
	}
	if last := req.Messages[len(req.Messages)-1]; last.Content != "latest" {
		t.Errorf("last message = %q, want the new turn", last.Content)
	}
	if msgs, _ := store.ListMessages(context.Background(), "s1"); len(msgs) != 12 {
		t.Errorf("stored = %d, want all 12", len(msgs))
	}
}
