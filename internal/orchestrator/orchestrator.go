// Package orchestrator runs agent turns as detached tasks keyed by
// session. A run outlives the request that submitted it: the user turn is
// persisted before the run starts, the assistant turn exactly once when it
// succeeds, and never when it is cancelled or fails.
package orchestrator

import (
	"context"
	"errors"
	"log/slog"
	"slices"
	"strconv"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/flemzord/cinechat/internal/agent"
	ctxengine "github.com/flemzord/cinechat/internal/context"
	"github.com/flemzord/cinechat/internal/memory"
	"github.com/flemzord/cinechat/internal/provider"
	"github.com/flemzord/cinechat/internal/security"
)

// DefaultMaxMessageLength bounds a submitted message, in characters.
const DefaultMaxMessageLength = 2000

var tracer = otel.Tracer("github.com/flemzord/cinechat/internal/orchestrator")

// ToolSet is the tool catalogue offered to every run.
type ToolSet interface {
	agent.ToolRunner
	Definitions() []provider.ToolDefinition
}

// Config tunes the orchestrator.
type Config struct {
	// Loop configures every agent run. Loop.Model is the default model.
	Loop agent.LoopConfig

	// SystemPrompt is prepended to every run.
	SystemPrompt string

	// MaxMessageLength bounds Submit messages. Defaults to 2000.
	MaxMessageLength int

	// MemoryTokenLimit is the history budget handed to the model.
	MemoryTokenLimit int

	// SerializeTurns queues runs of the same session instead of letting
	// them interleave.
	SerializeTurns bool

	// MaxActiveTasks caps concurrent runs. Zero means unlimited.
	MaxActiveTasks int

	// MaxParallelTools caps concurrent tool calls within one model turn.
	MaxParallelTools int
}

// Deps are the collaborators of an Orchestrator.
type Deps struct {
	Store    memory.Store
	Provider provider.Provider
	Tools    ToolSet
	Logger   *slog.Logger
	Audit    *security.AuditLogger
	Now      func() time.Time
}

// SubmitRequest is one chat turn.
type SubmitRequest struct {
	SessionID string
	Message   string
	// Model overrides the configured model for this turn.
	Model     string
	RequestID string
}

// Orchestrator owns the registry of detached runs.
type Orchestrator struct {
	store    memory.Store
	hydrator *memory.Hydrator
	provider provider.Provider
	tools    ToolSet
	executor *agent.ToolExecutor
	window   *ctxengine.HistoryWindow
	logger   *slog.Logger
	audit    *security.AuditLogger
	now      func() time.Time
	cfg      Config
	lanes    *laneLock

	mu       sync.Mutex
	tasks    map[string][]*Task
	admitted int // submits past admit but not yet registered
	closed   bool
	wg       sync.WaitGroup
}

// New returns an Orchestrator.
func New(deps Deps, cfg Config) *Orchestrator {
	if cfg.MaxMessageLength <= 0 {
		cfg.MaxMessageLength = DefaultMaxMessageLength
	}
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	now := deps.Now
	if now == nil {
		now = time.Now
	}
	return &Orchestrator{
		store:    deps.Store,
		hydrator: memory.NewHydrator(deps.Store),
		provider: deps.Provider,
		tools:    deps.Tools,
		executor: agent.NewToolExecutor(deps.Tools, cfg.MaxParallelTools),
		window:   ctxengine.NewHistoryWindow(nil, cfg.MemoryTokenLimit),
		logger:   logger,
		audit:    deps.Audit,
		now:      now,
		cfg:      cfg,
		lanes:    newLaneLock(),
		tasks:    make(map[string][]*Task),
	}
}

func (o *Orchestrator) validate(req SubmitRequest) error {
	if strings.TrimSpace(req.SessionID) == "" {
		return &ValidationError{Field: "session_id", Message: "must not be empty"}
	}
	if strings.TrimSpace(req.Message) == "" {
		return &ValidationError{Field: "message", Message: "must not be empty"}
	}
	if n := utf8.RuneCountInString(req.Message); n > o.cfg.MaxMessageLength {
		return &ValidationError{Field: "message", Message: "exceeds maximum length"}
	}
	return nil
}

// Submit persists the user turn and starts a detached run for it. The
// run is not tied to ctx: cancelling ctx after Submit returns has no
// effect on it. Values carried by ctx, such as the trace span, are kept.
func (o *Orchestrator) Submit(ctx context.Context, req SubmitRequest) (*Task, error) {
	if err := o.validate(req); err != nil {
		return nil, err
	}

	ctx, span := tracer.Start(ctx, "orchestrator.submit", trace.WithAttributes(
		attribute.String("session.id", req.SessionID),
		attribute.String("request.id", req.RequestID),
	))
	defer span.End()
	fail := func(err error) (*Task, error) {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	if err := o.admit(); err != nil {
		return fail(err)
	}
	registered := false
	defer func() {
		if !registered {
			o.mu.Lock()
			o.admitted--
			o.mu.Unlock()
		}
	}()

	history, err := o.hydrator.Hydrate(ctx, req.SessionID)
	if err != nil {
		return fail(err)
	}
	turn, err := o.store.AppendMessage(ctx, memory.Message{
		SessionID: req.SessionID,
		Role:      memory.RoleUser,
		Content:   req.Message,
	})
	if err != nil {
		return fail(err)
	}
	history = append(history, provider.UserMessage(req.Message))

	loopCfg := o.cfg.Loop
	if req.Model != "" {
		loopCfg.Model = req.Model
	}
	loop := agent.NewLoop(o.provider, o.executor, loopCfg)

	runCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	task := newTask(uuid.NewString(), req.SessionID, req.RequestID, o.now(), cancel)
	span.SetAttributes(attribute.String("task.id", task.id))

	o.mu.Lock()
	o.admitted--
	registered = true
	if o.closed {
		o.mu.Unlock()
		cancel()
		return fail(ErrClosed)
	}
	o.tasks[req.SessionID] = append(o.tasks[req.SessionID], task)
	o.wg.Add(1)
	var lane *ticket
	if o.cfg.SerializeTurns {
		lane = o.lanes.join(req.SessionID)
	}
	o.mu.Unlock()
	activeTasks.Inc()

	go o.run(runCtx, task, loop, lane, turn, history)
	return task, nil
}

// admit checks the shutdown flag and claims a slot under the active run
// cap. The slot is held until Submit registers the task or gives up, so
// submits still hydrating count against the cap.
func (o *Orchestrator) admit() error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.closed {
		return ErrClosed
	}
	if o.cfg.MaxActiveTasks > 0 && o.countLocked()+o.admitted >= o.cfg.MaxActiveTasks {
		return ErrTooManyTasks
	}
	o.admitted++
	return nil
}

// run drives one agent run. A non-nil lane holds the run until the runs
// submitted before it on the same session have settled.
func (o *Orchestrator) run(ctx context.Context, task *Task, loop *agent.Loop, lane *ticket, turn memory.Message, history []provider.LLMMessage) {
	defer o.wg.Done()
	defer task.cancel()

	logger := o.logger.With("session_id", task.sessionID, "task_id", task.id, "request_id", task.requestID)

	if lane != nil {
		defer o.lanes.leave(task.sessionID, lane)
		if err := lane.wait(ctx); err != nil {
			o.settle(ctx, logger, task, "", err)
			return
		}

		msgs, err := o.store.ListMessages(ctx, task.sessionID)
		if err != nil {
			o.settle(ctx, logger, task, "", err)
			return
		}
		history = queuedMemory(msgs, turn)
	}

	events, err := loop.RunStream(ctx, agent.Request{
		Messages:     o.window.Fit(history),
		SystemPrompt: o.cfg.SystemPrompt,
		Tools:        o.tools.Definitions(),
	})
	if err != nil {
		o.settle(ctx, logger, task, "", err)
		return
	}

	var (
		final  *agent.Response
		runErr error
	)
	for ev := range events {
		switch ev.Type {
		case agent.StreamEventText:
			task.publish(ev.Content)
		case agent.StreamEventToolStart:
			logger.Debug("tool call", "tool", ev.ToolCall.Name)
		case agent.StreamEventToolEnd:
			if ev.ToolCall.Output.IsError {
				logger.Warn("tool call failed", "tool", ev.ToolCall.Name, "error", ev.ToolCall.Output.Content)
			}
		case agent.StreamEventDone:
			final = ev.Final
		case agent.StreamEventError:
			runErr = ev.Err
		}
	}
	if runErr != nil || final == nil {
		if runErr == nil {
			runErr = errors.New("orchestrator: run ended without a result")
		}
		o.settle(ctx, logger, task, "", runErr)
		return
	}
	logger.Debug("run finished",
		"iterations", final.Iterations,
		"stop_reason", string(final.StopReason),
		"tools", final.ToolNames(),
		"total_tokens", final.TotalUsage.TotalTokens,
	)
	if !final.StopReason.Complete() {
		logger.Warn("run stopped early", "stop_reason", string(final.StopReason))
	}
	o.settle(ctx, logger, task, final.Content, nil)
}

// queuedMemory rebuilds the memory of a run that waited for its lane:
// everything stored before its own turn plus the replies committed while
// it waited, with its own turn last. User turns stored after its own
// belong to runs queued behind it and are left out.
func queuedMemory(msgs []memory.Message, turn memory.Message) []provider.LLMMessage {
	kept := make([]memory.Message, 0, len(msgs))
	after := false
	for _, m := range msgs {
		switch {
		case m.ID == turn.ID:
			after = true
		case after && m.Role == memory.RoleUser:
		default:
			kept = append(kept, m)
		}
	}
	return append(memory.Project(kept), provider.UserMessage(turn.Content))
}

// settle commits or discards the outcome of a run and finishes the task.
func (o *Orchestrator) settle(ctx context.Context, logger *slog.Logger, task *Task, content string, runErr error) {
	elapsed := o.now().Sub(task.startedAt)
	record := func(outcome string) {
		runsTotal.WithLabelValues(outcome).Inc()
		runDuration.WithLabelValues(outcome).Observe(elapsed.Seconds())
	}

	if task.cancelled() || (runErr != nil && errors.Is(runErr, context.Canceled)) {
		logger.Info("run cancelled", "elapsed", elapsed)
		record("cancelled")
		o.finish(task, TaskCancelled, "", ErrCancelled)
		return
	}
	if runErr != nil {
		logger.Error("run failed", "elapsed", elapsed, "error", runErr)
		record("failed")
		o.finish(task, TaskFailed, "", runErr)
		return
	}
	if !task.beginCommit() {
		logger.Info("run cancelled", "elapsed", elapsed)
		record("cancelled")
		o.finish(task, TaskCancelled, "", ErrCancelled)
		return
	}

	// The write must not be interrupted by a cancel that arrives after
	// the commit point.
	if _, err := o.store.AppendMessage(context.WithoutCancel(ctx), memory.Message{
		SessionID: task.sessionID,
		Role:      memory.RoleAssistant,
		Content:   content,
	}); err != nil {
		if errors.Is(err, memory.ErrSessionNotFound) {
			logger.Info("session deleted before reply was stored")
		} else {
			logger.Error("persist reply", "error", err)
		}
		record("failed")
		o.finish(task, TaskFailed, "", err)
		return
	}

	logger.Info("run completed", "elapsed", elapsed, "chars", utf8.RuneCountInString(content))
	record("completed")
	if o.audit != nil {
		o.audit.Log(security.AuditEvent{
			Type:      security.EventChatTurn,
			SessionID: task.sessionID,
			TaskID:    task.id,
			RequestID: task.requestID,
			Detail:    "completed",
		})
	}
	o.finish(task, TaskCompleted, content, nil)
}

// Await blocks until task finishes or ctx is done. Leaving early never
// cancels the run.
func (o *Orchestrator) Await(ctx context.Context, task *Task) (string, error) {
	return task.Wait(ctx)
}

// ActiveTasks returns the registered, unfinished tasks of a session in
// submission order.
func (o *Orchestrator) ActiveTasks(sessionID string) []*Task {
	o.mu.Lock()
	defer o.mu.Unlock()
	return slices.Clone(o.tasks[sessionID])
}

// Len returns the number of registered tasks across sessions.
func (o *Orchestrator) Len() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.countLocked()
}

func (o *Orchestrator) countLocked() int {
	n := 0
	for _, ts := range o.tasks {
		n += len(ts)
	}
	return n
}

// CancelAll signals every task of the session and unregisters them. It
// returns how many runs were stopped before writing a reply; a task that
// already reached its commit point is unregistered but not counted.
func (o *Orchestrator) CancelAll(sessionID string) int {
	o.mu.Lock()
	tasks := o.tasks[sessionID]
	delete(o.tasks, sessionID)
	o.mu.Unlock()
	activeTasks.Sub(float64(len(tasks)))

	n := 0
	for _, t := range tasks {
		if t.requestCancel() {
			n++
		}
	}
	if len(tasks) > 0 {
		o.logger.Info("tasks cancelled", "session_id", sessionID, "cancelled", n, "registered", len(tasks))
		if o.audit != nil {
			o.audit.Log(security.AuditEvent{
				Type:      security.EventTaskCancel,
				SessionID: sessionID,
				Metadata:  map[string]string{"cancelled": strconv.Itoa(n)},
			})
		}
	}
	return n
}

// DropSession cancels the runs of a session whose data is being deleted.
// Runs already committing fail on write because the session is gone.
func (o *Orchestrator) DropSession(sessionID string) int {
	return o.CancelAll(sessionID)
}

// CancelStale cancels runs started more than maxAge ago and returns how
// many were stopped.
func (o *Orchestrator) CancelStale(maxAge time.Duration) int {
	if maxAge <= 0 {
		return 0
	}
	cutoff := o.now().Add(-maxAge)

	var stale []*Task
	o.mu.Lock()
	for _, ts := range o.tasks {
		for _, t := range ts {
			if t.startedAt.Before(cutoff) {
				stale = append(stale, t)
			}
		}
	}
	o.mu.Unlock()

	n := 0
	for _, t := range stale {
		if t.requestCancel() {
			n++
			o.logger.Warn("stale run cancelled", "session_id", t.sessionID, "task_id", t.id, "age", o.now().Sub(t.startedAt))
		}
	}
	return n
}

// Shutdown refuses new runs, cancels the running ones and waits for them
// to settle or for ctx to end.
func (o *Orchestrator) Shutdown(ctx context.Context) error {
	o.mu.Lock()
	o.closed = true
	sessions := make([]string, 0, len(o.tasks))
	for id := range o.tasks {
		sessions = append(sessions, id)
	}
	o.mu.Unlock()

	for _, id := range sessions {
		o.CancelAll(id)
	}

	done := make(chan struct{})
	go func() {
		o.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// finish unregisters task before waking its waiters, so a caller that
// saw the result never sees the task as active.
func (o *Orchestrator) finish(task *Task, state TaskState, content string, err error) {
	o.remove(task)
	task.finish(state, content, err)
}

// remove unregisters task if it is still registered.
func (o *Orchestrator) remove(task *Task) {
	o.mu.Lock()
	defer o.mu.Unlock()
	ts := o.tasks[task.sessionID]
	i := slices.Index(ts, task)
	if i < 0 {
		return
	}
	ts = slices.Delete(ts, i, i+1)
	if len(ts) == 0 {
		delete(o.tasks, task.sessionID)
	} else {
		o.tasks[task.sessionID] = ts
	}
	activeTasks.Dec()
}
