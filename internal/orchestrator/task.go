package orchestrator

import (
	"context"
	"strings"
	"sync"
	"time"
)

// TaskState is the lifecycle position of a Task.
type TaskState string

// Task states. Running is the only non-terminal state besides Committing,
// during which the assistant reply is being written and can no longer be
// cancelled.
const (
	TaskRunning    TaskState = "running"
	TaskCommitting TaskState = "committing"
	TaskCompleted  TaskState = "completed"
	TaskCancelled  TaskState = "cancelled"
	TaskFailed     TaskState = "failed"
)

// Task is the control handle of one detached agent run. It is never a
// source of conversation data: the store is.
type Task struct {
	id        string
	sessionID string
	requestID string
	startedAt time.Time
	cancel    context.CancelFunc
	done      chan struct{}

	mu       sync.Mutex
	state    TaskState
	deltas   []string
	wake     chan struct{}
	content  string
	err      error
	finished bool
}

func newTask(id, sessionID, requestID string, startedAt time.Time, cancel context.CancelFunc) *Task {
	return &Task{
		id:        id,
		sessionID: sessionID,
		requestID: requestID,
		startedAt: startedAt,
		cancel:    cancel,
		done:      make(chan struct{}),
		state:     TaskRunning,
		wake:      make(chan struct{}),
	}
}

// ID returns the task identifier.
func (t *Task) ID() string { return t.id }

// SessionID returns the session the task runs for.
func (t *Task) SessionID() string { return t.sessionID }

// RequestID returns the request that submitted the task.
func (t *Task) RequestID() string { return t.requestID }

// StartedAt returns when the task was submitted.
func (t *Task) StartedAt() time.Time { return t.startedAt }

// Done is closed once the task reaches a terminal state.
func (t *Task) Done() <-chan struct{} { return t.done }

// State returns the current lifecycle state.
func (t *Task) State() TaskState {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.state
}

// Wait blocks until the run finishes or ctx is done. Abandoning the wait
// never cancels the run. A cancelled run returns ErrCancelled.
func (t *Task) Wait(ctx context.Context) (string, error) {
	select {
	case <-t.done:
		t.mu.Lock()
		defer t.mu.Unlock()
		return t.content, t.err
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

// Deltas streams the text produced by the run, replaying what was
// produced before the call. The channel closes when the run finishes or
// ctx is done. Concatenated, the deltas equal the content Wait returns on
// success.
func (t *Task) Deltas(ctx context.Context) <-chan string {
	out := make(chan string)
	go func() {
		defer close(out)
		next := 0
		for {
			t.mu.Lock()
			pending := t.deltas[next:]
			wake := t.wake
			finished := t.finished
			t.mu.Unlock()

			for _, d := range pending {
				select {
				case out <- d:
					next++
				case <-ctx.Done():
					return
				}
			}
			if len(pending) > 0 {
				continue
			}
			if finished {
				return
			}
			select {
			case <-wake:
			case <-ctx.Done():
				return
			}
		}
	}()
	return out
}

// Text returns the text produced so far.
func (t *Task) Text() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return strings.Join(t.deltas, "")
}

func (t *Task) publish(delta string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.finished {
		return
	}
	t.deltas = append(t.deltas, delta)
	close(t.wake)
	t.wake = make(chan struct{})
}

// requestCancel moves a running task to Cancelled and signals its run.
// It reports false when the task is already committing or finished.
func (t *Task) requestCancel() bool {
	t.mu.Lock()
	ok := t.state == TaskRunning
	if ok {
		t.state = TaskCancelled
	}
	t.mu.Unlock()
	if ok {
		t.cancel()
	}
	return ok
}

// beginCommit moves a running task to Committing. It reports false when
// the task was cancelled first, in which case nothing may be written.
func (t *Task) beginCommit() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.state != TaskRunning {
		return false
	}
	t.state = TaskCommitting
	return true
}

func (t *Task) cancelled() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.state == TaskCancelled
}

// finish records the outcome and releases waiters. Only the first call
// has an effect.
func (t *Task) finish(state TaskState, content string, err error) {
	t.mu.Lock()
	if t.finished {
		t.mu.Unlock()
		return
	}
	t.finished = true
	t.state = state
	t.content = content
	t.err = err
	close(t.wake)
	t.mu.Unlock()
	close(t.done)
}
