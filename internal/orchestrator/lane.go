package orchestrator

import (
	"context"
	"slices"
	"sync"
)

// laneLock serializes runs per session in submission order while runs of
// different sessions proceed in parallel.
type laneLock struct {
	mu    sync.Mutex
	lanes map[string][]*ticket
}

// ticket is a place in a lane. ready is closed when it reaches the head.
type ticket struct {
	ready chan struct{}
}

func newLaneLock() *laneLock {
	return &laneLock{lanes: make(map[string][]*ticket)}
}

// join queues a ticket at the tail of the lane for key. Every joined
// ticket must be passed to leave exactly once.
func (l *laneLock) join(key string) *ticket {
	t := &ticket{ready: make(chan struct{})}
	l.mu.Lock()
	defer l.mu.Unlock()
	q := l.lanes[key]
	if len(q) == 0 {
		close(t.ready)
	}
	l.lanes[key] = append(q, t)
	return t
}

// wait blocks until t heads its lane or ctx is done.
func (t *ticket) wait(ctx context.Context) error {
	select {
	case <-t.ready:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// leave removes t from the lane for key and hands the lane to the next
// ticket when t was at the head.
func (l *laneLock) leave(key string, t *ticket) {
	l.mu.Lock()
	defer l.mu.Unlock()
	q := l.lanes[key]
	i := slices.Index(q, t)
	if i < 0 {
		return
	}
	q = slices.Delete(q, i, i+1)
	if len(q) == 0 {
		delete(l.lanes, key)
		return
	}
	l.lanes[key] = q
	if i == 0 {
		close(q[0].ready)
	}
}

// size returns the number of lanes currently tracked.
func (l *laneLock) size() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.lanes)
}
