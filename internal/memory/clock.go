package memory

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// Clock hands out strictly increasing timestamps, so two writes in the
// same nanosecond (or on a coarse clock) still sort in write order.
type Clock struct {
	mu   sync.Mutex
	last time.Time
	now  func() time.Time
}

// NewClock returns a Clock reading from time.Now.
func NewClock() *Clock {
	return &Clock{now: time.Now}
}

// Now returns the current time, or one nanosecond past the previous value
// when the wall clock has not moved forward.
func (c *Clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	t := c.now().UTC().Round(0)
	if !t.After(c.last) {
		t = c.last.Add(time.Nanosecond)
	}
	c.last = t
	return t
}

// NewID returns a random identifier for sessions and messages.
func NewID() string {
	return uuid.NewString()
}
