// Package securitytest provides test doubles for the security package.
package securitytest

import (
	"slices"
	"sync"

	"github.com/flemzord/cinechat/internal/security"
)

// Recorder collects the events of an audit logger.
type Recorder struct {
	mu     sync.Mutex
	events []security.AuditEvent
}

// NewAuditRecorder returns an audit logger with no redaction whose events
// land in the returned Recorder.
func NewAuditRecorder() (*security.AuditLogger, *Recorder) {
	rec := &Recorder{}
	l := security.NewAuditLogger(security.AuditLoggerConfig{
		OnEvent: func(e security.AuditEvent) {
			rec.mu.Lock()
			rec.events = append(rec.events, e)
			rec.mu.Unlock()
		},
	})
	return l, rec
}

// Events returns a copy of everything recorded so far.
func (r *Recorder) Events() []security.AuditEvent {
	r.mu.Lock()
	defer r.mu.Unlock()
	return slices.Clone(r.events)
}

// Types lists the recorded event types in order.
func (r *Recorder) Types() []security.EventType {
	r.mu.Lock()
	defer r.mu.Unlock()
	types := make([]security.EventType, len(r.events))
	for i, e := range r.events {
		types[i] = e.Type
	}
	return types
}
