package security

import (
	"encoding/json"
	"io"
	"maps"
	"sync"
	"sync/atomic"
	"time"
)

// EventType names what an AuditEvent records.
type EventType string

const (
	EventChatTurn      EventType = "chat_turn"
	EventToolCall      EventType = "tool_call"
	EventToolResult    EventType = "tool_result"
	EventTaskCancel    EventType = "task_cancel"
	EventAuthFailure   EventType = "auth_failure"
	EventSessionCreate EventType = "session_create"
	EventSessionDelete EventType = "session_delete"
	EventSessionClear  EventType = "session_clear"
	EventRateLimit     EventType = "rate_limit"
)

// AuditEvent is one line of the audit log.
type AuditEvent struct {
	Timestamp time.Time         `json:"timestamp"`
	Type      EventType         `json:"type"`
	SessionID string            `json:"session_id,omitempty"`
	TaskID    string            `json:"task_id,omitempty"`
	RequestID string            `json:"request_id,omitempty"`
	RemoteIP  string            `json:"remote_ip,omitempty"`
	ToolName  string            `json:"tool_name,omitempty"`
	Detail    string            `json:"detail,omitempty"`
	Metadata  map[string]string `json:"metadata,omitempty"`
}

// AuditLoggerConfig configures an AuditLogger. Events go to Writer as
// JSON lines and to OnEvent; either may be nil. Redactor, when set, is
// applied to Detail and Metadata values first.
type AuditLoggerConfig struct {
	Writer   io.Writer
	Redactor *Redactor
	OnEvent  func(AuditEvent)
	Now      func() time.Time
}

// AuditLogger records security-relevant events. Sinks observe events in
// the same order.
type AuditLogger struct {
	cfg     AuditLoggerConfig
	mu      sync.Mutex
	enc     *json.Encoder
	dropped atomic.Int64
}

// NewAuditLogger builds an AuditLogger; Now defaults to time.Now.
func NewAuditLogger(cfg AuditLoggerConfig) *AuditLogger {
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	l := &AuditLogger{cfg: cfg}
	if cfg.Writer != nil {
		l.enc = json.NewEncoder(cfg.Writer)
	}
	return l
}

// Log stamps and redacts event, then hands it to the sinks. The caller's
// Metadata map is left untouched.
func (l *AuditLogger) Log(event AuditEvent) {
	event = l.scrub(event)

	l.mu.Lock()
	defer l.mu.Unlock()
	if l.cfg.OnEvent != nil {
		l.cfg.OnEvent(event)
	}
	if l.enc != nil && l.enc.Encode(event) != nil {
		l.dropped.Add(1)
	}
}

func (l *AuditLogger) scrub(event AuditEvent) AuditEvent {
	event.Timestamp = l.cfg.Now()
	r := l.cfg.Redactor
	if r == nil {
		event.Metadata = maps.Clone(event.Metadata)
		return event
	}
	event.Detail = r.Redact(event.Detail)
	if event.Metadata != nil {
		clean := make(map[string]string, len(event.Metadata))
		for k, v := range event.Metadata {
			clean[k] = r.Redact(v)
		}
		event.Metadata = clean
	}
	return event
}

// WriteErrors counts events the writer failed to accept.
func (l *AuditLogger) WriteErrors() int64 {
	return l.dropped.Load()
}
