// Package memory defines the durable record of chat sessions and their
// messages, and rebuilds the conversation an agent run sees from it.
package memory

import (
	"context"
	"errors"
	"time"
)

// Role is the author of a persisted message.
type Role string

// Persisted roles. Tool traffic is never stored.
const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Valid reports whether r is one of the persisted roles.
func (r Role) Valid() bool {
	return r == RoleUser || r == RoleAssistant
}

// Errors returned by Store implementations.
var (
	ErrSessionNotFound = errors.New("memory: session not found")
	ErrInvalidRole     = errors.New("memory: invalid message role")
	ErrEmptySessionID  = errors.New("memory: empty session id")
)

// Session is a persisted conversation identity.
type Session struct {
	ID        string         `json:"session_id"`
	Title     string         `json:"title"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	Metadata  map[string]any `json:"metadata"`
}

// SessionSummary is a Session as listed, with its message count.
type SessionSummary struct {
	Session
	MessageCount int `json:"message_count"`
}

// SessionUpdate carries the mutable fields of a session. Nil fields are
// left untouched.
type SessionUpdate struct {
	Title    *string
	Metadata map[string]any
}

// Message is one immutable turn of a conversation.
type Message struct {
	ID        string    `json:"id"`
	SessionID string    `json:"session_id"`
	Role      Role      `json:"role"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"created_at"`
}

// Store is the durable record of sessions and messages. Messages of a
// session are returned in ascending creation order, ties broken by
// insertion order. Implementations must be safe for concurrent use and
// rely on the engine's row-level atomicity rather than application locks.
type Store interface {
	// EnsureSession creates s if no session with s.ID exists. Concurrent
	// callers never produce duplicate rows; losing the race is not an
	// error. It returns the stored session and whether this call created it.
	EnsureSession(ctx context.Context, s Session) (Session, bool, error)

	// GetSession returns ErrSessionNotFound when the session is absent.
	GetSession(ctx context.Context, id string) (Session, error)

	// ListSessions returns every session, newest first.
	ListSessions(ctx context.Context) ([]SessionSummary, error)

	// UpdateSession applies upd and bumps UpdatedAt.
	UpdateSession(ctx context.Context, id string, upd SessionUpdate) error

	// DeleteSession removes the session and all of its messages.
	DeleteSession(ctx context.Context, id string) error

	// AppendMessage assigns ID and CreatedAt when zero and stores msg.
	// It fails with ErrSessionNotFound when the session does not exist at
	// write time, so a message can never outlive its session.
	AppendMessage(ctx context.Context, msg Message) (Message, error)

	// ListMessages returns the messages of a session in conversation order.
	ListMessages(ctx context.Context, sessionID string) ([]Message, error)

	// ClearMessages deletes the messages of a session, keeping the session.
	ClearMessages(ctx context.Context, sessionID string) (int, error)

	// Ping checks that the backing storage is reachable.
	Ping(ctx context.Context) error
}

// PrepareMessage validates msg and fills its ID and CreatedAt from the
// given generators when they are zero.
func PrepareMessage(msg Message, newID func() string, now func() time.Time) (Message, error) {
	if msg.SessionID == "" {
		return Message{}, ErrEmptySessionID
	}
	if !msg.Role.Valid() {
		return Message{}, ErrInvalidRole
	}
	if msg.ID == "" {
		msg.ID = newID()
	}
	if msg.CreatedAt.IsZero() {
		msg.CreatedAt = now()
	}
	return msg, nil
}
