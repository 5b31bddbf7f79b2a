package memory

import (
	"cmp"
	"context"
	"maps"
	"slices"
	"sync"
)

// InMemoryStore is a thread-safe, in-memory implementation of Store. It
// backs tests and the mcp command, where nothing needs to survive a restart.
type InMemoryStore struct {
	mu       sync.RWMutex
	clock    *Clock
	sessions map[string]*Session
	messages map[string][]Message
}

// NewInMemoryStore creates a new empty store.
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{
		clock:    NewClock(),
		sessions: make(map[string]*Session),
		messages: make(map[string][]Message),
	}
}

// Compile-time interface check.
var _ Store = (*InMemoryStore)(nil)

// EnsureSession implements Store.
func (s *InMemoryStore) EnsureSession(_ context.Context, sess Session) (Session, bool, error) {
	if sess.ID == "" {
		return Session{}, false, ErrEmptySessionID
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if existing, ok := s.sessions[sess.ID]; ok {
		return cloneSession(*existing), false, nil
	}
	now := s.clock.Now()
	sess.CreatedAt, sess.UpdatedAt = now, now
	if sess.Metadata == nil {
		sess.Metadata = map[string]any{}
	}
	stored := cloneSession(sess)
	s.sessions[sess.ID] = &stored
	return cloneSession(stored), true, nil
}

// GetSession implements Store.
func (s *InMemoryStore) GetSession(_ context.Context, id string) (Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sess, ok := s.sessions[id]
	if !ok {
		return Session{}, ErrSessionNotFound
	}
	return cloneSession(*sess), nil
}

// ListSessions implements Store.
func (s *InMemoryStore) ListSessions(_ context.Context) ([]SessionSummary, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]SessionSummary, 0, len(s.sessions))
	for _, sess := range s.sessions {
		out = append(out, SessionSummary{
			Session:      cloneSession(*sess),
			MessageCount: len(s.messages[sess.ID]),
		})
	}
	slices.SortFunc(out, func(a, b SessionSummary) int {
		return b.CreatedAt.Compare(a.CreatedAt)
	})
	return out, nil
}

// UpdateSession implements Store.
func (s *InMemoryStore) UpdateSession(_ context.Context, id string, upd SessionUpdate) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[id]
	if !ok {
		return ErrSessionNotFound
	}
	if upd.Title != nil {
		sess.Title = *upd.Title
	}
	if upd.Metadata != nil {
		sess.Metadata = maps.Clone(upd.Metadata)
	}
	sess.UpdatedAt = s.clock.Now()
	return nil
}

// DeleteSession implements Store.
func (s *InMemoryStore) DeleteSession(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.sessions[id]; !ok {
		return ErrSessionNotFound
	}
	delete(s.sessions, id)
	delete(s.messages, id)
	return nil
}

// AppendMessage implements Store.
func (s *InMemoryStore) AppendMessage(_ context.Context, msg Message) (Message, error) {
	msg, err := PrepareMessage(msg, NewID, s.clock.Now)
	if err != nil {
		return Message{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[msg.SessionID]
	if !ok {
		return Message{}, ErrSessionNotFound
	}
	s.messages[msg.SessionID] = append(s.messages[msg.SessionID], msg)
	sess.UpdatedAt = s.clock.Now()
	return msg, nil
}

// ListMessages implements Store.
func (s *InMemoryStore) ListMessages(_ context.Context, sessionID string) ([]Message, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := slices.Clone(s.messages[sessionID])
	// Stable sort keeps insertion order for equal timestamps.
	slices.SortStableFunc(out, func(a, b Message) int {
		return cmp.Compare(a.CreatedAt.UnixNano(), b.CreatedAt.UnixNano())
	})
	return out, nil
}

// ClearMessages implements Store.
func (s *InMemoryStore) ClearMessages(_ context.Context, sessionID string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.sessions[sessionID]; !ok {
		return 0, ErrSessionNotFound
	}
	n := len(s.messages[sessionID])
	delete(s.messages, sessionID)
	return n, nil
}

// Ping implements Store.
func (s *InMemoryStore) Ping(_ context.Context) error {
	return nil
}

func cloneSession(s Session) Session {
	s.Metadata = maps.Clone(s.Metadata)
	return s
}
