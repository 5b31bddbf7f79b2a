package memory

import (
	"context"
	"fmt"

	"github.com/flemzord/cinechat/internal/provider"
)

// DefaultTitle is the title given to sessions created implicitly.
func DefaultTitle(sessionID string) string {
	short := sessionID
	if len(short) > 8 {
		short = short[:8]
	}
	return "Cinematic Discussion " + short
}

// Hydrator rebuilds conversation memory from a Store. It keeps no state
// between calls: every Hydrate reads the store again, so concurrent
// writers and other processes are always observed.
type Hydrator struct {
	store Store
}

// NewHydrator returns a Hydrator reading from store.
func NewHydrator(store Store) *Hydrator {
	return &Hydrator{store: store}
}

// Hydrate makes sure the session exists and returns its persisted
// messages as agent conversation turns, oldest first. The result has one
// entry per stored message.
func (h *Hydrator) Hydrate(ctx context.Context, sessionID string) ([]provider.LLMMessage, error) {
	if sessionID == "" {
		return nil, ErrEmptySessionID
	}
	if _, _, err := h.store.EnsureSession(ctx, Session{ID: sessionID, Title: DefaultTitle(sessionID)}); err != nil {
		return nil, fmt.Errorf("hydrate %s: %w", sessionID, err)
	}
	msgs, err := h.store.ListMessages(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("hydrate %s: %w", sessionID, err)
	}
	return Project(msgs), nil
}

// Project maps persisted messages onto provider turns in the same order.
func Project(msgs []Message) []provider.LLMMessage {
	out := make([]provider.LLMMessage, len(msgs))
	for i, m := range msgs {
		role := provider.MessageRoleUser
		if m.Role == RoleAssistant {
			role = provider.MessageRoleAssistant
		}
		out[i] = provider.LLMMessage{Role: role, Content: m.Content}
	}
	return out
}
