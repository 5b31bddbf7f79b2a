package gateway

import (
	"errors"
	"net/http"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"

	"github.com/flemzord/cinechat/internal/memory"
	"github.com/flemzord/cinechat/internal/security"
)

const maxTitleLength = 200

type createSessionRequest struct {
	Title    string         `json:"title"`
	Metadata map[string]any `json:"metadata"`
}

type createSessionResponse struct {
	SessionID string    `json:"session_id"`
	Title     string    `json:"title"`
	CreatedAt time.Time `json:"created_at"`
}

type sessionResponse struct {
	SessionID string         `json:"session_id"`
	Title     string         `json:"title"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	Metadata  map[string]any `json:"metadata"`
}

type updateSessionRequest struct {
	Title    *string        `json:"title"`
	Metadata map[string]any `json:"metadata"`
}

type statusMessage struct {
	Status    string `json:"status"`
	SessionID string `json:"session_id"`
}

type clearMessagesResponse struct {
	Status    string `json:"status"`
	SessionID string `json:"session_id"`
	Deleted   int    `json:"deleted"`
}

type messageView struct {
	ID        string      `json:"id"`
	Role      memory.Role `json:"role"`
	Content   string      `json:"content"`
	CreatedAt time.Time   `json:"created_at"`
}

type messagesResponse struct {
	SessionID string        `json:"session_id"`
	Messages  []messageView `json:"messages"`
}

type sessionSummaryView struct {
	SessionID    string    `json:"session_id"`
	Title        string    `json:"title"`
	CreatedAt    time.Time `json:"created_at"`
	MessageCount int       `json:"message_count"`
}

type sessionsResponse struct {
	Sessions []sessionSummaryView `json:"sessions"`
}

func validateTitle(title string) error {
	if strings.TrimSpace(title) == "" {
		return &ValidationError{Field: "title", Message: "must not be empty"}
	}
	if utf8.RuneCountInString(title) > maxTitleLength {
		return &ValidationError{Field: "title", Message: "exceeds maximum length"}
	}
	return nil
}

// handleCreateSession creates a session with a fresh id. The body is
// optional.
func (g *Gateway) handleCreateSession() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req createSessionRequest
		if err := g.decodeJSON(r, &req, true); err != nil {
			writeError(w, r, g.logger, err)
			return
		}

		id := uuid.NewString()
		title := memory.DefaultTitle(id)
		if req.Title != "" {
			if err := validateTitle(req.Title); err != nil {
				writeError(w, r, g.logger, err)
				return
			}
			title = req.Title
		}

		sess, _, err := g.store.EnsureSession(r.Context(), memory.Session{
			ID:       id,
			Title:    title,
			Metadata: req.Metadata,
		})
		if err != nil {
			writeError(w, r, g.logger, err)
			return
		}

		g.logger.Info("session created", "request_id", middleware.GetReqID(r.Context()), "session_id", id)
		g.auditSession(r, security.EventSessionCreate, id)
		writeJSON(w, http.StatusOK, createSessionResponse{
			SessionID: sess.ID,
			Title:     sess.Title,
			CreatedAt: sess.CreatedAt,
		})
	}
}

func (g *Gateway) handleGetSession() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sess, err := g.store.GetSession(r.Context(), chi.URLParam(r, "id"))
		if err != nil {
			writeError(w, r, g.logger, err)
			return
		}
		md := sess.Metadata
		if md == nil {
			md = map[string]any{}
		}
		writeJSON(w, http.StatusOK, sessionResponse{
			SessionID: sess.ID,
			Title:     sess.Title,
			CreatedAt: sess.CreatedAt,
			UpdatedAt: sess.UpdatedAt,
			Metadata:  md,
		})
	}
}

func (g *Gateway) handleUpdateSession() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")
		var req updateSessionRequest
		if err := g.decodeJSON(r, &req, false); err != nil {
			writeError(w, r, g.logger, err)
			return
		}
		if req.Title != nil {
			if err := validateTitle(*req.Title); err != nil {
				writeError(w, r, g.logger, err)
				return
			}
		}

		if err := g.store.UpdateSession(r.Context(), id, memory.SessionUpdate{
			Title:    req.Title,
			Metadata: req.Metadata,
		}); err != nil {
			writeError(w, r, g.logger, err)
			return
		}
		writeJSON(w, http.StatusOK, statusMessage{Status: "updated", SessionID: id})
	}
}

// handleDeleteSession removes the session and its messages, then cancels
// its runs. Deleting first means a run that already passed its commit
// point fails its write instead of resurrecting the conversation.
// Deleting an absent session succeeds.
func (g *Gateway) handleDeleteSession() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")
		if err := g.store.DeleteSession(r.Context(), id); err != nil && !errors.Is(err, memory.ErrSessionNotFound) {
			writeError(w, r, g.logger, err)
			return
		}
		cancelled := g.chat.DropSession(id)

		g.logger.Info("session deleted",
			"request_id", middleware.GetReqID(r.Context()),
			"session_id", id,
			"cancelled_tasks", cancelled,
		)
		g.auditSession(r, security.EventSessionDelete, id)
		writeJSON(w, http.StatusOK, statusMessage{Status: "deleted", SessionID: id})
	}
}

func (g *Gateway) handleListMessages() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")
		if _, err := g.store.GetSession(r.Context(), id); err != nil {
			writeError(w, r, g.logger, err)
			return
		}
		msgs, err := g.store.ListMessages(r.Context(), id)
		if err != nil {
			writeError(w, r, g.logger, err)
			return
		}
		out := make([]messageView, len(msgs))
		for i, m := range msgs {
			out[i] = messageView{ID: m.ID, Role: m.Role, Content: m.Content, CreatedAt: m.CreatedAt}
		}
		writeJSON(w, http.StatusOK, messagesResponse{SessionID: id, Messages: out})
	}
}

func (g *Gateway) handleClearMessages() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")
		n, err := g.store.ClearMessages(r.Context(), id)
		if err != nil {
			writeError(w, r, g.logger, err)
			return
		}
		g.auditSession(r, security.EventSessionClear, id)
		writeJSON(w, http.StatusOK, clearMessagesResponse{Status: "cleared", SessionID: id, Deleted: n})
	}
}

func (g *Gateway) handleListSessions() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sessions, err := g.store.ListSessions(r.Context())
		if err != nil {
			writeError(w, r, g.logger, err)
			return
		}
		out := make([]sessionSummaryView, len(sessions))
		for i, s := range sessions {
			out[i] = sessionSummaryView{
				SessionID:    s.ID,
				Title:        s.Title,
				CreatedAt:    s.CreatedAt,
				MessageCount: s.MessageCount,
			}
		}
		writeJSON(w, http.StatusOK, sessionsResponse{Sessions: out})
	}
}

func (g *Gateway) auditSession(r *http.Request, typ security.EventType, sessionID string) {
	if g.audit == nil {
		return
	}
	g.audit.Log(security.AuditEvent{
		Type:      typ,
		SessionID: sessionID,
		RequestID: middleware.GetReqID(r.Context()),
		RemoteIP:  r.RemoteAddr,
	})
}
