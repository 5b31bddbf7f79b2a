package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"
	"unicode/utf8"

	"github.com/go-chi/chi/v5/middleware"

	"github.com/flemzord/cinechat/internal/orchestrator"
	"github.com/flemzord/cinechat/internal/security"
)

// ChatRequest is the body of POST /chat and of each WebSocket turn.
type ChatRequest struct {
	SessionID string `json:"session_id"`
	Message   string `json:"message"`
	Model     string `json:"model,omitempty"`
	Stream    bool   `json:"stream,omitempty"`
}

// ChatResponse is the non-streaming reply.
type ChatResponse struct {
	Content   string    `json:"content"`
	SessionID string    `json:"session_id"`
	Timestamp time.Time `json:"timestamp"`
}

// chatEvent is one SSE event or WebSocket frame.
type chatEvent struct {
	Content   string `json:"content,omitempty"`
	SessionID string `json:"session_id"`
	Done      bool   `json:"done,omitempty"`
	Error     string `json:"error,omitempty"`
	ErrorCode string `json:"error_code,omitempty"`
}

// submit validates a chat turn, charges the message rate limit and hands
// the turn to the orchestrator. The run it starts outlives r.
func (g *Gateway) submit(r *http.Request, req ChatRequest) (*orchestrator.Task, error) {
	if req.SessionID == "" {
		return nil, &ValidationError{Field: "session_id", Message: "must not be empty"}
	}
	if utf8.RuneCountInString(req.Message) > g.config.MessageMaxLength {
		return nil, &ValidationError{Field: "message", Message: fmt.Sprintf("exceeds %d characters", g.config.MessageMaxLength)}
	}
	if g.rateLimiter != nil {
		if err := g.rateLimiter.Allow(security.BucketMessage); err != nil {
			if g.audit != nil {
				g.audit.Log(security.AuditEvent{
					Type:      security.EventRateLimit,
					SessionID: req.SessionID,
					RequestID: middleware.GetReqID(r.Context()),
					RemoteIP:  r.RemoteAddr,
					Detail:    security.BucketMessage,
				})
			}
			return nil, err
		}
	}
	return g.chat.Submit(r.Context(), orchestrator.SubmitRequest{
		SessionID: req.SessionID,
		Message:   req.Message,
		Model:     req.Model,
		RequestID: middleware.GetReqID(r.Context()),
	})
}

// handleChat runs one chat turn. The reply is a JSON body, or an SSE
// stream when the request asks for one. Leaving early never cancels the
// run: its reply is still stored.
func (g *Gateway) handleChat() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req ChatRequest
		if err := g.decodeJSON(r, &req, false); err != nil {
			writeError(w, r, g.logger, err)
			return
		}

		task, err := g.submit(r, req)
		if err != nil {
			writeError(w, r, g.logger, err)
			return
		}

		if req.Stream {
			g.streamSSE(w, r, task)
			return
		}

		content, err := g.chat.Await(r.Context(), task)
		if err != nil {
			if r.Context().Err() != nil {
				g.logger.Info("client left before the reply",
					"request_id", middleware.GetReqID(r.Context()),
					"session_id", task.SessionID(),
					"task_id", task.ID(),
				)
				return
			}
			writeError(w, r, g.logger, err)
			return
		}
		writeJSON(w, http.StatusOK, ChatResponse{
			Content:   content,
			SessionID: task.SessionID(),
			Timestamp: time.Now().UTC(),
		})
	}
}

// streamSSE forwards the run's deltas as server-sent events and closes
// with a done event, or with an error event when the run failed.
func (g *Gateway) streamSSE(w http.ResponseWriter, r *http.Request, task *orchestrator.Task) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, r, g.logger, errors.New("gateway: response writer cannot stream"))
		return
	}

	h := w.Header()
	h.Set("Content-Type", "text/event-stream")
	h.Set("Cache-Control", "no-cache")
	h.Set("Connection", "keep-alive")
	h.Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	send := func(ev chatEvent) error {
		data, err := json.Marshal(ev)
		if err != nil {
			return err
		}
		if _, err := fmt.Fprintf(w, "data: %s\n\n", data); err != nil {
			return err
		}
		flusher.Flush()
		return nil
	}

	if err := g.relay(r.Context(), task, send); err != nil {
		g.logger.Info("stream closed early",
			"request_id", middleware.GetReqID(r.Context()),
			"session_id", task.SessionID(),
			"task_id", task.ID(),
			"error", err,
		)
	}
}

// relay pushes the deltas of task through send, re-chunked when
// configured, and then the terminal event. It returns early, leaving the
// run alone, when ctx ends or send fails.
func (g *Gateway) relay(ctx context.Context, task *orchestrator.Task, send func(chatEvent) error) error {
	sessionID := task.SessionID()
	chunker := newWordChunker(g.config.StreamChunkWords)

	for delta := range task.Deltas(ctx) {
		for _, piece := range chunker.push(delta) {
			if err := send(chatEvent{Content: piece, SessionID: sessionID}); err != nil {
				return err
			}
		}
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	_, runErr := task.Wait(ctx)
	if runErr != nil {
		if err := ctx.Err(); err != nil {
			return err
		}
		_, code, msg := classify(runErr)
		g.logger.Warn("streamed run failed",
			"session_id", sessionID,
			"task_id", task.ID(),
			"request_id", task.RequestID(),
			"error", runErr,
		)
		return send(chatEvent{SessionID: sessionID, Done: true, Error: msg, ErrorCode: code})
	}
	if rest := chunker.flush(); rest != "" {
		if err := send(chatEvent{Content: rest, SessionID: sessionID}); err != nil {
			return err
		}
	}
	return send(chatEvent{SessionID: sessionID, Done: true})
}
