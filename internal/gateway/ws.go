package gateway

import (
	"context"
	"errors"
	"net/http"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/go-chi/chi/v5/middleware"
)

// handleChatWS serves chat turns over a WebSocket. Each text frame from
// the client is a ChatRequest; the server answers with content frames and
// a final done or error frame. Turns on one connection run one at a time.
// Closing the socket never cancels a run.
func (g *Gateway) handleChatWS() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
			OriginPatterns: g.config.originPatterns(),
		})
		if err != nil {
			g.logger.Warn("websocket accept failed", "request_id", middleware.GetReqID(r.Context()), "error", err)
			return
		}
		defer func() {
			_ = conn.Close(websocket.StatusInternalError, "unexpected close")
		}()

		ctx := r.Context()
		for {
			var req ChatRequest
			// A malformed frame closes the connection inside wsjson.Read.
			if err := wsjson.Read(ctx, conn, &req); err != nil {
				if websocket.CloseStatus(err) == websocket.StatusNormalClosure || errors.Is(err, context.Canceled) {
					_ = conn.Close(websocket.StatusNormalClosure, "")
					return
				}
				g.logger.Debug("websocket read ended", "error", err)
				return
			}

			send := func(ev chatEvent) error { return wsjson.Write(ctx, conn, ev) }

			task, err := g.submit(r, req)
			if err != nil {
				_, code, msg := classify(err)
				if werr := send(chatEvent{SessionID: req.SessionID, Done: true, Error: msg, ErrorCode: code}); werr != nil {
					return
				}
				continue
			}
			if err := g.relay(ctx, task, send); err != nil {
				g.logger.Info("websocket closed during a turn",
					"session_id", task.SessionID(),
					"task_id", task.ID(),
					"error", err,
				)
				return
			}
		}
	}
}
