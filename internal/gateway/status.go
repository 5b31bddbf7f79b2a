package gateway

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/flemzord/cinechat/internal/orchestrator"
)

// StatusResponse is the JSON response for GET /session/{id}/status.
type StatusResponse struct {
	SessionID string     `json:"session_id"`
	Pending   bool       `json:"pending"`
	TaskCount int        `json:"task_count"`
	Tasks     []taskView `json:"tasks"`
}

type taskView struct {
	TaskID    string                 `json:"task_id"`
	RequestID string                 `json:"request_id,omitempty"`
	State     orchestrator.TaskState `json:"state"`
	StartedAt time.Time              `json:"started_at"`
}

type cancelResponse struct {
	SessionID string `json:"session_id"`
	Cancelled int    `json:"cancelled"`
}

// handleStatus reports the runs still registered for a session. A run
// that ended without a new assistant message failed or was cancelled.
func (g *Gateway) handleStatus() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")
		tasks := g.chat.ActiveTasks(id)

		resp := StatusResponse{
			SessionID: id,
			Pending:   len(tasks) > 0,
			TaskCount: len(tasks),
			Tasks:     make([]taskView, len(tasks)),
		}
		for i, t := range tasks {
			resp.Tasks[i] = taskView{
				TaskID:    t.ID(),
				RequestID: t.RequestID(),
				State:     t.State(),
				StartedAt: t.StartedAt(),
			}
		}
		writeJSON(w, http.StatusOK, resp)
	}
}

// handleCancel cancels every run of a session.
func (g *Gateway) handleCancel() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")
		n := g.chat.CancelAll(id)
		g.logger.Info("cancel requested",
			"request_id", middleware.GetReqID(r.Context()),
			"session_id", id,
			"cancelled", n,
		)
		writeJSON(w, http.StatusOK, cancelResponse{SessionID: id, Cancelled: n})
	}
}

// RootResponse is the JSON response for GET /.
type RootResponse struct {
	Name      string   `json:"name"`
	Version   string   `json:"version"`
	Status    string   `json:"status"`
	Uptime    int64    `json:"uptime_seconds"`
	Endpoints []string `json:"endpoints"`
}

func (g *Gateway) handleRoot() http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		var uptime int64
		if !g.started.IsZero() {
			uptime = int64(time.Since(g.started).Seconds())
		}
		writeJSON(w, http.StatusOK, RootResponse{
			Name:    "cinechat",
			Version: g.version,
			Status:  "operational",
			Uptime:  uptime,
			Endpoints: []string{
				"POST /chat",
				"GET /chat/ws",
				"POST /session/new",
				"GET|PATCH|DELETE /session/{id}",
				"GET|DELETE /session/{id}/messages",
				"GET /session/{id}/status",
				"POST /session/{id}/cancel",
				"GET /sessions",
				"GET /tools",
				"POST /tools/{name}",
				"GET /health",
				"GET /metrics",
			},
		})
	}
}
