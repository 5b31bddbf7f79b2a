package gateway

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/flemzord/cinechat/internal/provider"
)

var errNoTools = errors.New("gateway: no tool registry")

type toolsResponse struct {
	Tools []provider.ToolDefinition `json:"tools"`
}

type toolCallResponse struct {
	Tool   string          `json:"tool"`
	Result json.RawMessage `json:"result"`
}

// handleListTools lists the content lookups offered to the model.
func (g *Gateway) handleListTools() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		defs := []provider.ToolDefinition{}
		if g.tools != nil {
			defs = g.tools.Definitions()
		}
		writeJSON(w, http.StatusOK, toolsResponse{Tools: defs})
	}
}

// handleCallTool runs one content lookup directly, outside any chat turn.
// Upstream failures map like chat failures: a missing item is a 404 and
// an unavailable API a 503.
func (g *Gateway) handleCallTool() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if g.tools == nil {
			writeError(w, r, g.logger, errNoTools)
			return
		}
		var args json.RawMessage
		if err := g.decodeJSON(r, &args, true); err != nil {
			writeError(w, r, g.logger, err)
			return
		}
		if len(args) == 0 {
			args = json.RawMessage(`{}`)
		}

		name := chi.URLParam(r, "name")
		out, err := g.tools.Execute(r.Context(), name, args)
		if err != nil {
			writeError(w, r, g.logger, err)
			return
		}
		if out.IsError {
			writeError(w, r, g.logger, &ValidationError{Message: out.Content})
			return
		}

		result := json.RawMessage(out.Content)
		if !json.Valid(result) {
			result, _ = json.Marshal(out.Content)
		}
		writeJSON(w, http.StatusOK, toolCallResponse{Tool: name, Result: result})
	}
}
