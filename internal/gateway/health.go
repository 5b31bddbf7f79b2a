package gateway

import (
	"context"
	"net/http"
	"sort"
	"time"

	"golang.org/x/sync/errgroup"
)

// Component statuses reported by /health.
const (
	StatusOperational = "operational"
	StatusUnavailable = "unavailable"
)

// HealthResponse is the JSON response for GET /health.
type HealthResponse struct {
	Status     string                     `json:"status"` // "healthy" or "degraded"
	Components map[string]ComponentHealth `json:"components"`
}

// ComponentHealth is the probe result of one dependency.
type ComponentHealth struct {
	Status    string `json:"status"`
	LatencyMS int64  `json:"latency_ms"`
	Error     string `json:"error,omitempty"`
}

// handleHealth probes every registered dependency in parallel, each under
// its own timeout. Returns 200 if all are operational, 503 otherwise.
func (g *Gateway) handleHealth() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		results := make([]ComponentHealth, len(g.checks))

		var eg errgroup.Group
		for i, c := range g.checks {
			eg.Go(func() error {
				ctx, cancel := context.WithTimeout(r.Context(), g.config.HealthTimeout)
				defer cancel()

				start := time.Now()
				err := c.Check(ctx)
				res := ComponentHealth{
					Status:    StatusOperational,
					LatencyMS: time.Since(start).Milliseconds(),
				}
				if err != nil {
					res.Status = StatusUnavailable
					res.Error = err.Error()
				}
				results[i] = res
				return nil
			})
		}
		_ = eg.Wait()

		resp := HealthResponse{
			Status:     "healthy",
			Components: make(map[string]ComponentHealth, len(results)+1),
		}
		resp.Components["api"] = ComponentHealth{Status: StatusOperational}
		for i, c := range g.checks {
			resp.Components[c.Name] = results[i]
			if results[i].Status != StatusOperational {
				resp.Status = "degraded"
			}
		}

		code := http.StatusOK
		if resp.Status != "healthy" {
			code = http.StatusServiceUnavailable
			g.logger.Warn("health degraded", "failing", failing(resp.Components))
		}
		writeJSON(w, code, resp)
	}
}

func failing(components map[string]ComponentHealth) []string {
	var out []string
	for name, c := range components {
		if c.Status != StatusOperational {
			out = append(out, name)
		}
	}
	sort.Strings(out)
	return out
}
