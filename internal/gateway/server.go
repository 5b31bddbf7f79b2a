package gateway

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

// buildRouter constructs the chi mux with all routes wired.
func (g *Gateway) buildRouter() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(requestIDHeader)
	r.Use(middleware.RealIP)
	r.Use(accessLog(g.logger))
	r.Use(g.metrics.Middleware)
	r.Use(g.recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   g.config.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"*"},
		ExposedHeaders:   []string{"X-Request-ID"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	// Public: no auth required.
	r.Get("/", g.handleRoot())
	r.Get("/health", g.handleHealth())
	r.Method(http.MethodGet, "/metrics", g.metrics.Handler())

	r.Group(func(r chi.Router) {
		if g.config.Auth.IsConfigured() {
			r.Use(authMiddleware(g.config.Auth, g.audit))
		}
		g.mountAPI(r)
		// Versioned alias for existing clients.
		r.Route("/api/v1", g.mountAPI)
	})

	return r
}

// mountAPI registers the chat and session routes on r.
func (g *Gateway) mountAPI(r chi.Router) {
	r.Post("/chat", g.handleChat())
	r.Get("/chat/ws", g.handleChatWS())

	r.Post("/session/new", g.handleCreateSession())
	r.Route("/session/{id}", func(r chi.Router) {
		r.Get("/", g.handleGetSession())
		r.Patch("/", g.handleUpdateSession())
		r.Delete("/", g.handleDeleteSession())
		r.Get("/messages", g.handleListMessages())
		r.Delete("/messages", g.handleClearMessages())
		r.Get("/status", g.handleStatus())
		r.Post("/cancel", g.handleCancel())
	})
	r.Get("/sessions", g.handleListSessions())

	r.Get("/tools", g.handleListTools())
	r.Post("/tools/{name}", g.handleCallTool())
}

// recoverer turns a handler panic into a structured 500 instead of a
// dropped connection.
func (g *Gateway) recoverer(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			rec := recover()
			if rec == nil {
				return
			}
			if rec == http.ErrAbortHandler {
				panic(rec)
			}
			g.logger.Error("handler panic",
				"request_id", middleware.GetReqID(r.Context()),
				"path", r.URL.Path,
				"panic", rec,
			)
			writeError(w, r, nil, errPanic)
		}()
		next.ServeHTTP(w, r)
	})
}
