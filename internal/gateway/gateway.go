// Package gateway exposes the chat service over HTTP: session management,
// chat turns as JSON, server-sent events or WebSocket frames, task status
// and cancellation, health and Prometheus metrics.
package gateway

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/flemzord/cinechat/internal/core"
	"github.com/flemzord/cinechat/internal/memory"
	"github.com/flemzord/cinechat/internal/orchestrator"
	"github.com/flemzord/cinechat/internal/security"
	"github.com/flemzord/cinechat/internal/tool"
)

func init() {
	core.RegisterModule(&Gateway{})
}

// Gateway serves the HTTP API. Its collaborators come from the service
// registry when it starts, so it loads after every other module.
type Gateway struct {
	config  Config
	appCtx  *core.AppContext
	logger  *slog.Logger
	metrics *Metrics
	version string

	server   *http.Server
	listener net.Listener
	started  time.Time

	store       memory.Store
	chat        *orchestrator.Orchestrator
	tools       *tool.Registry
	checks      []core.NamedCheck
	audit       *security.AuditLogger
	rateLimiter *security.RateLimiter
}

func (g *Gateway) ModuleInfo() core.ModuleInfo {
	return core.ModuleInfo{
		ID:  "gateway.http",
		New: func() core.Module { return &Gateway{} },
	}
}

func (g *Gateway) Configure(node *yaml.Node) error {
	return node.Decode(&g.config)
}

// Provision applies defaults and hands the bearer token to the credential
// store so it is redacted from logs.
func (g *Gateway) Provision(ctx *core.AppContext) error {
	g.config.defaults()
	g.appCtx = ctx
	g.logger = ctx.Logger
	g.metrics = NewMetrics()
	g.version = "dev"
	if v, _ := core.ServiceAs[string](ctx, core.ServiceVersion); v != "" {
		g.version = v
	}
	if creds, ok := core.ServiceAs[*security.CredentialStore](ctx, core.ServiceCredentials); ok {
		creds.Set(security.CredentialGatewayToken, g.config.Auth.BearerToken)
	}
	return nil
}

// MessageMaxLength is the longest chat message accepted, in characters.
func (g *Gateway) MessageMaxLength() int { return g.config.MessageMaxLength }

func (g *Gateway) Validate() error {
	return g.config.validate()
}

// resolve binds the services the handlers use. The store and the
// orchestrator are required; the rest degrade to disabled features.
func (g *Gateway) resolve() error {
	var ok bool
	if g.store, ok = core.ServiceAs[memory.Store](g.appCtx, core.ServiceMemoryStore); !ok {
		return errors.New("gateway: no memory store registered")
	}
	if g.chat, ok = core.ServiceAs[*orchestrator.Orchestrator](g.appCtx, core.ServiceOrchestrator); !ok {
		return errors.New("gateway: no orchestrator registered")
	}
	g.checks = core.HealthChecks(g.appCtx)
	g.tools, _ = core.ServiceAs[*tool.Registry](g.appCtx, core.ServiceToolRegistry)
	g.audit, _ = core.ServiceAs[*security.AuditLogger](g.appCtx, core.ServiceAuditLogger)
	g.rateLimiter, _ = core.ServiceAs[*security.RateLimiter](g.appCtx, core.ServiceRateLimiter)
	return nil
}

// Start listens on the configured address and serves in the background.
func (g *Gateway) Start() error {
	if err := g.resolve(); err != nil {
		return err
	}

	var lc net.ListenConfig
	ln, err := lc.Listen(context.Background(), "tcp", g.config.Bind)
	if err != nil {
		return fmt.Errorf("gateway: listen on %s: %w", g.config.Bind, err)
	}
	g.listener = ln
	g.started = time.Now()
	g.server = &http.Server{
		Handler:           g.buildRouter(),
		ReadHeaderTimeout: g.config.ReadTimeout,
		ReadTimeout:       g.config.ReadTimeout,
		WriteTimeout:      g.config.WriteTimeout,
		ErrorLog:          slog.NewLogLogger(g.logger.Handler(), slog.LevelWarn),
	}

	g.logger.Info("gateway listening", "addr", ln.Addr().String())
	go func() {
		if err := g.server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			g.logger.Error("gateway serve error", "error", err)
		}
	}()
	return nil
}

// Addr is the address the gateway listens on, nil before Start.
func (g *Gateway) Addr() net.Addr {
	if g.listener == nil {
		return nil
	}
	return g.listener.Addr()
}

// Stop drains connections for up to ShutdownTimeout, then closes the
// rest. Open streams end once the orchestrator cancels their runs.
func (g *Gateway) Stop(ctx context.Context) error {
	if g.server == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(ctx, g.config.ShutdownTimeout)
	defer cancel()

	g.logger.Info("gateway shutting down")
	err := g.server.Shutdown(ctx)
	if errors.Is(err, context.DeadlineExceeded) {
		g.logger.Warn("gateway drain timed out, closing connections")
		return g.server.Close()
	}
	return err
}
