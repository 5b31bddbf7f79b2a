package app

import (
	"context"
	"fmt"
	"time"

	"github.com/flemzord/cinechat/internal/agent"
	"github.com/flemzord/cinechat/internal/config"
	"github.com/flemzord/cinechat/internal/core"
	"github.com/flemzord/cinechat/internal/cron"
	"github.com/flemzord/cinechat/internal/memory"
	"github.com/flemzord/cinechat/internal/orchestrator"
	"github.com/flemzord/cinechat/internal/provider"
	"github.com/flemzord/cinechat/internal/tool"
)

const shutdownGrace = 5 * time.Second

// orchestratorModule puts the orchestrator in the App lifecycle. It is
// appended after the loaded modules, so it stops first: running turns are
// cancelled before the gateway drains its connections.
type orchestratorModule struct {
	orch *orchestrator.Orchestrator
}

func (m *orchestratorModule) ModuleInfo() core.ModuleInfo {
	return core.ModuleInfo{ID: "orchestrator"}
}

func (m *orchestratorModule) Start() error { return nil }

func (m *orchestratorModule) Stop(ctx context.Context) error {
	return m.orch.Shutdown(ctx)
}

// schedulerModule runs the background jobs with the App lifecycle.
type schedulerModule struct {
	scheduler *cron.Scheduler
}

func (m *schedulerModule) ModuleInfo() core.ModuleInfo {
	return core.ModuleInfo{ID: "cron"}
}

func (m *schedulerModule) Start() error { return m.scheduler.Start() }

func (m *schedulerModule) Stop(ctx context.Context) error { return m.scheduler.Stop(ctx) }

// wireOrchestrator discovers the provider, the memory store and the content
// tools published by the loaded modules, builds the orchestrator and the
// scheduled jobs, and appends both to the app lifecycle.
// Must be called after LoadModules and before Start.
func wireOrchestrator(app *core.App, cfg *config.Config, rt *Runtime, ids []string) error {
	appCtx := rt.AppCtx
	logger := rt.Logger

	store, ok := core.ServiceAs[memory.Store](appCtx, core.ServiceMemoryStore)
	if !ok {
		return fmt.Errorf("app: no memory store module loaded")
	}
	model, err := discoverProvider(app, ids)
	if err != nil {
		return err
	}

	tools := tool.NewRegistry(tool.WithAudit(rt.Audit), tool.WithRateLimiter(rt.RateLimiter))
	if err := tools.RegisterAll(core.ListAs[tool.Tool](appCtx, core.ServiceContentTools)...); err != nil {
		return fmt.Errorf("app: registering content tools: %w", err)
	}
	appCtx.RegisterService(core.ServiceToolRegistry, tools)
	logger.Info("content tools registered", "tools", tools.Names())

	orch := orchestrator.New(orchestrator.Deps{
		Store:    store,
		Provider: model,
		Tools:    tools,
		Logger:   logger.With("component", "orchestrator"),
		Audit:    rt.Audit,
	}, orchestrator.Config{
		Loop: agent.LoopConfig{
			MaxIterations:   cfg.Agent.MaxIterations,
			Timeout:         cfg.Agent.RunTimeout,
			Model:           cfg.Agent.Model,
			MaxOutputTokens: cfg.Agent.MaxOutputTokens,
			Temperature:     cfg.Agent.Temperature,
			ToolChoice:      cfg.Agent.ToolChoice,
		},
		SystemPrompt:     cfg.Agent.SystemPrompt,
		MaxMessageLength: messageLimit(app, ids),
		MemoryTokenLimit: cfg.Agent.MemoryTokenLimit,
		SerializeTurns:   cfg.Agent.SerializeTurns,
		MaxActiveTasks:   rt.RateLimiter.MaxActiveTasks(),
		MaxParallelTools: cfg.Agent.MaxParallelTools,
	})
	appCtx.RegisterService(core.ServiceOrchestrator, orch)
	app.AppendModule("orchestrator", &orchestratorModule{orch: orch})

	scheduler := cron.NewScheduler(logger.With("component", "cron"))
	if cfg.Agent.MaxRunAge > 0 {
		if err := scheduler.RegisterJob(&cron.StaleRunJob{
			Runs:   orch,
			MaxAge: cfg.Agent.MaxRunAge,
			Logger: logger,
		}); err != nil {
			return err
		}
	}
	if err := scheduler.RegisterJob(&cron.HealthProbeJob{
		Checks: core.HealthChecks(appCtx),
		Logger: logger,
	}); err != nil {
		return err
	}
	app.AppendModule("cron", &schedulerModule{scheduler: scheduler})

	logger.Info("orchestrator wired",
		"model", cfg.Agent.Model,
		"serialize_turns", cfg.Agent.SerializeTurns,
		"max_run_age", cfg.Agent.MaxRunAge,
	)
	return nil
}

// messageLimit returns the chat message limit of the loaded transport so
// the orchestrator accepts whatever the transport accepted. Zero keeps the
// orchestrator default.
func messageLimit(app *core.App, ids []string) int {
	for _, id := range ids {
		mod, ok := app.Module(id)
		if !ok {
			continue
		}
		if l, ok := mod.(interface{ MessageMaxLength() int }); ok {
			return l.MessageMaxLength()
		}
	}
	return 0
}

// discoverProvider returns the first loaded module that implements
// provider.Provider, in module ID order.
func discoverProvider(app *core.App, ids []string) (provider.Provider, error) {
	for _, id := range ids {
		mod, ok := app.Module(id)
		if !ok {
			continue
		}
		if p, ok := mod.(provider.Provider); ok {
			return p, nil
		}
	}
	return nil, fmt.Errorf("app: at least one provider module is required")
}
