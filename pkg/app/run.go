// Package app provides the entry point shared by the cinechat commands:
// configuration loading, module wiring and the signal loop.
package app

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/flemzord/cinechat/internal/config"
	"github.com/flemzord/cinechat/internal/core"
	"github.com/flemzord/cinechat/internal/security"
	"github.com/flemzord/cinechat/internal/telemetry"
)

// RunParams configures the main application loop.
type RunParams struct {
	// ConfigPath is an explicit path to the YAML configuration file.
	// If empty, ResolveConfigPath is called automatically.
	ConfigPath string

	// Version, Commit, and Date are injected at build time via ldflags.
	Version string
	Commit  string
	Date    string

	// DataDir overrides the default persistent data directory.
	DataDir string

	// LogLevel overrides log.level from the configuration when non-nil.
	LogLevel *slog.Level

	// LogOutput receives log lines. Defaults to os.Stderr.
	LogOutput io.Writer

	// Stop, when non-nil, ends Run like a shutdown signal. The OS service
	// wrapper uses it.
	Stop <-chan struct{}
}

// Run loads configuration, starts all modules, and blocks until a shutdown
// signal is received.
func Run(params RunParams) error {
	cfgPath := params.ConfigPath
	if cfgPath == "" {
		resolved, err := ResolveConfigPath()
		if err != nil {
			return err
		}
		cfgPath = resolved
	}

	cfg, err := config.Load(cfgPath)
	if err != nil {
		return err
	}
	if err := config.Validate(cfg); err != nil {
		return err
	}

	application, rt, err := Build(cfg, params)
	if err != nil {
		return err
	}
	logger := rt.Logger

	shutdownTracing, err := telemetry.Setup(context.Background(), cfg.Telemetry, params.Version)
	if err != nil {
		return err
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
		defer cancel()
		if err := shutdownTracing(ctx); err != nil {
			logger.Warn("telemetry shutdown failed", "error", err)
		}
	}()

	if err := application.Start(); err != nil {
		return err
	}

	logger.Info("cinechat started",
		"version", params.Version,
		"config", cfgPath,
		"data_dir", rt.DataDir,
	)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	select {
	case sig := <-sigCh:
		logger.Info("shutdown signal received", "signal", sig.String())
	case <-params.Stop:
		logger.Info("shutdown requested")
	}
	application.Stop()
	logger.Info("shutdown complete")
	return nil
}

// Runtime holds the shared resources created by Build.
type Runtime struct {
	Logger      *slog.Logger
	Redactor    *security.Redactor
	Credentials *security.CredentialStore
	Audit       *security.AuditLogger
	RateLimiter *security.RateLimiter
	AppCtx      *core.AppContext
	DataDir     string
}

// Build creates the logger and security services, loads the configured
// modules and wires the orchestrator and the scheduled jobs. The returned
// App is provisioned but not started.
func Build(cfg *config.Config, params RunParams) (*core.App, *Runtime, error) {
	level, err := config.ParseLevel(cfg.Log.Level)
	if err != nil {
		return nil, nil, err
	}
	if params.LogLevel != nil {
		level = *params.LogLevel
	}
	out := params.LogOutput
	if out == nil {
		out = os.Stderr
	}

	credStore := security.NewCredentialStore()
	redactor := security.NewRedactor()
	redactor.Track(credStore)
	logger := security.NewLogger(out, level, cfg.Log.Format, redactor)

	auditLogger := security.NewAuditLogger(security.AuditLoggerConfig{
		Redactor: redactor,
		OnEvent: func(ev security.AuditEvent) {
			logger.Debug("audit", "type", ev.Type, "session_id", ev.SessionID, "tool", ev.ToolName)
		},
	})
	rateLimiter := security.NewRateLimiter(cfg.RateLimit)

	dataDir := params.DataDir
	if dataDir == "" {
		dataDir = DefaultDataDir()
	}
	if err := os.MkdirAll(dataDir, 0o750); err != nil {
		return nil, nil, fmt.Errorf("creating data directory: %w", err)
	}

	version := params.Version
	if version == "" {
		version = "dev"
	}

	appCtx := core.NewAppContext(logger, dataDir).WithModuleConfigs(cfg.Modules)
	appCtx.RegisterService(core.ServiceCredentials, credStore)
	appCtx.RegisterService(core.ServiceAuditLogger, auditLogger)
	appCtx.RegisterService(core.ServiceRateLimiter, rateLimiter)
	appCtx.RegisterService(core.ServiceVersion, version)

	application := core.NewApp(appCtx)
	ids := config.Resolve(cfg)
	if err := application.LoadModules(ids); err != nil {
		return nil, nil, err
	}

	rt := &Runtime{
		Logger:      logger,
		Redactor:    redactor,
		Credentials: credStore,
		Audit:       auditLogger,
		RateLimiter: rateLimiter,
		AppCtx:      appCtx,
		DataDir:     dataDir,
	}

	logger.Debug("credentials registered", "names", credStore.Names())

	// Wire between LoadModules and Start: the gateway resolves the
	// orchestrator from the service registry when it starts.
	if err := wireOrchestrator(application, cfg, rt, ids); err != nil {
		return nil, nil, err
	}
	return application, rt, nil
}

// ResolveConfigPath searches for a config file in standard locations.
// Search order: $XDG_CONFIG_HOME/cinechat/cinechat.yaml → ~/.config/cinechat/cinechat.yaml → ./cinechat.yaml
func ResolveConfigPath() (string, error) {
	var candidates []string

	if xdg, ok := os.LookupEnv("XDG_CONFIG_HOME"); ok {
		candidates = append(candidates, filepath.Join(xdg, "cinechat", "cinechat.yaml"))
	} else if home, err := os.UserHomeDir(); err == nil {
		candidates = append(candidates, filepath.Join(home, ".config", "cinechat", "cinechat.yaml"))
	}

	candidates = append(candidates, "cinechat.yaml")

	for _, path := range candidates {
		if _, err := os.Stat(path); err == nil {
			return path, nil
		}
	}

	return "", fmt.Errorf("no configuration file found (searched: %v)", candidates)
}

// DefaultDataDir returns the default persistent data directory.
// Uses $XDG_DATA_HOME/cinechat if set, otherwise ~/.local/share/cinechat.
func DefaultDataDir() string {
	if dir, ok := os.LookupEnv("XDG_DATA_HOME"); ok && dir != "" {
		return filepath.Join(dir, "cinechat")
	}
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".local", "share", "cinechat")
}
