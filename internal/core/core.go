package core

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"
)

// DefaultShutdownTimeout bounds the whole Stop sequence.
const DefaultShutdownTimeout = 30 * time.Second

// App owns the ordered set of modules that make up a running service.
// Modules start in the order they were added and stop in reverse.
type App struct {
	ctx             *AppContext
	logger          *slog.Logger
	units           []unit
	running         int
	ShutdownTimeout time.Duration
}

type unit struct {
	id  ModuleID
	mod Module
}

// NewApp returns an empty App bound to ctx.
func NewApp(ctx *AppContext) *App {
	return &App{
		ctx:             ctx,
		logger:          ctx.Logger.With("component", "core"),
		ShutdownTimeout: DefaultShutdownTimeout,
	}
}

// LoadModules builds each registered module in ids through
// AppContext.LoadModule. On the first failure every module loaded so far
// is released and the error names the failing ID.
func (a *App) LoadModules(ids []string) error {
	for _, id := range ids {
		mod, err := a.ctx.LoadModule(id)
		if err != nil {
			a.release()
			return fmt.Errorf("loading module %s: %w", id, err)
		}
		a.units = append(a.units, unit{id: mod.ModuleInfo().ID, mod: mod})
		a.logger.Info("module loaded", "module", id)
	}
	return nil
}

// AppendModule adds a module built outside the registry, such as the
// orchestrator. It starts after everything already added.
func (a *App) AppendModule(id string, mod Module) {
	a.units = append(a.units, unit{id: ModuleID(id), mod: mod})
}

// Module looks up an added module by ID.
func (a *App) Module(id string) (Module, bool) {
	for _, u := range a.units {
		if string(u.id) == id {
			return u.mod, true
		}
	}
	return nil, false
}

// Start runs Start on every Starter in order. If one fails, the modules
// started before it are stopped and the error is returned.
func (a *App) Start() error {
	for a.running < len(a.units) {
		u := a.units[a.running]
		if s, ok := u.mod.(Starter); ok {
			a.logger.Info("starting module", "module", string(u.id))
			if err := s.Start(); err != nil {
				a.logger.Error("module start failed", "module", string(u.id), "error", err)
				_ = a.Stop()
				return fmt.Errorf("starting module %s: %w", u.id, err)
			}
		}
		a.running++
	}
	a.logger.Info("all modules started", "count", len(a.units))
	return nil
}

// Stop stops the started modules in reverse order within ShutdownTimeout
// and returns their joined errors. Calling it again is a no-op.
func (a *App) Stop() error {
	ctx, cancel := context.WithTimeout(context.Background(), a.ShutdownTimeout)
	defer cancel()

	var errs []error
	for ; a.running > 0; a.running-- {
		u := a.units[a.running-1]
		s, ok := u.mod.(Stopper)
		if !ok {
			continue
		}
		a.logger.Info("stopping module", "module", string(u.id))
		if err := s.Stop(ctx); err != nil {
			a.logger.Error("module stop error", "module", string(u.id), "error", err)
			errs = append(errs, fmt.Errorf("stopping %s: %w", u.id, err))
		}
	}
	return errors.Join(errs...)
}

// release stops provisioned modules that never started so they can close
// what Provision opened.
func (a *App) release() {
	ctx, cancel := context.WithTimeout(context.Background(), a.ShutdownTimeout)
	defer cancel()
	for i := len(a.units) - 1; i >= 0; i-- {
		if s, ok := a.units[i].mod.(Stopper); ok {
			_ = s.Stop(ctx)
		}
	}
	a.units = nil
}
