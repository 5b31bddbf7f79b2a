// Package sqlite is the default memory module: sessions and messages in a
// local SQLite file through modernc.org/sqlite, which needs no CGO.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/flemzord/cinechat/internal/core"
	"github.com/flemzord/cinechat/internal/memory"
)

func init() {
	core.RegisterModule(&Module{})
}

var (
	_ memory.Store      = (*sessionStore)(nil)
	_ core.Configurable = (*Module)(nil)
	_ core.Provisioner  = (*Module)(nil)
	_ core.Validator    = (*Module)(nil)
	_ core.Stopper      = (*Module)(nil)
)

// Module publishes a memory.Store kept in one SQLite database.
type Module struct {
	config Config
	db     *sql.DB
	store  *sessionStore
	logger *slog.Logger
}

func (m *Module) ModuleInfo() core.ModuleInfo {
	return core.ModuleInfo{
		ID:  "memory.sqlite",
		New: func() core.Module { return &Module{} },
	}
}

func (m *Module) Configure(node *yaml.Node) error {
	if err := node.Decode(&m.config); err != nil {
		return fmt.Errorf("sqlite: decode config: %w", err)
	}
	return nil
}

// Provision opens and migrates the database, then registers the store
// and its health check.
func (m *Module) Provision(ctx *core.AppContext) error {
	m.config.defaults()
	if err := m.config.validate(); err != nil {
		return err
	}
	if m.config.Path == "" {
		m.config.Path = filepath.Join(ctx.DataDir, defaultDBFile)
	}
	m.logger = ctx.Logger

	db, err := open(context.Background(), m.config)
	if err != nil {
		return err
	}
	m.db, m.store = db, newSessionStore(db)

	ctx.RegisterService(core.ServiceMemoryStore, memory.Store(m.store))
	ctx.AppendService(core.ServiceHealthCheckers, core.NamedCheck{Name: "database", Check: m.store.Ping})
	m.logger.Info("sqlite memory ready", "path", m.config.Path, "wal", m.config.walEnabled())
	return nil
}

// Validate runs SQLite's quick integrity check so a corrupt file fails
// at startup rather than on the first chat turn.
func (m *Module) Validate() error {
	var result string
	if err := m.db.QueryRowContext(context.Background(), "PRAGMA quick_check").Scan(&result); err != nil {
		return fmt.Errorf("sqlite: quick_check: %w", err)
	}
	if result != "ok" {
		return fmt.Errorf("sqlite: %s failed integrity check: %s", m.config.Path, result)
	}
	return nil
}

func (m *Module) Stop(context.Context) error {
	if m.db == nil {
		return nil
	}
	m.logger.Info("closing sqlite memory", "path", m.config.Path)
	return m.db.Close()
}

// Store returns the published store, nil before Provision.
func (m *Module) Store() memory.Store {
	return m.store
}
