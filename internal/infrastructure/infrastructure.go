// Package infrastructure provides core system initialization for command startup.
// It assembles the shared dependencies (logging, backend client, database, redis,
// NATS, metrics) that the ingestion pipeline requires.
package infrastructure

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/nats-io/nats.go"
	prom "github.com/prometheus/client_golang/prometheus"

	"github.com/JaimeStill/intake/internal/backend"
	"github.com/JaimeStill/intake/internal/config"
	"github.com/JaimeStill/intake/internal/events"
	"github.com/JaimeStill/intake/internal/journal"
	"github.com/JaimeStill/intake/internal/observability"
	"github.com/JaimeStill/intake/internal/trigger"
	"github.com/JaimeStill/intake/pkg/cache"
	"github.com/JaimeStill/intake/pkg/database"
	"github.com/JaimeStill/intake/pkg/lifecycle"
)

// Infrastructure holds the core systems shared by the pipeline.
// Optional systems are nil when their configuration disables them.
type Infrastructure struct {
	Lifecycle *lifecycle.Coordinator
	Logger    *slog.Logger
	Backend   *backend.Client
	Database  database.System
	Redis     cache.System
	NATS      *nats.Conn
	Metrics   *prom.Registry
	Recorder  *observability.Recorder

	cfg *config.Config
}

// NewLogger creates the text logger written to w at the configured level.
func NewLogger(w io.Writer, level slog.Level) *slog.Logger {
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level}))
}

// New creates an Infrastructure from the application configuration.
// It initializes all systems but does not connect them; call Start separately.
func New(ctx context.Context, cfg *config.Config) (*Infrastructure, error) {
	lc := lifecycle.New(ctx)
	logger := NewLogger(os.Stderr, cfg.Level())

	client, err := backend.New(&cfg.Backend, logger)
	if err != nil {
		return nil, fmt.Errorf("backend init failed: %w", err)
	}

	infra := &Infrastructure{
		Lifecycle: lc,
		Logger:    logger,
		Backend:   client,
		cfg:       cfg,
	}

	if cfg.Database.Enabled() {
		db, err := database.New(&cfg.Database, logger, requiredTables(cfg)...)
		if err != nil {
			return nil, fmt.Errorf("database init failed: %w", err)
		}
		infra.Database = db
	}

	if cfg.Redis.Enabled() {
		infra.Redis = cache.New(&cfg.Redis, logger)
	}

	if cfg.Metrics.Enabled() {
		infra.Recorder, infra.Metrics = observability.NewRecorder(nil)
	}

	return infra, nil
}

// requiredTables lists the tables the configured systems write to.
func requiredTables(cfg *config.Config) []string {
	tables := []string{journal.Table}
	if cfg.Trigger.Enabled() && cfg.Trigger.Latch == trigger.LatchPostgres {
		tables = append(tables, trigger.LatchTable)
	}
	return tables
}

// Start connects the configured systems and waits for their startup checks.
// Shutdown hooks are registered in dependency order so Lifecycle.Shutdown
// releases them last-in first-out.
func (i *Infrastructure) Start() error {
	if i.Database != nil {
		if err := i.Database.Start(i.Lifecycle); err != nil {
			return fmt.Errorf("database start failed: %w", err)
		}
	}

	if i.Redis != nil {
		if err := i.Redis.Start(i.Lifecycle); err != nil {
			return fmt.Errorf("redis start failed: %w", err)
		}
	}

	if i.cfg.Events.Enabled() {
		conn, err := events.Connect(&i.cfg.Events, i.Logger)
		if err != nil {
			return fmt.Errorf("nats start failed: %w", err)
		}
		i.NATS = conn
		i.Lifecycle.OnShutdown(func(context.Context) error {
			if err := conn.Drain(); err != nil {
				return fmt.Errorf("nats drain: %w", err)
			}
			return nil
		})
	}

	if i.Metrics != nil {
		srv := observability.NewServer(&i.cfg.Metrics, i.Metrics, i.Logger)
		if err := srv.Start(i.Lifecycle); err != nil {
			return fmt.Errorf("metrics start failed: %w", err)
		}
	}

	if err := i.Lifecycle.WaitForStartup(); err != nil {
		return fmt.Errorf("startup failed: %w", err)
	}
	return nil
}

// Shutdown releases every started system within the configured timeout.
func (i *Infrastructure) Shutdown() error {
	return i.Lifecycle.Shutdown(i.cfg.ShutdownTimeoutDuration())
}
