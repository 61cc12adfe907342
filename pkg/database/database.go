// Package database opens the PostgreSQL pool behind the session journal and
// the shared trigger latch, and checks on startup that the schema is migrated.
package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/JaimeStill/intake/pkg/lifecycle"
)

// ErrSchemaMissing indicates a required table does not exist yet.
var ErrSchemaMissing = errors.New("database schema missing; run migrate up")

// System manages database connections and lifecycle coordination.
type System interface {
	// Connection returns the underlying database connection pool.
	Connection() *sql.DB
	// Start registers startup and shutdown hooks with the lifecycle coordinator.
	Start(lc *lifecycle.Coordinator) error
}

type database struct {
	conn        *sql.DB
	logger      *slog.Logger
	connTimeout time.Duration
	tables      []string
}

// New creates a database system. Start pings the server and then verifies
// that every table in tables exists. No connection is made until Start.
func New(cfg *Config, logger *slog.Logger, tables ...string) (System, error) {
	db, err := sql.Open("pgx", cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MaxOpenConns)

	return &database{
		conn:        db,
		logger:      logger.With("system", "database", "target", cfg.Target()),
		connTimeout: cfg.ConnTimeoutDuration(),
		tables:      tables,
	}, nil
}

func (d *database) Connection() *sql.DB {
	return d.conn
}

func (d *database) Start(lc *lifecycle.Coordinator) error {
	lc.OnStartup(func(ctx context.Context) error {
		ctx, cancel := context.WithTimeout(ctx, d.connTimeout)
		defer cancel()

		if err := d.conn.PingContext(ctx); err != nil {
			return fmt.Errorf("database ping: %w", err)
		}
		if err := d.checkTables(ctx); err != nil {
			return err
		}

		d.logger.Debug("database connected", "tables", d.tables)
		return nil
	})

	lc.OnShutdown(func(context.Context) error {
		if err := d.conn.Close(); err != nil {
			return fmt.Errorf("database close: %w", err)
		}
		return nil
	})

	return nil
}

func (d *database) checkTables(ctx context.Context) error {
	const q = `
		SELECT EXISTS (
			SELECT 1 FROM information_schema.tables
			WHERE table_schema = current_schema() AND table_name = $1
		)`

	for _, table := range d.tables {
		var exists bool
		if err := d.conn.QueryRowContext(ctx, q, table).Scan(&exists); err != nil {
			return fmt.Errorf("check table %s: %w", table, err)
		}
		if !exists {
			return fmt.Errorf("%w: table %s", ErrSchemaMissing, table)
		}
	}
	return nil
}
