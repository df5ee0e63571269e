package main

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/phrazzld/memory-cards/internal/config"
	"github.com/phrazzld/memory-cards/internal/platform/migrations"
	"github.com/phrazzld/memory-cards/internal/platform/postgres"
	"github.com/phrazzld/memory-cards/internal/platform/sqlite"
	"github.com/phrazzld/memory-cards/internal/redact"
)

// Database drivers accepted in config.
const (
	driverPostgres = "postgres"
	driverSQLite   = "sqlite"
)

// openDatabase opens the configured Card Store database and returns it with
// the adapter's migration set.
func openDatabase(ctx context.Context, cfg config.DatabaseConfig, log *slog.Logger) (*sql.DB, migrations.Source, error) {
	var (
		db  *sql.DB
		src migrations.Source
		err error
	)

	switch cfg.Driver {
	case driverPostgres:
		db, err = postgres.Open(ctx, cfg.URL)
		src = postgres.MigrationSource()
	case driverSQLite:
		db, err = sqlite.Open(ctx, cfg.URL)
		src = sqlite.MigrationSource()
	default:
		return nil, migrations.Source{}, fmt.Errorf("unsupported database driver %q", cfg.Driver)
	}
	if err != nil {
		return nil, migrations.Source{}, err
	}

	maxOpen := cfg.MaxOpenConns
	if cfg.Driver == driverSQLite && strings.Contains(cfg.URL, ":memory:") {
		// every connection to :memory: is a separate database
		maxOpen = 1
	}
	db.SetMaxOpenConns(maxOpen)
	db.SetMaxIdleConns(cfg.MaxIdleConns)
	db.SetConnMaxLifetime(time.Duration(cfg.ConnMaxLifetimeMinutes) * time.Minute)

	log.Info("database connection established",
		slog.String("driver", cfg.Driver),
		slog.String("location", redact.DatabaseURL(cfg.URL)),
		slog.Int("max_open_conns", maxOpen))
	return db, src, nil
}

// prepareSchema brings an embedded SQLite database up to date on start.
// PostgreSQL schemas are managed explicitly with --migrate, and the server
// refuses to start against an unmigrated one.
func prepareSchema(ctx context.Context, db *sql.DB, src migrations.Source, driver string, log *slog.Logger) error {
	if driver == driverSQLite {
		return migrations.Run(ctx, db, src, migrations.CommandUp, log)
	}

	version, err := migrations.CurrentVersion(ctx, db, src)
	if err != nil {
		return err
	}
	if version == 0 {
		return fmt.Errorf("database has no schema; run with --migrate up first")
	}
	log.Debug("database schema version", slog.Int64("version", version))
	return nil
}

func closeDatabase(db *sql.DB, log *slog.Logger) {
	if err := db.Close(); err != nil {
		log.Error("error closing database connection", slog.String("error", redact.Error(err)))
	}
}
