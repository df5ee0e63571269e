// Package main implements the memory-cards API server: deck and card
// management, the due queue and review submission over HTTP.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/phrazzld/memory-cards/internal/config"
	"github.com/phrazzld/memory-cards/internal/platform/logger"
	"github.com/phrazzld/memory-cards/internal/platform/migrations"
	"github.com/phrazzld/memory-cards/internal/redact"
	"github.com/spf13/pflag"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "memory-cards: %s\n", redact.Error(err))
		os.Exit(1)
	}
}

// options are the flags that are not configuration values.
type options struct {
	migrate string
}

func parseFlags(args []string) (*pflag.FlagSet, options, error) {
	var opts options
	fs := pflag.NewFlagSet("memory-cards-server", pflag.ContinueOnError)
	config.RegisterFlags(fs)
	fs.StringVar(&opts.migrate, "migrate", "",
		"run a migration command and exit: "+strings.Join(migrations.Commands(), ", "))

	if err := fs.Parse(args); err != nil {
		return nil, opts, err
	}
	return fs, opts, nil
}

// run loads configuration, opens the database and either executes a
// migration command or serves the API until ctx is cancelled.
func run(ctx context.Context, args []string) error {
	fs, opts, err := parseFlags(args)
	if err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return nil
		}
		return err
	}

	cfg, err := config.LoadWithFlags(fs)
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	log, err := logger.Setup(cfg.Server)
	if err != nil {
		return fmt.Errorf("failed to set up logger: %w", err)
	}
	log.Info("server configuration loaded",
		slog.Int("port", cfg.Server.Port),
		slog.String("log_level", cfg.Server.LogLevel),
		slog.String("db_driver", cfg.Database.Driver),
		slog.Bool("auth_enabled", cfg.Auth.Enabled()))

	db, src, err := openDatabase(ctx, cfg.Database, log)
	if err != nil {
		return err
	}

	if opts.migrate != "" {
		defer closeDatabase(db, log)
		return migrations.Run(ctx, db, src, opts.migrate, log)
	}

	if err := prepareSchema(ctx, db, src, cfg.Database.Driver, log); err != nil {
		closeDatabase(db, log)
		return err
	}

	app, err := newApplication(cfg, log, db)
	if err != nil {
		closeDatabase(db, log)
		return fmt.Errorf("failed to initialize application: %w", err)
	}
	return app.Run(ctx)
}
