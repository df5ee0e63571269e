package main

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"net"
	"net/http"

	"github.com/phrazzld/memory-cards/internal/api"
	"github.com/phrazzld/memory-cards/internal/config"
	"github.com/phrazzld/memory-cards/internal/domain/srs"
	"github.com/phrazzld/memory-cards/internal/platform/postgres"
	"github.com/phrazzld/memory-cards/internal/platform/sqlite"
	"github.com/phrazzld/memory-cards/internal/service"
	"github.com/phrazzld/memory-cards/internal/service/auth"
	"github.com/phrazzld/memory-cards/internal/service/card_review"
	"github.com/phrazzld/memory-cards/internal/store"
)

// application holds all the shared application dependencies to simplify management
// and ensure proper cleanup on shutdown.
type application struct {
	config *config.Config
	logger *slog.Logger
	db     *sql.DB

	deckStore      store.DeckStore
	cardStore      store.CardStore
	reviewLogStore store.ReviewLogStore

	// jwtService is nil when authentication is disabled.
	jwtService        auth.JWTService
	srsService        srs.Service
	deckService       service.DeckService
	cardReviewService card_review.CardReviewService
}

// newApplication wires stores and services for the configured driver.
func newApplication(cfg *config.Config, logger *slog.Logger, db *sql.DB) (*application, error) {
	app := &application{
		config: cfg,
		logger: logger,
		db:     db,
	}

	switch cfg.Database.Driver {
	case driverSQLite:
		app.deckStore = sqlite.NewSQLiteDeckStore(db, logger)
		app.cardStore = sqlite.NewSQLiteCardStore(db, logger)
		app.reviewLogStore = sqlite.NewSQLiteReviewLogStore(db, logger)
	default:
		app.deckStore = postgres.NewPostgresDeckStore(db, logger)
		app.cardStore = postgres.NewPostgresCardStore(db, logger)
		app.reviewLogStore = postgres.NewPostgresReviewLogStore(db, logger)
	}

	var err error
	if cfg.Auth.Enabled() {
		app.jwtService, err = auth.NewJWTService(cfg.Auth)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize JWT service: %w", err)
		}
		logger.Info("bearer-token authentication enabled")
	} else {
		logger.Warn("authentication disabled; requests are trusted to name their user")
	}

	params, err := srs.NewParams(srs.ParamsConfig{
		MinEaseFactor:        cfg.Review.MinEaseFactor,
		MaxEaseFactor:        cfg.Review.MaxEaseFactor,
		AgainIntervalMinutes: cfg.Review.AgainIntervalMinutes,
	})
	if err != nil {
		return nil, fmt.Errorf("invalid scheduler settings: %w", err)
	}
	app.srsService, err = srs.NewServiceWithParams(params)
	if err != nil {
		return nil, fmt.Errorf("failed to create SRS service: %w", err)
	}

	app.deckService, err = service.NewDeckService(app.deckStore, app.cardStore, app.srsService, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to create deck service: %w", err)
	}

	app.cardReviewService, err = card_review.NewCardReviewService(
		store.NewTransactor(db),
		app.cardStore,
		app.reviewLogStore,
		app.srsService,
		card_review.Options{
			DefaultDueLimit: cfg.Review.DefaultDueLimit,
			MaxDueLimit:     cfg.Review.MaxDueLimit,
		},
		logger,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create card review service: %w", err)
	}

	logger.Info("application initialized successfully")
	return app, nil
}

// setupRouter creates the HTTP handler for the application's services.
func (app *application) setupRouter() http.Handler {
	return api.NewRouter(api.RouterDeps{
		DeckService:       app.deckService,
		CardReviewService: app.cardReviewService,
		JWTService:        app.jwtService,
		Logger:            app.logger,
	})
}

// Run listens on the configured port and serves until ctx is cancelled.
func (app *application) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", fmt.Sprintf(":%d", app.config.Server.Port))
	if err != nil {
		app.cleanup()
		return fmt.Errorf("failed to listen: %w", err)
	}
	return app.serve(ctx, ln, app.setupRouter())
}

// cleanup handles graceful shutdown of application resources.
func (app *application) cleanup() {
	if app.db != nil {
		closeDatabase(app.db, app.logger)
	}
	app.logger.Info("application shutdown completed")
}
