package main

import (
	"context"
	"database/sql"
	"io"
	"log/slog"
	"net"
	"net/http"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/phrazzld/memory-cards/internal/config"
	"github.com/phrazzld/memory-cards/internal/platform/migrations"
	"github.com/phrazzld/memory-cards/internal/platform/sqlite"
	"github.com/phrazzld/memory-cards/internal/testdb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testConfig() *config.Config {
	return &config.Config{
		Server: config.ServerConfig{Port: 8080, LogLevel: "error", ShutdownTimeoutSeconds: 5},
		Database: config.DatabaseConfig{
			Driver:                 driverSQLite,
			URL:                    "unused",
			MaxOpenConns:           4,
			MaxIdleConns:           2,
			ConnMaxLifetimeMinutes: 5,
		},
		Review: config.ReviewConfig{
			DefaultDueLimit:      20,
			MaxDueLimit:          50,
			MinEaseFactor:        1.3,
			MaxEaseFactor:        2.5,
			AgainIntervalMinutes: 10,
		},
	}
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestParseFlags(t *testing.T) {
	t.Parallel()

	fs, opts, err := parseFlags([]string{"--migrate", "status", "--port", "9090"})
	require.NoError(t, err)
	assert.Equal(t, "status", opts.migrate)
	port, err := fs.GetInt("port")
	require.NoError(t, err)
	assert.Equal(t, 9090, port)

	_, _, err = parseFlags([]string{"--no-such-flag"})
	assert.Error(t, err)
}

func TestRunMigrationCommands(t *testing.T) {
	ctx := context.Background()
	dbPath := filepath.Join(t.TempDir(), "cards.db")
	base := []string{"--db-driver", "sqlite", "--db-url", dbPath, "--log-level", "error"}

	require.NoError(t, run(ctx, append(base, "--migrate", "up")))
	require.NoError(t, run(ctx, append(base, "--migrate", "status")))

	err := run(ctx, append(base, "--migrate", "sideways"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown migration command")

	db, err := sqlite.Open(ctx, dbPath)
	require.NoError(t, err)
	defer func() { _ = db.Close() }()
	version, err := migrations.CurrentVersion(ctx, db, sqlite.MigrationSource())
	require.NoError(t, err)
	assert.Positive(t, version)
}

func TestRunRejectsBadConfiguration(t *testing.T) {
	err := run(context.Background(), []string{"--db-driver", "oracle", "--db-url", "x"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "configuration")
}

func TestPrepareSchemaMigratesSQLite(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	db, err := sqlite.Open(ctx, filepath.Join(t.TempDir(), "fresh.db"))
	require.NoError(t, err)
	defer func() { _ = db.Close() }()

	require.NoError(t, prepareSchema(ctx, db, sqlite.MigrationSource(), driverSQLite, discardLogger()))
	version, err := migrations.CurrentVersion(ctx, db, sqlite.MigrationSource())
	require.NoError(t, err)
	assert.Positive(t, version)
}

func TestNewApplication(t *testing.T) {
	t.Parallel()
	db := testdb.NewSQLiteDB(t)

	app, err := newApplication(testConfig(), discardLogger(), db)
	require.NoError(t, err)
	assert.Nil(t, app.jwtService, "auth is off without a secret")
	assert.NotNil(t, app.cardReviewService)

	cfg := testConfig()
	cfg.Auth.JWTSecret = strings.Repeat("k", 32)
	app, err = newApplication(cfg, discardLogger(), db)
	require.NoError(t, err)
	assert.NotNil(t, app.jwtService)

	cfg = testConfig()
	cfg.Review.AgainIntervalMinutes = 3 * 24 * 60
	_, err = newApplication(cfg, discardLogger(), db)
	assert.Error(t, err, "a lapse interval longer than the first review interval breaks rating order")
}

func TestServeUntilCancelled(t *testing.T) {
	t.Parallel()
	db := openUnmanagedSQLite(t)

	app, err := newApplication(testConfig(), discardLogger(), db)
	require.NoError(t, err)

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- app.serve(ctx, ln, app.setupRouter()) }()

	baseURL := "http://" + ln.Addr().String()
	resp, err := http.Get(baseURL + "/health")
	require.NoError(t, err)
	_ = resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp, err = http.Post(baseURL+"/memory-cards/decks", "application/json",
		strings.NewReader(`{"userId":"8a3c1f0e-5a55-4c43-9f0c-2c1ad4a0a9b1","courseId":"histo-1","title":"Epithelia"}`))
	require.NoError(t, err)
	_ = resp.Body.Close()
	assert.Equal(t, http.StatusCreated, resp.StatusCode)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(10 * time.Second):
		t.Fatal("server did not shut down")
	}

	assert.Error(t, db.Ping(), "shutdown closes the database")
}

// openUnmanagedSQLite returns a migrated database whose lifetime is owned by
// the application under test.
func openUnmanagedSQLite(t *testing.T) *sql.DB {
	t.Helper()
	ctx := context.Background()
	db, err := sqlite.Open(ctx, filepath.Join(t.TempDir(), "serve.db"))
	require.NoError(t, err)
	require.NoError(t, migrations.Run(ctx, db, sqlite.MigrationSource(), migrations.CommandUp, discardLogger()))
	return db
}
