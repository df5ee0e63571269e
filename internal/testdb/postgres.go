package testdb

import (
	"context"
	"database/sql"
	"errors"
	"testing"

	"github.com/phrazzld/memory-cards/internal/platform/migrations"
	"github.com/phrazzld/memory-cards/internal/platform/postgres"
	"github.com/stretchr/testify/require"
)

// GetTestDBWithT returns a migrated PostgreSQL connection and registers its
// cleanup. It skips the test if no database URL is configured.
func GetTestDBWithT(t *testing.T) *sql.DB {
	t.Helper()

	dbURL := GetTestDatabaseURL()
	if dbURL == "" {
		t.Skip("DATABASE_URL or MEMCARDS_TEST_DB_URL not set - skipping integration test")
	}

	ctx, cancel := context.WithTimeout(context.Background(), TestTimeout)
	defer cancel()

	db, err := postgres.Open(ctx, dbURL)
	require.NoError(t, err, "Failed to connect to test database")
	t.Cleanup(func() {
		if err := db.Close(); err != nil {
			t.Logf("Warning: failed to close database connection: %v", err)
		}
	})

	err = migrations.Run(context.Background(), db, postgres.MigrationSource(), migrations.CommandUp, nil)
	require.NoError(t, err, "Failed to run migrations")

	return db
}

// WithTx executes fn within a transaction that is rolled back afterwards,
// so tests can share one database without seeing each other's rows.
func WithTx(t *testing.T, db *sql.DB, fn func(t *testing.T, tx *sql.Tx)) {
	t.Helper()

	ctx, cancel := context.WithTimeout(context.Background(), TestTimeout)
	defer cancel()

	tx, err := db.BeginTx(ctx, nil)
	require.NoError(t, err, "Failed to begin transaction")

	defer func() {
		// sql.ErrTxDone is expected if fn already finished the transaction
		if err := tx.Rollback(); err != nil && !errors.Is(err, sql.ErrTxDone) {
			t.Logf("Warning: failed to rollback transaction: %v", err)
		}
	}()

	fn(t, tx)
}
