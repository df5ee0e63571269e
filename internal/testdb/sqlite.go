package testdb

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"

	"github.com/phrazzld/memory-cards/internal/platform/migrations"
	"github.com/phrazzld/memory-cards/internal/platform/sqlite"
	"github.com/stretchr/testify/require"
)

// NewSQLiteDB returns a migrated SQLite database stored under t.TempDir().
// The connection is closed when the test ends.
func NewSQLiteDB(t *testing.T) *sql.DB {
	t.Helper()
	ctx := context.Background()

	db, err := sqlite.Open(ctx, filepath.Join(t.TempDir(), "memory-cards.db"))
	require.NoError(t, err, "Failed to open test database")
	t.Cleanup(func() {
		if err := db.Close(); err != nil {
			t.Logf("Warning: failed to close database connection: %v", err)
		}
	})

	err = migrations.Run(ctx, db, sqlite.MigrationSource(), migrations.CommandUp, nil)
	require.NoError(t, err, "Failed to run migrations")

	return db
}
