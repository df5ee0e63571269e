package sqlite

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"strings"
	"time"

	"github.com/phrazzld/memory-cards/internal/platform/migrations"
	_ "modernc.org/sqlite" // Registers the sqlite driver
)

// DriverName is the database/sql driver registered by modernc.org/sqlite.
const DriverName = "sqlite"

// Migrations holds the goose migrations for the SQLite schema.
//
//go:embed migrations/*.sql
var Migrations embed.FS

// MigrationSource describes the embedded migrations for migrations.Run.
func MigrationSource() migrations.Source {
	return migrations.Source{Dialect: "sqlite3", FS: Migrations, Dir: "migrations"}
}

// defaultPragmas enable referential integrity, wait on a busy database instead
// of failing, and take the write lock when a transaction begins so that a
// read-then-update inside it cannot interleave with another writer.
var defaultPragmas = []struct{ key, value string }{
	{"_pragma=foreign_keys", "_pragma=foreign_keys(1)"},
	{"_pragma=busy_timeout", "_pragma=busy_timeout(5000)"},
	{"_txlock=", "_txlock=immediate"},
}

// DSN appends the default pragmas to dsn unless it already sets them.
func DSN(dsn string) string {
	var missing []string
	for _, p := range defaultPragmas {
		if !strings.Contains(dsn, p.key) {
			missing = append(missing, p.value)
		}
	}
	if len(missing) == 0 {
		return dsn
	}
	sep := "?"
	if strings.Contains(dsn, "?") {
		sep = "&"
	}
	return dsn + sep + strings.Join(missing, "&")
}

// Open opens the SQLite database at dsn with the default pragmas and verifies
// the connection.
func Open(ctx context.Context, dsn string) (*sql.DB, error) {
	db, err := sql.Open(DriverName, DSN(dsn))
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	return db, nil
}

// rowScanner is satisfied by *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func toUnixNano(t time.Time) int64 {
	return t.UTC().UnixNano()
}

func fromUnixNano(n int64) time.Time {
	return time.Unix(0, n).UTC()
}

func nullableUnixNano(t time.Time) sql.NullInt64 {
	if t.IsZero() {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: toUnixNano(t), Valid: true}
}

func fromNullableUnixNano(n sql.NullInt64) time.Time {
	if !n.Valid {
		return time.Time{}
	}
	return fromUnixNano(n.Int64)
}
