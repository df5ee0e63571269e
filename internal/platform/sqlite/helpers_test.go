package sqlite_test

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/phrazzld/memory-cards/internal/domain"
	"github.com/phrazzld/memory-cards/internal/domain/srs"
	"github.com/phrazzld/memory-cards/internal/platform/migrations"
	"github.com/phrazzld/memory-cards/internal/platform/sqlite"
	"github.com/stretchr/testify/require"
)

var testNow = time.Date(2025, 3, 14, 9, 0, 0, 0, time.UTC)

// openTestDB opens a migrated database file under the test's temp dir.
func openTestDB(t *testing.T) *sql.DB {
	t.Helper()
	ctx := context.Background()

	db, err := sqlite.Open(ctx, filepath.Join(t.TempDir(), "cards.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	require.NoError(t, migrations.Run(ctx, db, sqlite.MigrationSource(), migrations.CommandUp, nil))
	return db
}

func createDeck(t *testing.T, db *sql.DB, userID uuid.UUID) *domain.Deck {
	t.Helper()
	deck, err := domain.NewDeck(userID, "course-1", "Pharmacology", "", testNow)
	require.NoError(t, err)
	require.NoError(t, sqlite.NewSQLiteDeckStore(db, nil).Create(context.Background(), deck))
	return deck
}

func createCard(t *testing.T, db *sql.DB, deck *domain.Deck, question string, dueAt time.Time) *domain.Card {
	t.Helper()
	scheduler, err := srs.NewDefaultService()
	require.NoError(t, err)

	card, err := domain.NewCard(deck, domain.CardDraft{
		Question:        question,
		Answer:          "answer to " + question,
		DifficultyLevel: domain.DefaultDifficultyLevel,
	}, scheduler.InitialState(domain.DefaultDifficultyLevel), testNow)
	require.NoError(t, err)
	card.NextReviewAt = dueAt

	require.NoError(t, sqlite.NewSQLiteCardStore(db, nil).Create(context.Background(), card))
	return card
}
