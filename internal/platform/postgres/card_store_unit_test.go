package postgres_test

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/phrazzld/memory-cards/internal/domain"
	"github.com/phrazzld/memory-cards/internal/platform/postgres"
	"github.com/phrazzld/memory-cards/internal/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testNow = time.Date(2025, 3, 14, 9, 0, 0, 0, time.UTC)

func reviewedCard(t *testing.T) *domain.Card {
	t.Helper()
	deck, err := domain.NewDeck(uuid.New(), "course-1", "Renal", "", testNow)
	require.NoError(t, err)
	card, err := domain.NewCard(deck, domain.CardDraft{
		Question: "Where is ADH made?", Answer: "Hypothalamus", DifficultyLevel: 2,
	}, domain.ReviewState{EaseFactor: 2.35, Interval: 10 * time.Minute}, testNow)
	require.NoError(t, err)

	card.RepetitionCount = 1
	card.CorrectCount = 1
	card.ConsecutiveCorrect = 1
	card.Interval = 48 * time.Hour
	card.LastReviewedAt = testNow.Add(time.Hour)
	card.NextReviewAt = card.LastReviewedAt.Add(card.Interval)
	return card
}

func TestPostgresCardStore_UpdateSchedule(t *testing.T) {
	t.Parallel()

	updateSQL := regexp.QuoteMeta(`UPDATE cards SET`)
	versionSQL := regexp.QuoteMeta(`SELECT version FROM cards WHERE id = $1`)

	tests := []struct {
		name    string
		setup   func(mock sqlmock.Sqlmock, card *domain.Card)
		wantErr error
		version int
	}{
		{
			name: "applied",
			setup: func(mock sqlmock.Sqlmock, card *domain.Card) {
				mock.ExpectExec(updateSQL).WillReturnResult(sqlmock.NewResult(0, 1))
			},
			version: 4,
		},
		{
			name: "stale version",
			setup: func(mock sqlmock.Sqlmock, card *domain.Card) {
				mock.ExpectExec(updateSQL).WillReturnResult(sqlmock.NewResult(0, 0))
				mock.ExpectQuery(versionSQL).WithArgs(card.ID).
					WillReturnRows(sqlmock.NewRows([]string{"version"}).AddRow(5))
			},
			wantErr: store.ErrVersionConflict,
			version: 1,
		},
		{
			name: "missing card",
			setup: func(mock sqlmock.Sqlmock, card *domain.Card) {
				mock.ExpectExec(updateSQL).WillReturnResult(sqlmock.NewResult(0, 0))
				mock.ExpectQuery(versionSQL).WithArgs(card.ID).
					WillReturnRows(sqlmock.NewRows([]string{"version"}))
			},
			wantErr: store.ErrCardNotFound,
			version: 1,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			db, mock, err := sqlmock.New()
			require.NoError(t, err)
			defer func() { _ = db.Close() }()

			card := reviewedCard(t)
			tc.setup(mock, card)

			err = postgres.NewPostgresCardStore(db, nil).UpdateSchedule(context.Background(), card, 3)
			if tc.wantErr != nil {
				assert.ErrorIs(t, err, tc.wantErr)
			} else {
				assert.NoError(t, err)
			}
			assert.Equal(t, tc.version, card.Version)
			assert.NoError(t, mock.ExpectationsWereMet())
		})
	}
}

func TestPostgresCardStore_UpdateScheduleDriverFailure(t *testing.T) {
	t.Parallel()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer func() { _ = db.Close() }()

	cause := errors.New("connection reset by peer")
	mock.ExpectExec(regexp.QuoteMeta(`UPDATE cards SET`)).WillReturnError(cause)

	card := reviewedCard(t)
	err = postgres.NewPostgresCardStore(db, nil).UpdateSchedule(context.Background(), card, 1)
	require.Error(t, err)
	assert.ErrorIs(t, err, cause)

	var storeErr *store.StoreError
	require.ErrorAs(t, err, &storeErr)
	assert.Equal(t, "card", storeErr.Entity)
	assert.Equal(t, "update_schedule", storeErr.Operation)
	assert.Equal(t, 1, card.Version, "version is untouched on failure")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresCardStore_UpdateScheduleRejectsInvalidState(t *testing.T) {
	t.Parallel()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer func() { _ = db.Close() }()

	card := reviewedCard(t)
	card.IncorrectCount = 2

	err = postgres.NewPostgresCardStore(db, nil).UpdateSchedule(context.Background(), card, 1)
	assert.ErrorIs(t, err, domain.ErrInvalidReviewCounts)
	assert.NoError(t, mock.ExpectationsWereMet(), "nothing reaches the database")
}

func TestPostgresCardStore_GetForUpdateLocksRow(t *testing.T) {
	t.Parallel()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer func() { _ = db.Close() }()

	id := uuid.New()
	mock.ExpectQuery(`FROM cards WHERE id = \$1 FOR UPDATE`).WithArgs(id).
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	_, err = postgres.NewPostgresCardStore(db, nil).GetForUpdate(context.Background(), id)
	assert.ErrorIs(t, err, store.ErrCardNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresCardStore_ListDueFiltersDeck(t *testing.T) {
	t.Parallel()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer func() { _ = db.Close() }()

	userID := uuid.New()
	deckID := uuid.New()
	mock.ExpectQuery(regexp.QuoteMeta(`ORDER BY next_review_at ASC, id ASC`)).
		WithArgs(userID, testNow, uuid.NullUUID{UUID: deckID, Valid: true}, 20).
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	cards, err := postgres.NewPostgresCardStore(db, nil).ListDue(context.Background(), store.DueQuery{
		UserID: userID,
		DeckID: &deckID,
		Now:    testNow,
		Limit:  20,
	})
	require.NoError(t, err)
	assert.NotNil(t, cards)
	assert.Empty(t, cards)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestNewPostgresStoresPanicOnNilDB(t *testing.T) {
	t.Parallel()
	assert.Panics(t, func() { postgres.NewPostgresDeckStore(nil, nil) })
	assert.Panics(t, func() { postgres.NewPostgresCardStore(nil, nil) })
	assert.Panics(t, func() { postgres.NewPostgresReviewLogStore(nil, nil) })
}
