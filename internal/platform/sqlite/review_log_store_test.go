package sqlite_test

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/phrazzld/memory-cards/internal/domain"
	"github.com/phrazzld/memory-cards/internal/domain/srs"
	"github.com/phrazzld/memory-cards/internal/platform/sqlite"
	"github.com/phrazzld/memory-cards/internal/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSQLiteReviewLogStore(t *testing.T) {
	t.Parallel()
	db := openTestDB(t)
	ctx := context.Background()
	logs := sqlite.NewSQLiteReviewLogStore(db, nil)
	scheduler, err := srs.NewDefaultService()
	require.NoError(t, err)

	deck := createDeck(t, db, uuid.New())
	card := createCard(t, db, deck, "Loop diuretic example?", testNow)

	var written []*domain.ReviewLog
	current := card
	for i, rating := range []domain.Rating{domain.RatingGood, domain.RatingAgain, domain.RatingHard} {
		next, err := scheduler.ApplyRating(current, rating, testNow.Add(time.Duration(i+1)*time.Hour))
		require.NoError(t, err)
		entry, err := domain.NewReviewLog(current, next, rating, 4500*time.Millisecond, 30*time.Second)
		require.NoError(t, err)
		require.NoError(t, logs.Create(ctx, entry))
		written = append(written, entry)
		current = next
	}

	listed, err := logs.ListByCard(ctx, card.ID, 10)
	require.NoError(t, err)
	require.Len(t, listed, 3)
	assert.Equal(t, written[2], listed[0], "most recent first")
	assert.Equal(t, written[0], listed[2])

	limited, err := logs.ListByCard(ctx, card.ID, 1)
	require.NoError(t, err)
	assert.Len(t, limited, 1)

	t.Run("unknown card", func(t *testing.T) {
		orphan := *written[0]
		orphan.ID = uuid.New()
		orphan.CardID = uuid.New()
		assert.ErrorIs(t, logs.Create(ctx, &orphan), store.ErrInvalidEntity)
	})

	t.Run("history goes with the card", func(t *testing.T) {
		require.NoError(t, sqlite.NewSQLiteCardStore(db, nil).Delete(ctx, card.ID))
		remaining, err := logs.ListByCard(ctx, card.ID, 10)
		require.NoError(t, err)
		assert.Empty(t, remaining)
	})
}
