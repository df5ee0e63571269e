package srs

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/phrazzld/memory-cards/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testNow = time.Date(2025, 3, 14, 9, 0, 0, 0, time.UTC)

func newTestCard(t *testing.T, difficulty int) *domain.Card {
	t.Helper()

	deck, err := domain.NewDeck(uuid.New(), "course-1", "Anatomy", "", testNow)
	require.NoError(t, err)

	service, err := NewDefaultService()
	require.NoError(t, err)

	card, err := domain.NewCard(deck, domain.CardDraft{
		Question:        "Which bone is the longest in the human body?",
		Answer:          "The femur",
		DifficultyLevel: difficulty,
	}, service.InitialState(difficulty), testNow)
	require.NoError(t, err)
	return card
}

// review applies ratings in order, one day apart.
func review(t *testing.T, service Service, card *domain.Card, ratings ...domain.Rating) *domain.Card {
	t.Helper()
	now := testNow
	for _, r := range ratings {
		now = now.Add(24 * time.Hour)
		next, err := service.ApplyRating(card, r, now)
		require.NoError(t, err)
		card = next
	}
	return card
}

// reviewUntilCapped rates good until the interval stops growing.
func reviewUntilCapped(t *testing.T, service Service, card *domain.Card) *domain.Card {
	t.Helper()
	maxInterval := NewDefaultParams().MaxInterval
	for i := 0; i < 40 && card.Interval < maxInterval-time.Second; i++ {
		card = review(t, service, card, domain.RatingGood)
	}
	require.Equal(t, maxInterval-time.Second, card.Interval, "good must settle one second below the cap")
	return card
}

func TestNewDefaultService(t *testing.T) {
	t.Parallel()
	service, err := NewDefaultService()
	require.NoError(t, err)

	impl, ok := service.(*defaultService)
	require.True(t, ok, "Expected *defaultService type")
	assert.NotNil(t, impl.params)
}

func TestNewServiceWithParams(t *testing.T) {
	t.Parallel()

	_, err := NewServiceWithParams(nil)
	assert.ErrorIs(t, err, ErrInvalidParams)

	params := NewDefaultParams()
	params.IntervalModifier[domain.RatingEasy] = 0.5
	_, err = NewServiceWithParams(params)
	assert.ErrorIs(t, err, ErrInvalidParams)
}

func TestApplyRatingOrdering(t *testing.T) {
	t.Parallel()
	service, err := NewDefaultService()
	require.NoError(t, err)

	priors := map[string]*domain.Card{
		"new card":        newTestCard(t, 3),
		"hardest new":     newTestCard(t, 5),
		"after one good":  review(t, service, newTestCard(t, 3), domain.RatingGood),
		"mature":          review(t, service, newTestCard(t, 1), domain.RatingGood, domain.RatingGood, domain.RatingEasy),
		"just lapsed":     review(t, service, newTestCard(t, 3), domain.RatingGood, domain.RatingAgain),
		"minimum ease":    review(t, service, newTestCard(t, 5), domain.RatingHard, domain.RatingHard, domain.RatingHard, domain.RatingHard),
		"relearning once": review(t, service, newTestCard(t, 2), domain.RatingGood, domain.RatingAgain, domain.RatingHard),
		"at cap":          reviewUntilCapped(t, service, newTestCard(t, 1)),
	}

	now := testNow.Add(30 * 24 * time.Hour)
	for name, prior := range priors {
		t.Run(name, func(t *testing.T) {
			var intervals []time.Duration
			for _, rating := range domain.Ratings() {
				next, err := service.ApplyRating(prior, rating, now)
				require.NoError(t, err)
				assert.Positive(t, next.Interval)
				assert.Equal(t, now.Add(next.Interval), next.NextReviewAt)
				intervals = append(intervals, next.Interval)
			}

			for i := 1; i < len(intervals); i++ {
				assert.Less(t, intervals[i-1], intervals[i],
					"%s must schedule sooner than %s", domain.Ratings()[i-1], domain.Ratings()[i])
			}
		})
	}
}

func TestApplyRatingInvariants(t *testing.T) {
	t.Parallel()
	service, err := NewDefaultService()
	require.NoError(t, err)
	params := NewDefaultParams()

	card := newTestCard(t, 4)
	sequence := []domain.Rating{
		domain.RatingGood, domain.RatingAgain, domain.RatingAgain, domain.RatingHard,
		domain.RatingEasy, domain.RatingEasy, domain.RatingGood, domain.RatingAgain,
		domain.RatingGood, domain.RatingHard, domain.RatingEasy, domain.RatingEasy,
	}

	now := testNow
	for i, rating := range sequence {
		now = now.Add(time.Duration(i+1) * time.Hour)
		prev := card

		next, err := service.ApplyRating(prev, rating, now)
		require.NoError(t, err)

		assert.Equal(t, prev.RepetitionCount+1, next.RepetitionCount)
		assert.Equal(t, next.RepetitionCount, next.CorrectCount+next.IncorrectCount)
		assert.GreaterOrEqual(t, next.CorrectCount, prev.CorrectCount)
		assert.GreaterOrEqual(t, next.IncorrectCount, prev.IncorrectCount)
		assert.False(t, next.NextReviewAt.Before(next.LastReviewedAt))
		assert.GreaterOrEqual(t, next.EaseFactor, params.MinEaseFactor)
		assert.LessOrEqual(t, next.EaseFactor, params.MaxEaseFactor)
		assert.Equal(t, next.Interval.Truncate(time.Second), next.Interval, "interval is whole seconds")
		require.NoError(t, next.Validate())

		if rating == domain.RatingAgain {
			assert.Equal(t, prev.IncorrectCount+1, next.IncorrectCount)
			assert.Zero(t, next.ConsecutiveCorrect)
		} else {
			assert.Equal(t, prev.CorrectCount+1, next.CorrectCount)
			assert.Equal(t, prev.ConsecutiveCorrect+1, next.ConsecutiveCorrect)
		}

		card = next
	}
}

func TestApplyRatingIsDeterministicAndPure(t *testing.T) {
	t.Parallel()
	service, err := NewDefaultService()
	require.NoError(t, err)

	card := review(t, service, newTestCard(t, 2), domain.RatingGood, domain.RatingHard)
	before := *card
	now := testNow.Add(10 * 24 * time.Hour)

	first, err := service.ApplyRating(card, domain.RatingEasy, now)
	require.NoError(t, err)
	second, err := service.ApplyRating(card, domain.RatingEasy, now)
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Equal(t, before, *card)
	assert.NotSame(t, card, first)
}

func TestApplyRatingRejectsInvalidInput(t *testing.T) {
	t.Parallel()
	service, err := NewDefaultService()
	require.NoError(t, err)

	card := newTestCard(t, 3)
	before := *card

	next, err := service.ApplyRating(card, domain.Rating("perfect"), testNow)
	assert.ErrorIs(t, err, domain.ErrInvalidRating)
	assert.Nil(t, next)
	assert.Equal(t, before, *card)

	_, err = service.ApplyRating(nil, domain.RatingGood, testNow)
	assert.ErrorIs(t, err, ErrNilCard)
}

func TestPostponeReview(t *testing.T) {
	t.Parallel()
	service, err := NewDefaultService()
	require.NoError(t, err)

	t.Run("scheduled card moves from its due date", func(t *testing.T) {
		card := review(t, service, newTestCard(t, 3), domain.RatingGood)
		now := card.LastReviewedAt.Add(time.Hour)

		postponed, err := service.PostponeReview(card, 3, now)
		require.NoError(t, err)
		assert.Equal(t, card.NextReviewAt.AddDate(0, 0, 3), postponed.NextReviewAt)
		assert.Equal(t, card.RepetitionCount, postponed.RepetitionCount, "postponing is not a review")
		assert.Equal(t, card.Interval, postponed.Interval)
		assert.Equal(t, now, postponed.UpdatedAt)
	})

	t.Run("overdue card moves from now", func(t *testing.T) {
		card := newTestCard(t, 3)
		now := testNow.Add(72 * time.Hour)

		postponed, err := service.PostponeReview(card, 1, now)
		require.NoError(t, err)
		assert.Equal(t, now.AddDate(0, 0, 1), postponed.NextReviewAt)
		assert.False(t, postponed.IsDue(now))
		assert.Equal(t, testNow, card.NextReviewAt, "input card must not be modified")
	})

	t.Run("invalid input", func(t *testing.T) {
		_, err := service.PostponeReview(newTestCard(t, 3), 0, testNow)
		assert.ErrorIs(t, err, ErrInvalidDays)

		_, err = service.PostponeReview(nil, 1, testNow)
		assert.ErrorIs(t, err, ErrNilCard)
	})
}

func TestInitialState(t *testing.T) {
	t.Parallel()
	service, err := NewDefaultService()
	require.NoError(t, err)

	easy := service.InitialState(1)
	hard := service.InitialState(5)

	assert.Equal(t, 10*time.Minute, easy.Interval)
	assert.Greater(t, easy.EaseFactor, hard.EaseFactor)
	assert.True(t, easy.IsNew())
	require.NoError(t, hard.Validate())
}
