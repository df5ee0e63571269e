package domain

import (
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testNow = time.Date(2025, 3, 14, 9, 26, 53, 0, time.UTC)

func testDeck(t *testing.T) *Deck {
	t.Helper()
	deck, err := NewDeck(uuid.New(), "course-101", "Cell biology", "", testNow)
	require.NoError(t, err)
	return deck
}

func seedState() ReviewState {
	return ReviewState{EaseFactor: 2.5, Interval: 10 * time.Minute}
}

func TestNewCard(t *testing.T) {
	t.Parallel()

	deck := testDeck(t)
	draft := CardDraft{
		Question:        "  What is the powerhouse of the cell? ",
		Answer:          "The mitochondria",
		ChapterID:       "ch-2",
		SectionID:       "sec-4",
		DifficultyLevel: 2,
	}

	card, err := NewCard(deck, draft, seedState(), testNow)
	require.NoError(t, err)

	assert.NotEqual(t, uuid.Nil, card.ID)
	assert.Equal(t, deck.ID, card.DeckID)
	assert.Equal(t, deck.UserID, card.UserID)
	assert.Equal(t, deck.CourseID, card.CourseID)
	assert.Equal(t, "What is the powerhouse of the cell?", card.Question)
	assert.Equal(t, 1, card.Version)
	assert.True(t, card.IsNew())
	assert.True(t, card.LastReviewedAt.IsZero())
	assert.True(t, card.IsDue(testNow), "a new card is due immediately")
	assert.Equal(t, testNow, card.NextReviewAt)
}

func TestNewCardValidation(t *testing.T) {
	t.Parallel()

	deck := testDeck(t)
	valid := CardDraft{Question: "Q", Answer: "A", DifficultyLevel: 3}

	tests := []struct {
		name    string
		mutate  func(d *CardDraft)
		wantErr error
	}{
		{"empty question", func(d *CardDraft) { d.Question = "   " }, ErrCardQuestionEmpty},
		{"empty answer", func(d *CardDraft) { d.Answer = "" }, ErrCardAnswerEmpty},
		{"difficulty too low", func(d *CardDraft) { d.DifficultyLevel = 0 }, ErrInvalidDifficultyLevel},
		{"difficulty too high", func(d *CardDraft) { d.DifficultyLevel = 6 }, ErrInvalidDifficultyLevel},
		{"question too long", func(d *CardDraft) {
			d.Question = strings.Repeat("x", MaxCardTextLength+1)
		}, ErrCardTextTooLong},
		{"chapter too long", func(d *CardDraft) {
			d.ChapterID = strings.Repeat("c", MaxExternalIDLength+1)
		}, ErrCardReferenceTooLong},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			draft := valid
			tc.mutate(&draft)
			_, err := NewCard(deck, draft, seedState(), testNow)
			assert.ErrorIs(t, err, tc.wantErr)
			assert.ErrorIs(t, err, ErrValidation)
		})
	}

	_, err := NewCard(nil, valid, seedState(), testNow)
	assert.ErrorIs(t, err, ErrCardDeckIDEmpty)
}

func TestReviewStateValidate(t *testing.T) {
	t.Parallel()

	last := testNow
	tests := []struct {
		name    string
		state   ReviewState
		wantErr error
	}{
		{"seed state", seedState(), nil},
		{"counts add up", ReviewState{
			RepetitionCount: 3, CorrectCount: 2, IncorrectCount: 1,
			EaseFactor: 2.1, Interval: time.Hour,
			LastReviewedAt: last, NextReviewAt: last.Add(time.Hour),
		}, nil},
		{"counts do not add up", ReviewState{
			RepetitionCount: 3, CorrectCount: 1, IncorrectCount: 1,
			EaseFactor: 2.1, Interval: time.Hour,
		}, ErrInvalidReviewCounts},
		{"negative counter", ReviewState{
			RepetitionCount: -1, CorrectCount: 0, IncorrectCount: -1,
			EaseFactor: 2.1, Interval: time.Hour,
		}, ErrNegativeReviewCounter},
		{"zero interval", ReviewState{EaseFactor: 2.5}, ErrInvalidInterval},
		{"zero ease", ReviewState{Interval: time.Hour}, ErrInvalidEaseFactor},
		{"next before last", ReviewState{
			RepetitionCount: 1, CorrectCount: 1,
			EaseFactor: 2.5, Interval: time.Hour,
			LastReviewedAt: last, NextReviewAt: last.Add(-time.Second),
		}, ErrNextReviewBeforeLast},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			err := tc.state.Validate()
			if tc.wantErr == nil {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, tc.wantErr)
		})
	}
}

func TestCardIsDue(t *testing.T) {
	t.Parallel()

	card := &Card{ReviewState: ReviewState{NextReviewAt: testNow}}
	assert.False(t, card.IsDue(testNow.Add(-time.Nanosecond)))
	assert.True(t, card.IsDue(testNow))
	assert.True(t, card.IsDue(testNow.Add(time.Hour)))
}

func TestCardClone(t *testing.T) {
	t.Parallel()

	deck := testDeck(t)
	card, err := NewCard(deck, CardDraft{Question: "Q", Answer: "A", DifficultyLevel: 1}, seedState(), testNow)
	require.NoError(t, err)

	clone := card.Clone()
	clone.RepetitionCount = 7
	clone.Question = "changed"

	assert.Equal(t, 0, card.RepetitionCount)
	assert.Equal(t, "Q", card.Question)
}
