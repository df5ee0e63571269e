package domain

import (
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
)

// Card content and difficulty limits.
const (
	MinDifficultyLevel     = 1
	MaxDifficultyLevel     = 5
	DefaultDifficultyLevel = 3
	MaxCardTextLength      = 10000
)

// Card-specific validation errors
var (
	ErrCardIDEmpty            = fmt.Errorf("%w: card ID cannot be empty", ErrValidation)
	ErrCardDeckIDEmpty        = fmt.Errorf("%w: card deck ID cannot be empty", ErrValidation)
	ErrCardUserIDEmpty        = fmt.Errorf("%w: card user ID cannot be empty", ErrValidation)
	ErrCardQuestionEmpty      = fmt.Errorf("%w: card question cannot be empty", ErrValidation)
	ErrCardAnswerEmpty        = fmt.Errorf("%w: card answer cannot be empty", ErrValidation)
	ErrCardTextTooLong        = fmt.Errorf("%w: card text is too long", ErrValidation)
	ErrCardReferenceTooLong   = fmt.Errorf("%w: card chapter or section ID is too long", ErrValidation)
	ErrInvalidDifficultyLevel = fmt.Errorf("%w: difficulty level must be between 1 and 5", ErrValidation)
	ErrInvalidReviewCounts    = fmt.Errorf("%w: repetition count must equal correct plus incorrect", ErrValidation)
	ErrNegativeReviewCounter  = fmt.Errorf("%w: review counters cannot be negative", ErrValidation)
	ErrInvalidInterval        = fmt.Errorf("%w: interval must be positive", ErrValidation)
	ErrInvalidEaseFactor      = fmt.Errorf("%w: ease factor must be positive", ErrValidation)
	ErrNextReviewBeforeLast   = fmt.Errorf("%w: next review cannot precede last review", ErrValidation)
)

// ReviewState is the scheduling state of a card. The zero LastReviewedAt means
// the card has never been reviewed.
type ReviewState struct {
	RepetitionCount    int           `json:"repetitionCount"`
	CorrectCount       int           `json:"correctCount"`
	IncorrectCount     int           `json:"incorrectCount"`
	ConsecutiveCorrect int           `json:"consecutiveCorrect"`
	EaseFactor         float64       `json:"easeFactor"`
	Interval           time.Duration `json:"interval"`
	LastReviewedAt     time.Time     `json:"lastReviewedAt"`
	NextReviewAt       time.Time     `json:"nextReviewAt"`
}

// Validate checks the invariants every persisted review state must satisfy.
func (s ReviewState) Validate() error {
	if s.RepetitionCount < 0 || s.CorrectCount < 0 || s.IncorrectCount < 0 || s.ConsecutiveCorrect < 0 {
		return ErrNegativeReviewCounter
	}
	if s.RepetitionCount != s.CorrectCount+s.IncorrectCount {
		return ErrInvalidReviewCounts
	}
	if s.Interval <= 0 {
		return ErrInvalidInterval
	}
	if s.EaseFactor <= 0 {
		return ErrInvalidEaseFactor
	}
	if !s.LastReviewedAt.IsZero() && s.NextReviewAt.Before(s.LastReviewedAt) {
		return ErrNextReviewBeforeLast
	}
	return nil
}

// IsNew reports whether the card has never been reviewed.
func (s ReviewState) IsNew() bool {
	return s.RepetitionCount == 0
}

// Card is a single question/answer unit inside a deck, together with the
// learner's scheduling state for it.
type Card struct {
	ID              uuid.UUID `json:"id"`
	DeckID          uuid.UUID `json:"deckId"`
	UserID          uuid.UUID `json:"userId"`
	CourseID        string    `json:"courseId"`
	ChapterID       string    `json:"chapterId,omitempty"`
	SectionID       string    `json:"sectionId,omitempty"`
	Question        string    `json:"question"`
	Answer          string    `json:"answer"`
	DifficultyLevel int       `json:"difficultyLevel"`
	ReviewState
	Version   int       `json:"version"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// CardDraft carries the learner-supplied fields of a card before it joins a deck.
type CardDraft struct {
	Question        string
	Answer          string
	ChapterID       string
	SectionID       string
	DifficultyLevel int
}

// NewCard creates a card in deck from draft. The card inherits the deck's owner
// and course, starts from the given scheduling state and is due at now.
// Returns an error if validation fails.
func NewCard(deck *Deck, draft CardDraft, state ReviewState, now time.Time) (*Card, error) {
	if deck == nil {
		return nil, ErrCardDeckIDEmpty
	}

	now = now.UTC()
	state.LastReviewedAt = time.Time{}
	state.NextReviewAt = now

	card := &Card{
		ID:              uuid.New(),
		DeckID:          deck.ID,
		UserID:          deck.UserID,
		CourseID:        deck.CourseID,
		ChapterID:       strings.TrimSpace(draft.ChapterID),
		SectionID:       strings.TrimSpace(draft.SectionID),
		Question:        strings.TrimSpace(draft.Question),
		Answer:          strings.TrimSpace(draft.Answer),
		DifficultyLevel: draft.DifficultyLevel,
		ReviewState:     state,
		Version:         1,
		CreatedAt:       now,
		UpdatedAt:       now,
	}

	if err := card.Validate(); err != nil {
		return nil, err
	}

	return card, nil
}

// Validate checks if the Card has valid data.
// Returns an error if any field fails validation.
func (c *Card) Validate() error {
	if c.ID == uuid.Nil {
		return ErrCardIDEmpty
	}
	if c.DeckID == uuid.Nil {
		return ErrCardDeckIDEmpty
	}
	if c.UserID == uuid.Nil {
		return ErrCardUserIDEmpty
	}
	if c.Question == "" {
		return ErrCardQuestionEmpty
	}
	if c.Answer == "" {
		return ErrCardAnswerEmpty
	}
	if utf8.RuneCountInString(c.Question) > MaxCardTextLength ||
		utf8.RuneCountInString(c.Answer) > MaxCardTextLength {
		return ErrCardTextTooLong
	}
	if utf8.RuneCountInString(c.ChapterID) > MaxExternalIDLength ||
		utf8.RuneCountInString(c.SectionID) > MaxExternalIDLength {
		return ErrCardReferenceTooLong
	}
	if c.DifficultyLevel < MinDifficultyLevel || c.DifficultyLevel > MaxDifficultyLevel {
		return ErrInvalidDifficultyLevel
	}
	return c.ReviewState.Validate()
}

// IsDue reports whether the card should be shown at now.
func (c *Card) IsDue(now time.Time) bool {
	return !now.Before(c.NextReviewAt)
}

// Clone returns a copy of the card that shares no mutable state with c.
func (c *Card) Clone() *Card {
	clone := *c
	return &clone
}
