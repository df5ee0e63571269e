package domain

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Review log validation errors
var (
	ErrReviewLogCardIDEmpty = fmt.Errorf("%w: review log card ID cannot be empty", ErrValidation)
	ErrReviewLogUserIDEmpty = fmt.Errorf("%w: review log user ID cannot be empty", ErrValidation)
	ErrNegativeDuration     = fmt.Errorf("%w: review and session durations cannot be negative", ErrValidation)
)

// ReviewLog records one applied rating: what the learner answered, how long it
// took, and how the schedule moved as a result.
type ReviewLog struct {
	ID              uuid.UUID     `json:"id"`
	CardID          uuid.UUID     `json:"cardId"`
	DeckID          uuid.UUID     `json:"deckId"`
	UserID          uuid.UUID     `json:"userId"`
	Rating          Rating        `json:"rating"`
	ReviewedAt      time.Time     `json:"reviewedAt"`
	ReviewTime      time.Duration `json:"reviewTime"`
	SessionDuration time.Duration `json:"sessionDuration"`
	IntervalBefore  time.Duration `json:"intervalBefore"`
	IntervalAfter   time.Duration `json:"intervalAfter"`
	EaseFactorAfter float64       `json:"easeFactorAfter"`
	NextReviewAt    time.Time     `json:"nextReviewAt"`
}

// NewReviewLog builds the log entry for the transition from before to after.
func NewReviewLog(
	before, after *Card,
	rating Rating,
	reviewTime, sessionDuration time.Duration,
) (*ReviewLog, error) {
	entry := &ReviewLog{
		ID:              uuid.New(),
		CardID:          after.ID,
		DeckID:          after.DeckID,
		UserID:          after.UserID,
		Rating:          rating,
		ReviewedAt:      after.LastReviewedAt,
		ReviewTime:      reviewTime,
		SessionDuration: sessionDuration,
		IntervalBefore:  before.Interval,
		IntervalAfter:   after.Interval,
		EaseFactorAfter: after.EaseFactor,
		NextReviewAt:    after.NextReviewAt,
	}

	if err := entry.Validate(); err != nil {
		return nil, err
	}

	return entry, nil
}

// Validate checks if the ReviewLog has valid data.
func (l *ReviewLog) Validate() error {
	if l.CardID == uuid.Nil {
		return ErrReviewLogCardIDEmpty
	}
	if l.UserID == uuid.Nil {
		return ErrReviewLogUserIDEmpty
	}
	if !l.Rating.IsValid() {
		return ErrInvalidRating
	}
	if l.ReviewTime < 0 || l.SessionDuration < 0 {
		return ErrNegativeDuration
	}
	return nil
}
