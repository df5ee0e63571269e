package srs

import (
	"errors"
	"fmt"
	"time"

	"github.com/phrazzld/memory-cards/internal/domain"
)

// Common errors
var (
	ErrNilCard     = errors.New("card cannot be nil")
	ErrInvalidDays = errors.New("postpone days must be at least 1")
)

// Service defines the interface for scheduling operations.
// Implementations are pure: no I/O, no hidden randomness, inputs are never mutated.
type Service interface {
	// ApplyRating computes the card's next scheduling state after a review.
	// An invalid rating returns domain.ErrInvalidRating before anything is computed.
	ApplyRating(card *domain.Card, rating domain.Rating, now time.Time) (*domain.Card, error)

	// PostponeReview pushes the next review time forward by a number of days
	// without counting a review.
	PostponeReview(card *domain.Card, days int, now time.Time) (*domain.Card, error)

	// InitialState returns the scheduling state for a brand-new card.
	InitialState(difficultyLevel int) domain.ReviewState
}

// defaultService is the standard implementation of the Service interface
type defaultService struct {
	params *Params
}

var _ Service = (*defaultService)(nil)

// NewDefaultService creates a new scheduling service with default parameters
func NewDefaultService() (Service, error) {
	return NewServiceWithParams(NewDefaultParams())
}

// NewServiceWithParams creates a new scheduling service with custom parameters.
// The parameters are validated so that the rating order always holds.
func NewServiceWithParams(params *Params) (Service, error) {
	if params == nil {
		return nil, fmt.Errorf("%w: params cannot be nil", ErrInvalidParams)
	}
	if err := params.Validate(); err != nil {
		return nil, err
	}
	return &defaultService{
		params: params,
	}, nil
}

// ApplyRating implements the Service interface
func (s *defaultService) ApplyRating(
	card *domain.Card,
	rating domain.Rating,
	now time.Time,
) (*domain.Card, error) {
	if card == nil {
		return nil, ErrNilCard
	}

	if !rating.IsValid() {
		return nil, fmt.Errorf("%w: %q", domain.ErrInvalidRating, rating)
	}

	return calculateNextCard(card, rating, now.UTC(), s.params), nil
}

// PostponeReview implements the Service interface. Postponing an overdue card
// counts from now, so the card always leaves the due queue.
func (s *defaultService) PostponeReview(
	card *domain.Card,
	days int,
	now time.Time,
) (*domain.Card, error) {
	if card == nil {
		return nil, ErrNilCard
	}

	if days < 1 {
		return nil, ErrInvalidDays
	}

	now = now.UTC()
	base := card.NextReviewAt
	if base.Before(now) {
		base = now
	}

	postponed := card.Clone()
	postponed.NextReviewAt = base.AddDate(0, 0, days)
	postponed.UpdatedAt = now

	return postponed, nil
}

// InitialState implements the Service interface
func (s *defaultService) InitialState(difficultyLevel int) domain.ReviewState {
	return domain.ReviewState{
		EaseFactor: initialEaseFactor(difficultyLevel, s.params),
		Interval:   s.params.AgainInterval,
	}
}
