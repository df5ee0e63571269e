// Package card_review implements the due queue and review submission use
// cases: which cards a learner should see next, and how a rating moves a
// card's schedule.
package card_review

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/phrazzld/memory-cards/internal/domain"
)

// Due queue and history limits.
const (
	DefaultDueLimit     = 20
	MaxDueLimit         = 50
	DefaultHistoryLimit = 20
	MaxHistoryLimit     = 100
)

// DueCardsQuery selects the due queue for a learner.
type DueCardsQuery struct {
	UserID uuid.UUID
	// DeckID narrows the queue to one deck when set.
	DeckID *uuid.UUID
	// Limit caps the queue; values <= 0 select the default and values above
	// the maximum are clamped.
	Limit int
}

// ReviewSubmission is one rating of one card.
type ReviewSubmission struct {
	UserID uuid.UUID
	CardID uuid.UUID
	// DeckID, when set, must match the card's deck.
	DeckID uuid.UUID
	Rating domain.Rating
	// ReviewTime is how long the learner spent on the card.
	ReviewTime time.Duration
	// SessionDuration is the length of the review session so far.
	SessionDuration time.Duration
	// ExpectedVersion, when set, makes the review fail with
	// store.ErrVersionConflict if the card changed since the caller read it.
	ExpectedVersion *int
}

// CardReviewService provides the due queue and applies ratings.
//
// SubmitReview, PostponeCard and GetReviewHistory check that userID owns the
// card; uuid.Nil means a trusted caller and skips the check.
type CardReviewService interface {
	// GetDueCards returns cards with NextReviewAt <= now for the query's user
	// (and deck), ordered by NextReviewAt then ID. The result is never nil;
	// an empty queue is not an error.
	GetDueCards(ctx context.Context, query DueCardsQuery) ([]*domain.Card, error)

	// SubmitReview applies the rating to the card and persists the new
	// schedule and a review log entry in one transaction.
	//
	// Returns:
	//   - domain.ErrInvalidRating for a rating outside again/hard/good/easy
	//   - store.ErrCardNotFound when the card does not exist
	//   - ErrCardNotOwned when the card belongs to another user
	//   - ErrDeckMismatch when DeckID is set and differs from the card's deck
	//   - store.ErrVersionConflict when ExpectedVersion is stale
	SubmitReview(ctx context.Context, submission ReviewSubmission) (*domain.Card, error)

	// PostponeCard moves the card's next review forward by days without
	// counting a review.
	PostponeCard(ctx context.Context, userID, cardID uuid.UUID, days int) (*domain.Card, error)

	// GetReviewHistory returns the card's most recent review log entries first.
	GetReviewHistory(ctx context.Context, userID, cardID uuid.UUID, limit int) ([]*domain.ReviewLog, error)
}

// Common error types for CardReviewService
var (
	// ErrCardNotOwned indicates that the user does not own the card.
	ErrCardNotOwned = errors.New("unauthorized access: card not owned by user")

	// ErrDeckMismatch indicates the submission named a deck the card is not in.
	ErrDeckMismatch = errors.New("card does not belong to the given deck")
)

// ServiceError wraps errors from the card review service with additional context.
// This allows consumers to differentiate between different types of service errors
// using errors.As instead of string matching.
type ServiceError struct {
	// Operation is the operation that failed (e.g., "get_due_cards", "submit_review")
	Operation string
	// Message is a human-readable description of the error
	Message string
	// Err is the underlying error that caused the failure
	Err error
}

// Error implements the error interface for ServiceError.
func (e *ServiceError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s operation failed: %s: %v", e.Operation, e.Message, e.Err)
	}
	return fmt.Sprintf("%s operation failed: %s", e.Operation, e.Message)
}

// Unwrap returns the wrapped error to support errors.Is/errors.As.
func (e *ServiceError) Unwrap() error {
	return e.Err
}

func newServiceError(operation, message string, err error) *ServiceError {
	return &ServiceError{
		Operation: operation,
		Message:   message,
		Err:       err,
	}
}

// NormalizeLimit applies the limit policy: values <= 0 become def, values
// above max become max.
func NormalizeLimit(limit, def, max int) int {
	if limit <= 0 {
		return def
	}
	if limit > max {
		return max
	}
	return limit
}
