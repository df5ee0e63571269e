package session

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/phrazzld/memory-cards/internal/domain"
)

var (
	// ErrNotRateable is returned by RateCard when no card is on screen:
	// while loading, after a failed fetch or once the queue is exhausted.
	ErrNotRateable = errors.New("no card to rate in the current session state")

	// ErrAlreadyLoading is returned by Load while a fetch is in flight.
	ErrAlreadyLoading = errors.New("due cards are already loading")

	// ErrClosed is returned by every action after Close.
	ErrClosed = errors.New("review session is closed")
)

// Messages shown when a fetch error carries nothing better.
const (
	msgFetchFailed  = "Could not load your due cards. Check your connection and try again."
	msgFetchTimeout = "Loading your due cards took too long. Please try again."
)

// PersistenceError records a rating that was applied in the session but
// could not be saved. It stays in the snapshot until RetryFailedWrites.
// Snapshots and OnPersistenceFailure hand it out by value, which satisfies error.
type PersistenceError struct {
	CardID uuid.UUID
	Rating domain.Rating
	Err    error

	write write
}

// Error implements the error interface for PersistenceError.
func (e PersistenceError) Error() string {
	return fmt.Sprintf("failed to save %s rating for card %s: %v", e.Rating, e.CardID, e.Err)
}

// Unwrap returns the wrapped error to support errors.Is/errors.As.
func (e PersistenceError) Unwrap() error {
	return e.Err
}

// userMessager is implemented by errors that carry a message safe to show
// to the learner, such as an API error body.
type userMessager interface {
	UserMessage() string
}

// fetchErrorMessage turns a fetch failure into actionable text.
func fetchErrorMessage(err error) string {
	var um userMessager
	if errors.As(err, &um) {
		if msg := um.UserMessage(); msg != "" {
			return msg
		}
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return msgFetchTimeout
	}
	return msgFetchFailed
}
