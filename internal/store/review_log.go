package store

import (
	"context"
	"database/sql"

	"github.com/google/uuid"
	"github.com/phrazzld/memory-cards/internal/domain"
)

// ReviewLogStore defines the interface for review history persistence.
// Entries are append-only.
type ReviewLogStore interface {
	// Create appends a review log entry.
	// Returns ErrInvalidEntity if the card does not exist.
	Create(ctx context.Context, entry *domain.ReviewLog) error

	// ListByCard returns the card's most recent entries first, at most limit of them.
	ListByCard(ctx context.Context, cardID uuid.UUID, limit int) ([]*domain.ReviewLog, error)

	// WithTx returns a new ReviewLogStore instance that uses the provided transaction.
	WithTx(tx *sql.Tx) ReviewLogStore
}
