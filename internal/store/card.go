package store

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"
	"github.com/phrazzld/memory-cards/internal/domain"
)

// DueQuery selects cards due for review.
type DueQuery struct {
	UserID uuid.UUID
	// DeckID narrows the queue to one deck when set.
	DeckID *uuid.UUID
	// Now is the instant a card must be due at (NextReviewAt <= Now).
	Now time.Time
	// Limit caps the number of cards returned; callers normalise it first.
	Limit int
}

// CardStore defines the interface for card data persistence.
type CardStore interface {
	// Create saves a new card to the store.
	// Returns validation errors if the card data is invalid and
	// ErrInvalidEntity if its deck does not exist.
	Create(ctx context.Context, card *domain.Card) error

	// GetByID retrieves a card by its unique ID.
	// Returns ErrCardNotFound if the card does not exist.
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Card, error)

	// GetForUpdate retrieves a card and locks it until the surrounding
	// transaction ends. Only meaningful on a store obtained through WithTx.
	// Returns ErrCardNotFound if the card does not exist.
	GetForUpdate(ctx context.Context, id uuid.UUID) (*domain.Card, error)

	// UpdateSchedule persists the card's scheduling state if the stored version
	// still equals expectedVersion, then sets card.Version to expectedVersion+1.
	// Returns ErrCardNotFound if the card does not exist and ErrVersionConflict
	// if another writer got there first.
	UpdateSchedule(ctx context.Context, card *domain.Card, expectedVersion int) error

	// Delete removes a card from the store by its ID.
	// Returns ErrCardNotFound if the card does not exist.
	// Review logs are removed by ON DELETE CASCADE.
	Delete(ctx context.Context, id uuid.UUID) error

	// ListDue returns cards with NextReviewAt <= q.Now for the user (and deck,
	// when set), ordered by NextReviewAt then ID, at most q.Limit of them.
	// Returns an empty slice, never nil, when nothing is due.
	ListDue(ctx context.Context, q DueQuery) ([]*domain.Card, error)

	// ListByDeck returns every card in the deck in creation order.
	ListByDeck(ctx context.Context, deckID uuid.UUID) ([]*domain.Card, error)

	// WithTx returns a new CardStore instance that uses the provided transaction.
	// This allows for multiple operations to be executed within a single transaction.
	//
	// Example usage:
	//   err := store.RunInTransaction(ctx, db, func(ctx context.Context, tx *sql.Tx) error {
	//       card, err := cardStore.WithTx(tx).GetForUpdate(ctx, id)
	//       ...
	//   })
	WithTx(tx *sql.Tx) CardStore
}
