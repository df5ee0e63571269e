package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/phrazzld/memory-cards/internal/domain"
	"github.com/phrazzld/memory-cards/internal/platform/logger"
	"github.com/phrazzld/memory-cards/internal/store"
)

// SQLiteDeckStore implements the store.DeckStore interface on SQLite.
type SQLiteDeckStore struct {
	db     store.DBTX
	logger *slog.Logger
}

// NewSQLiteDeckStore creates a new SQLite implementation of the DeckStore interface.
// If logger is nil, a default logger will be used.
func NewSQLiteDeckStore(db store.DBTX, logger *slog.Logger) *SQLiteDeckStore {
	if db == nil {
		panic("db cannot be nil")
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &SQLiteDeckStore{
		db:     db,
		logger: logger.With(slog.String("component", "deck_store")),
	}
}

var _ store.DeckStore = (*SQLiteDeckStore)(nil)

// Create implements store.DeckStore.Create
func (s *SQLiteDeckStore) Create(ctx context.Context, deck *domain.Deck) error {
	log := logger.FromContextOrDefault(ctx, s.logger)

	if err := deck.Validate(); err != nil {
		log.Warn("deck validation failed during create",
			slog.String("error", err.Error()),
			slog.String("deck_id", deck.ID.String()))
		return err
	}

	query := `
		INSERT INTO decks (id, user_id, course_id, title, description, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`
	_, err := s.db.ExecContext(ctx, query,
		deck.ID,
		deck.UserID,
		deck.CourseID,
		deck.Title,
		deck.Description,
		toUnixNano(deck.CreatedAt),
		toUnixNano(deck.UpdatedAt),
	)
	if err != nil {
		log.Error("failed to create deck",
			slog.String("error", err.Error()),
			slog.String("deck_id", deck.ID.String()),
			slog.String("user_id", deck.UserID.String()))
		return wrapError("deck", "create", err)
	}

	log.Info("deck created successfully",
		slog.String("deck_id", deck.ID.String()),
		slog.String("user_id", deck.UserID.String()))
	return nil
}

// GetByID implements store.DeckStore.GetByID
func (s *SQLiteDeckStore) GetByID(ctx context.Context, id uuid.UUID) (*domain.Deck, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)
	log.Debug("retrieving deck by ID", slog.String("deck_id", id.String()))

	query := `
		SELECT id, user_id, course_id, title, description, created_at, updated_at
		FROM decks
		WHERE id = ?
	`
	deck, err := scanDeck(s.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			log.Debug("deck not found", slog.String("deck_id", id.String()))
			return nil, store.ErrDeckNotFound
		}
		log.Error("failed to get deck by ID",
			slog.String("error", err.Error()),
			slog.String("deck_id", id.String()))
		return nil, wrapError("deck", "get", err)
	}

	return deck, nil
}

// ListByUser implements store.DeckStore.ListByUser
func (s *SQLiteDeckStore) ListByUser(ctx context.Context, userID uuid.UUID) ([]*domain.Deck, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	query := `
		SELECT id, user_id, course_id, title, description, created_at, updated_at
		FROM decks
		WHERE user_id = ?
		ORDER BY created_at DESC, id ASC
	`
	rows, err := s.db.QueryContext(ctx, query, userID)
	if err != nil {
		log.Error("failed to list decks",
			slog.String("error", err.Error()),
			slog.String("user_id", userID.String()))
		return nil, wrapError("deck", "list", err)
	}
	defer func() {
		if err := rows.Close(); err != nil {
			log.Error("failed to close rows", slog.String("error", err.Error()))
		}
	}()

	decks := []*domain.Deck{}
	for rows.Next() {
		deck, err := scanDeck(rows)
		if err != nil {
			log.Error("failed to scan deck row", slog.String("error", err.Error()))
			return nil, fmt.Errorf("failed to scan deck: %w", err)
		}
		decks = append(decks, deck)
	}
	if err := rows.Err(); err != nil {
		log.Error("error iterating deck rows", slog.String("error", err.Error()))
		return nil, wrapError("deck", "list", err)
	}

	log.Debug("decks listed",
		slog.String("user_id", userID.String()),
		slog.Int("count", len(decks)))
	return decks, nil
}

// Delete implements store.DeckStore.Delete
func (s *SQLiteDeckStore) Delete(ctx context.Context, id uuid.UUID) error {
	log := logger.FromContextOrDefault(ctx, s.logger)

	result, err := s.db.ExecContext(ctx, `DELETE FROM decks WHERE id = ?`, id)
	if err != nil {
		log.Error("failed to delete deck",
			slog.String("error", err.Error()),
			slog.String("deck_id", id.String()))
		return wrapError("deck", "delete", err)
	}

	if err := checkRowsAffected(result, store.ErrDeckNotFound); err != nil {
		log.Debug("deck not found for deletion", slog.String("deck_id", id.String()))
		return err
	}

	log.Info("deck deleted successfully", slog.String("deck_id", id.String()))
	return nil
}

// WithTx implements store.DeckStore.WithTx
func (s *SQLiteDeckStore) WithTx(tx *sql.Tx) store.DeckStore {
	return &SQLiteDeckStore{
		db:     tx,
		logger: s.logger,
	}
}

func scanDeck(row rowScanner) (*domain.Deck, error) {
	var deck domain.Deck
	var createdAt, updatedAt int64

	if err := row.Scan(
		&deck.ID,
		&deck.UserID,
		&deck.CourseID,
		&deck.Title,
		&deck.Description,
		&createdAt,
		&updatedAt,
	); err != nil {
		return nil, err
	}

	deck.CreatedAt = fromUnixNano(createdAt)
	deck.UpdatedAt = fromUnixNano(updatedAt)
	return &deck, nil
}
