package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/phrazzld/memory-cards/internal/domain"
	"github.com/phrazzld/memory-cards/internal/platform/logger"
	"github.com/phrazzld/memory-cards/internal/store"
)

const cardColumns = `id, deck_id, user_id, course_id, chapter_id, section_id,
	question, answer, difficulty_level,
	repetition_count, correct_count, incorrect_count, consecutive_correct,
	ease_factor, interval_seconds, last_reviewed_at, next_review_at,
	version, created_at, updated_at`

// PostgresCardStore implements the store.CardStore interface
// using a PostgreSQL database as the storage backend.
type PostgresCardStore struct {
	db     store.DBTX
	logger *slog.Logger
}

// NewPostgresCardStore creates a new PostgreSQL implementation of the CardStore interface.
// If logger is nil, a default logger will be used.
func NewPostgresCardStore(db store.DBTX, logger *slog.Logger) *PostgresCardStore {
	if db == nil {
		panic("db cannot be nil")
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &PostgresCardStore{
		db:     db,
		logger: logger.With(slog.String("component", "card_store")),
	}
}

// Ensure PostgresCardStore implements store.CardStore interface
var _ store.CardStore = (*PostgresCardStore)(nil)

// Create implements store.CardStore.Create
// Returns store.ErrInvalidEntity if the deck doesn't exist (foreign key violation).
func (s *PostgresCardStore) Create(ctx context.Context, card *domain.Card) error {
	log := logger.FromContextOrDefault(ctx, s.logger)

	if err := card.Validate(); err != nil {
		log.Warn("card validation failed during create",
			slog.String("error", err.Error()),
			slog.String("card_id", card.ID.String()))
		return err
	}

	query := `INSERT INTO cards (` + cardColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10,
			$11, $12, $13, $14, $15, $16, $17, $18, $19, $20)`
	_, err := s.db.ExecContext(ctx, query,
		card.ID,
		card.DeckID,
		card.UserID,
		card.CourseID,
		card.ChapterID,
		card.SectionID,
		card.Question,
		card.Answer,
		card.DifficultyLevel,
		card.RepetitionCount,
		card.CorrectCount,
		card.IncorrectCount,
		card.ConsecutiveCorrect,
		card.EaseFactor,
		int64(card.Interval/time.Second),
		nullTime(card.LastReviewedAt),
		card.NextReviewAt,
		card.Version,
		card.CreatedAt,
		card.UpdatedAt,
	)
	if err != nil {
		if IsForeignKeyViolation(err) {
			log.Warn("foreign key violation during card creation",
				slog.String("card_id", card.ID.String()),
				slog.String("deck_id", card.DeckID.String()))
			return fmt.Errorf("%w: deck with ID %s not found", store.ErrInvalidEntity, card.DeckID)
		}
		log.Error("failed to create card",
			slog.String("error", err.Error()),
			slog.String("card_id", card.ID.String()))
		return wrapError("card", "create", err)
	}

	log.Debug("card created successfully",
		slog.String("card_id", card.ID.String()),
		slog.String("deck_id", card.DeckID.String()))
	return nil
}

// GetByID implements store.CardStore.GetByID
// Returns store.ErrCardNotFound if the card does not exist.
func (s *PostgresCardStore) GetByID(ctx context.Context, id uuid.UUID) (*domain.Card, error) {
	return s.getCard(ctx, `SELECT `+cardColumns+` FROM cards WHERE id = $1`, id)
}

// GetForUpdate implements store.CardStore.GetForUpdate
// The row stays locked until the surrounding transaction commits or rolls back.
func (s *PostgresCardStore) GetForUpdate(ctx context.Context, id uuid.UUID) (*domain.Card, error) {
	return s.getCard(ctx, `SELECT `+cardColumns+` FROM cards WHERE id = $1 FOR UPDATE`, id)
}

func (s *PostgresCardStore) getCard(ctx context.Context, query string, id uuid.UUID) (*domain.Card, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)
	log.Debug("retrieving card by ID", slog.String("card_id", id.String()))

	card, err := scanCard(s.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			log.Debug("card not found", slog.String("card_id", id.String()))
			return nil, store.ErrCardNotFound
		}
		log.Error("failed to get card by ID",
			slog.String("error", err.Error()),
			slog.String("card_id", id.String()))
		return nil, wrapError("card", "get", err)
	}

	return card, nil
}

// UpdateSchedule implements store.CardStore.UpdateSchedule
// Returns store.ErrCardNotFound if the card does not exist and
// store.ErrVersionConflict if expectedVersion is stale.
func (s *PostgresCardStore) UpdateSchedule(ctx context.Context, card *domain.Card, expectedVersion int) error {
	log := logger.FromContextOrDefault(ctx, s.logger)

	if err := card.ReviewState.Validate(); err != nil {
		log.Warn("review state validation failed during update",
			slog.String("error", err.Error()),
			slog.String("card_id", card.ID.String()))
		return err
	}

	query := `
		UPDATE cards SET
			repetition_count = $1, correct_count = $2, incorrect_count = $3, consecutive_correct = $4,
			ease_factor = $5, interval_seconds = $6, last_reviewed_at = $7, next_review_at = $8,
			updated_at = $9, version = $10 + 1
		WHERE id = $11 AND version = $10
	`
	result, err := s.db.ExecContext(ctx, query,
		card.RepetitionCount,
		card.CorrectCount,
		card.IncorrectCount,
		card.ConsecutiveCorrect,
		card.EaseFactor,
		int64(card.Interval/time.Second),
		nullTime(card.LastReviewedAt),
		card.NextReviewAt,
		card.UpdatedAt,
		expectedVersion,
		card.ID,
	)
	if err != nil {
		log.Error("failed to update card schedule",
			slog.String("error", err.Error()),
			slog.String("card_id", card.ID.String()))
		return wrapError("card", "update_schedule", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return s.classifyMissedUpdate(ctx, log, card.ID, expectedVersion)
	}

	card.Version = expectedVersion + 1
	log.Debug("card schedule updated",
		slog.String("card_id", card.ID.String()),
		slog.Int("version", card.Version),
		slog.Time("next_review_at", card.NextReviewAt))
	return nil
}

func (s *PostgresCardStore) classifyMissedUpdate(
	ctx context.Context,
	log *slog.Logger,
	id uuid.UUID,
	expectedVersion int,
) error {
	var current int
	err := s.db.QueryRowContext(ctx, `SELECT version FROM cards WHERE id = $1`, id).Scan(&current)
	if errors.Is(err, sql.ErrNoRows) {
		log.Debug("card not found for schedule update", slog.String("card_id", id.String()))
		return store.ErrCardNotFound
	}
	if err != nil {
		return wrapError("card", "update_schedule", err)
	}

	log.Warn("stale card version",
		slog.String("card_id", id.String()),
		slog.Int("expected_version", expectedVersion),
		slog.Int("current_version", current))
	return fmt.Errorf("%w: card %s is at version %d, expected %d",
		store.ErrVersionConflict, id, current, expectedVersion)
}

// Delete implements store.CardStore.Delete
func (s *PostgresCardStore) Delete(ctx context.Context, id uuid.UUID) error {
	log := logger.FromContextOrDefault(ctx, s.logger)

	result, err := s.db.ExecContext(ctx, `DELETE FROM cards WHERE id = $1`, id)
	if err != nil {
		log.Error("failed to delete card",
			slog.String("error", err.Error()),
			slog.String("card_id", id.String()))
		return wrapError("card", "delete", err)
	}

	if err := CheckRowsAffected(result, store.ErrCardNotFound); err != nil {
		return err
	}

	log.Info("card deleted successfully", slog.String("card_id", id.String()))
	return nil
}

// ListDue implements store.CardStore.ListDue
// The (user_id, next_review_at, id) index serves both the filter and the order.
func (s *PostgresCardStore) ListDue(ctx context.Context, q store.DueQuery) ([]*domain.Card, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	query := `SELECT ` + cardColumns + ` FROM cards
		WHERE user_id = $1 AND next_review_at <= $2 AND ($3::uuid IS NULL OR deck_id = $3)
		ORDER BY next_review_at ASC, id ASC
		LIMIT $4`

	var deckID uuid.NullUUID
	if q.DeckID != nil {
		deckID = uuid.NullUUID{UUID: *q.DeckID, Valid: true}
	}

	cards, err := s.queryCards(ctx, log, query, q.UserID, q.Now, deckID, q.Limit)
	if err != nil {
		log.Error("failed to list due cards",
			slog.String("error", err.Error()),
			slog.String("user_id", q.UserID.String()))
		return nil, err
	}

	log.Debug("due cards listed",
		slog.String("user_id", q.UserID.String()),
		slog.Int("count", len(cards)))
	return cards, nil
}

// ListByDeck implements store.CardStore.ListByDeck
func (s *PostgresCardStore) ListByDeck(ctx context.Context, deckID uuid.UUID) ([]*domain.Card, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	cards, err := s.queryCards(ctx, log,
		`SELECT `+cardColumns+` FROM cards WHERE deck_id = $1 ORDER BY created_at ASC, id ASC`, deckID)
	if err != nil {
		log.Error("failed to list deck cards",
			slog.String("error", err.Error()),
			slog.String("deck_id", deckID.String()))
		return nil, err
	}
	return cards, nil
}

// WithTx implements store.CardStore.WithTx
func (s *PostgresCardStore) WithTx(tx *sql.Tx) store.CardStore {
	return &PostgresCardStore{
		db:     tx,
		logger: s.logger,
	}
}

func (s *PostgresCardStore) queryCards(
	ctx context.Context,
	log *slog.Logger,
	query string,
	args ...any,
) ([]*domain.Card, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, wrapError("card", "query", err)
	}
	defer func() {
		if err := rows.Close(); err != nil {
			log.Error("failed to close rows", slog.String("error", err.Error()))
		}
	}()

	cards := []*domain.Card{}
	for rows.Next() {
		card, err := scanCard(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan card: %w", err)
		}
		cards = append(cards, card)
	}
	if err := rows.Err(); err != nil {
		return nil, wrapError("card", "query", err)
	}
	return cards, nil
}

func scanCard(row rowScanner) (*domain.Card, error) {
	var card domain.Card
	var intervalSeconds int64
	var lastReviewedAt sql.NullTime

	if err := row.Scan(
		&card.ID,
		&card.DeckID,
		&card.UserID,
		&card.CourseID,
		&card.ChapterID,
		&card.SectionID,
		&card.Question,
		&card.Answer,
		&card.DifficultyLevel,
		&card.RepetitionCount,
		&card.CorrectCount,
		&card.IncorrectCount,
		&card.ConsecutiveCorrect,
		&card.EaseFactor,
		&intervalSeconds,
		&lastReviewedAt,
		&card.NextReviewAt,
		&card.Version,
		&card.CreatedAt,
		&card.UpdatedAt,
	); err != nil {
		return nil, err
	}

	card.Interval = time.Duration(intervalSeconds) * time.Second
	if lastReviewedAt.Valid {
		card.LastReviewedAt = lastReviewedAt.Time.UTC()
	}
	card.NextReviewAt = card.NextReviewAt.UTC()
	card.CreatedAt = card.CreatedAt.UTC()
	card.UpdatedAt = card.UpdatedAt.UTC()
	return &card, nil
}

func nullTime(t time.Time) sql.NullTime {
	return sql.NullTime{Time: t, Valid: !t.IsZero()}
}
