package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strings"
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

// SQLiteCardStore implements the store.CardStore interface on SQLite.
type SQLiteCardStore struct {
	db     store.DBTX
	logger *slog.Logger
}

// NewSQLiteCardStore creates a new SQLite implementation of the CardStore interface.
// If logger is nil, a default logger will be used.
func NewSQLiteCardStore(db store.DBTX, logger *slog.Logger) *SQLiteCardStore {
	if db == nil {
		panic("db cannot be nil")
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &SQLiteCardStore{
		db:     db,
		logger: logger.With(slog.String("component", "card_store")),
	}
}

var _ store.CardStore = (*SQLiteCardStore)(nil)

// Create implements store.CardStore.Create
func (s *SQLiteCardStore) Create(ctx context.Context, card *domain.Card) error {
	log := logger.FromContextOrDefault(ctx, s.logger)

	if err := card.Validate(); err != nil {
		log.Warn("card validation failed during create",
			slog.String("error", err.Error()),
			slog.String("card_id", card.ID.String()))
		return err
	}

	query := `INSERT INTO cards (` + cardColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
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
		nullableUnixNano(card.LastReviewedAt),
		toUnixNano(card.NextReviewAt),
		card.Version,
		toUnixNano(card.CreatedAt),
		toUnixNano(card.UpdatedAt),
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
func (s *SQLiteCardStore) GetByID(ctx context.Context, id uuid.UUID) (*domain.Card, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)
	log.Debug("retrieving card by ID", slog.String("card_id", id.String()))

	card, err := scanCard(s.db.QueryRowContext(ctx,
		`SELECT `+cardColumns+` FROM cards WHERE id = ?`, id))
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

// GetForUpdate implements store.CardStore.GetForUpdate. SQLite has no row
// locks; transactions opened with _txlock=immediate already hold the database
// write lock, so a plain read is enough.
func (s *SQLiteCardStore) GetForUpdate(ctx context.Context, id uuid.UUID) (*domain.Card, error) {
	return s.GetByID(ctx, id)
}

// UpdateSchedule implements store.CardStore.UpdateSchedule
func (s *SQLiteCardStore) UpdateSchedule(ctx context.Context, card *domain.Card, expectedVersion int) error {
	log := logger.FromContextOrDefault(ctx, s.logger)

	if err := card.ReviewState.Validate(); err != nil {
		log.Warn("review state validation failed during update",
			slog.String("error", err.Error()),
			slog.String("card_id", card.ID.String()))
		return err
	}

	query := `
		UPDATE cards SET
			repetition_count = ?, correct_count = ?, incorrect_count = ?, consecutive_correct = ?,
			ease_factor = ?, interval_seconds = ?, last_reviewed_at = ?, next_review_at = ?,
			updated_at = ?, version = ?
		WHERE id = ? AND version = ?
	`
	result, err := s.db.ExecContext(ctx, query,
		card.RepetitionCount,
		card.CorrectCount,
		card.IncorrectCount,
		card.ConsecutiveCorrect,
		card.EaseFactor,
		int64(card.Interval/time.Second),
		nullableUnixNano(card.LastReviewedAt),
		toUnixNano(card.NextReviewAt),
		toUnixNano(card.UpdatedAt),
		expectedVersion+1,
		card.ID,
		expectedVersion,
	)
	if err != nil {
		log.Error("failed to update card schedule",
			slog.String("error", err.Error()),
			slog.String("card_id", card.ID.String()))
		return wrapError("card", "update_schedule", err)
	}

	if err := checkRowsAffected(result, store.ErrVersionConflict); err != nil {
		if !errors.Is(err, store.ErrVersionConflict) {
			return err
		}
		return s.classifyMissedUpdate(ctx, log, card.ID, expectedVersion)
	}

	card.Version = expectedVersion + 1
	log.Debug("card schedule updated",
		slog.String("card_id", card.ID.String()),
		slog.Int("version", card.Version),
		slog.Time("next_review_at", card.NextReviewAt))
	return nil
}

// classifyMissedUpdate tells a missing card apart from a stale version after an
// UPDATE matched no rows.
func (s *SQLiteCardStore) classifyMissedUpdate(
	ctx context.Context,
	log *slog.Logger,
	id uuid.UUID,
	expectedVersion int,
) error {
	var current int
	err := s.db.QueryRowContext(ctx, `SELECT version FROM cards WHERE id = ?`, id).Scan(&current)
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
func (s *SQLiteCardStore) Delete(ctx context.Context, id uuid.UUID) error {
	log := logger.FromContextOrDefault(ctx, s.logger)

	result, err := s.db.ExecContext(ctx, `DELETE FROM cards WHERE id = ?`, id)
	if err != nil {
		log.Error("failed to delete card",
			slog.String("error", err.Error()),
			slog.String("card_id", id.String()))
		return wrapError("card", "delete", err)
	}

	if err := checkRowsAffected(result, store.ErrCardNotFound); err != nil {
		return err
	}

	log.Info("card deleted successfully", slog.String("card_id", id.String()))
	return nil
}

// ListDue implements store.CardStore.ListDue
func (s *SQLiteCardStore) ListDue(ctx context.Context, q store.DueQuery) ([]*domain.Card, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	var query strings.Builder
	query.WriteString(`SELECT ` + cardColumns + ` FROM cards WHERE user_id = ? AND next_review_at <= ?`)
	args := []any{q.UserID, toUnixNano(q.Now)}
	if q.DeckID != nil {
		query.WriteString(` AND deck_id = ?`)
		args = append(args, *q.DeckID)
	}
	query.WriteString(` ORDER BY next_review_at ASC, id ASC LIMIT ?`)
	args = append(args, q.Limit)

	cards, err := s.queryCards(ctx, log, query.String(), args...)
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
func (s *SQLiteCardStore) ListByDeck(ctx context.Context, deckID uuid.UUID) ([]*domain.Card, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	cards, err := s.queryCards(ctx, log,
		`SELECT `+cardColumns+` FROM cards WHERE deck_id = ? ORDER BY created_at ASC, id ASC`, deckID)
	if err != nil {
		log.Error("failed to list deck cards",
			slog.String("error", err.Error()),
			slog.String("deck_id", deckID.String()))
		return nil, err
	}
	return cards, nil
}

// WithTx implements store.CardStore.WithTx
func (s *SQLiteCardStore) WithTx(tx *sql.Tx) store.CardStore {
	return &SQLiteCardStore{
		db:     tx,
		logger: s.logger,
	}
}

func (s *SQLiteCardStore) queryCards(
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
	var intervalSeconds, nextReviewAt, createdAt, updatedAt int64
	var lastReviewedAt sql.NullInt64

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
		&nextReviewAt,
		&card.Version,
		&createdAt,
		&updatedAt,
	); err != nil {
		return nil, err
	}

	card.Interval = time.Duration(intervalSeconds) * time.Second
	card.LastReviewedAt = fromNullableUnixNano(lastReviewedAt)
	card.NextReviewAt = fromUnixNano(nextReviewAt)
	card.CreatedAt = fromUnixNano(createdAt)
	card.UpdatedAt = fromUnixNano(updatedAt)
	return &card, nil
}
