package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/phrazzld/memory-cards/internal/domain"
	"github.com/phrazzld/memory-cards/internal/platform/logger"
	"github.com/phrazzld/memory-cards/internal/store"
)

// SQLiteReviewLogStore implements the store.ReviewLogStore interface on SQLite.
type SQLiteReviewLogStore struct {
	db     store.DBTX
	logger *slog.Logger
}

// NewSQLiteReviewLogStore creates a new SQLite implementation of the ReviewLogStore interface.
func NewSQLiteReviewLogStore(db store.DBTX, logger *slog.Logger) *SQLiteReviewLogStore {
	if db == nil {
		panic("db cannot be nil")
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &SQLiteReviewLogStore{
		db:     db,
		logger: logger.With(slog.String("component", "review_log_store")),
	}
}

var _ store.ReviewLogStore = (*SQLiteReviewLogStore)(nil)

// Create implements store.ReviewLogStore.Create
func (s *SQLiteReviewLogStore) Create(ctx context.Context, entry *domain.ReviewLog) error {
	log := logger.FromContextOrDefault(ctx, s.logger)

	if err := entry.Validate(); err != nil {
		log.Warn("review log validation failed",
			slog.String("error", err.Error()),
			slog.String("card_id", entry.CardID.String()))
		return err
	}

	query := `
		INSERT INTO card_reviews (
			id, card_id, deck_id, user_id, rating, reviewed_at,
			review_time_ms, session_duration_ms,
			interval_before_seconds, interval_after_seconds,
			ease_factor_after, next_review_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	_, err := s.db.ExecContext(ctx, query,
		entry.ID,
		entry.CardID,
		entry.DeckID,
		entry.UserID,
		string(entry.Rating),
		toUnixNano(entry.ReviewedAt),
		entry.ReviewTime.Milliseconds(),
		entry.SessionDuration.Milliseconds(),
		int64(entry.IntervalBefore/time.Second),
		int64(entry.IntervalAfter/time.Second),
		entry.EaseFactorAfter,
		toUnixNano(entry.NextReviewAt),
	)
	if err != nil {
		if IsForeignKeyViolation(err) {
			return fmt.Errorf("%w: card with ID %s not found", store.ErrInvalidEntity, entry.CardID)
		}
		log.Error("failed to create review log",
			slog.String("error", err.Error()),
			slog.String("card_id", entry.CardID.String()))
		return wrapError("review_log", "create", err)
	}

	log.Debug("review log recorded",
		slog.String("card_id", entry.CardID.String()),
		slog.String("rating", string(entry.Rating)))
	return nil
}

// ListByCard implements store.ReviewLogStore.ListByCard
func (s *SQLiteReviewLogStore) ListByCard(
	ctx context.Context,
	cardID uuid.UUID,
	limit int,
) ([]*domain.ReviewLog, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	query := `
		SELECT id, card_id, deck_id, user_id, rating, reviewed_at,
			review_time_ms, session_duration_ms,
			interval_before_seconds, interval_after_seconds,
			ease_factor_after, next_review_at
		FROM card_reviews
		WHERE card_id = ?
		ORDER BY reviewed_at DESC, id DESC
		LIMIT ?
	`
	rows, err := s.db.QueryContext(ctx, query, cardID, limit)
	if err != nil {
		log.Error("failed to list review logs",
			slog.String("error", err.Error()),
			slog.String("card_id", cardID.String()))
		return nil, wrapError("review_log", "list", err)
	}
	defer func() {
		if err := rows.Close(); err != nil {
			log.Error("failed to close rows", slog.String("error", err.Error()))
		}
	}()

	entries := []*domain.ReviewLog{}
	for rows.Next() {
		var entry domain.ReviewLog
		var rating string
		var reviewedAt, nextReviewAt, reviewMs, sessionMs, before, after int64
		if err := rows.Scan(
			&entry.ID,
			&entry.CardID,
			&entry.DeckID,
			&entry.UserID,
			&rating,
			&reviewedAt,
			&reviewMs,
			&sessionMs,
			&before,
			&after,
			&entry.EaseFactorAfter,
			&nextReviewAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan review log: %w", err)
		}
		entry.Rating = domain.Rating(rating)
		entry.ReviewedAt = fromUnixNano(reviewedAt)
		entry.ReviewTime = time.Duration(reviewMs) * time.Millisecond
		entry.SessionDuration = time.Duration(sessionMs) * time.Millisecond
		entry.IntervalBefore = time.Duration(before) * time.Second
		entry.IntervalAfter = time.Duration(after) * time.Second
		entry.NextReviewAt = fromUnixNano(nextReviewAt)
		entries = append(entries, &entry)
	}
	if err := rows.Err(); err != nil {
		return nil, wrapError("review_log", "list", err)
	}

	return entries, nil
}

// WithTx implements store.ReviewLogStore.WithTx
func (s *SQLiteReviewLogStore) WithTx(tx *sql.Tx) store.ReviewLogStore {
	return &SQLiteReviewLogStore{
		db:     tx,
		logger: s.logger,
	}
}
