package card_review

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/phrazzld/memory-cards/internal/domain"
	"github.com/phrazzld/memory-cards/internal/domain/srs"
	"github.com/phrazzld/memory-cards/internal/platform/logger"
	"github.com/phrazzld/memory-cards/internal/store"
)

// Options tunes the due queue. Zero values select the package defaults.
type Options struct {
	DefaultDueLimit int
	MaxDueLimit     int
	// Clock supplies the review time; time.Now when nil.
	Clock func() time.Time
}

// Verify interface compliance at compile time
var _ CardReviewService = (*cardReviewServiceImpl)(nil)

// cardReviewServiceImpl implements the CardReviewService interface.
type cardReviewServiceImpl struct {
	transactor      store.Transactor
	cardStore       store.CardStore
	reviewLogStore  store.ReviewLogStore
	scheduler       srs.Service
	defaultDueLimit int
	maxDueLimit     int
	timeFunc        func() time.Time
	logger          *slog.Logger
}

// NewCardReviewService creates a new CardReviewService implementation.
// It returns an error if any of the required dependencies are nil.
func NewCardReviewService(
	transactor store.Transactor,
	cardStore store.CardStore,
	reviewLogStore store.ReviewLogStore,
	scheduler srs.Service,
	opts Options,
	logger *slog.Logger,
) (CardReviewService, error) {
	if transactor == nil {
		return nil, domain.NewValidationError("transactor", "cannot be nil", domain.ErrValidation)
	}
	if cardStore == nil {
		return nil, domain.NewValidationError("cardStore", "cannot be nil", domain.ErrValidation)
	}
	if reviewLogStore == nil {
		return nil, domain.NewValidationError("reviewLogStore", "cannot be nil", domain.ErrValidation)
	}
	if scheduler == nil {
		return nil, domain.NewValidationError("scheduler", "cannot be nil", domain.ErrValidation)
	}

	if opts.DefaultDueLimit <= 0 {
		opts.DefaultDueLimit = DefaultDueLimit
	}
	if opts.MaxDueLimit <= 0 {
		opts.MaxDueLimit = MaxDueLimit
	}
	if opts.DefaultDueLimit > opts.MaxDueLimit {
		return nil, domain.NewValidationError("defaultDueLimit", "cannot exceed maxDueLimit", domain.ErrValidation)
	}
	if opts.Clock == nil {
		opts.Clock = time.Now
	}

	if logger == nil {
		logger = slog.Default()
	}

	return &cardReviewServiceImpl{
		transactor:      transactor,
		cardStore:       cardStore,
		reviewLogStore:  reviewLogStore,
		scheduler:       scheduler,
		defaultDueLimit: opts.DefaultDueLimit,
		maxDueLimit:     opts.MaxDueLimit,
		timeFunc:        opts.Clock,
		logger:          logger.With(slog.String("component", "card_review_service")),
	}, nil
}

// GetDueCards implements CardReviewService.GetDueCards.
func (s *cardReviewServiceImpl) GetDueCards(ctx context.Context, query DueCardsQuery) ([]*domain.Card, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	limit := NormalizeLimit(query.Limit, s.defaultDueLimit, s.maxDueLimit)
	now := s.timeFunc().UTC()

	cards, err := s.cardStore.ListDue(ctx, store.DueQuery{
		UserID: query.UserID,
		DeckID: query.DeckID,
		Now:    now,
		Limit:  limit,
	})
	if err != nil {
		log.Error("failed to list due cards",
			slog.String("error", err.Error()),
			slog.String("user_id", query.UserID.String()))
		return nil, newServiceError("get_due_cards", "failed to list due cards", err)
	}

	log.Debug("due cards retrieved",
		slog.String("user_id", query.UserID.String()),
		slog.Int("limit", limit),
		slog.Int("count", len(cards)))
	return cards, nil
}

// SubmitReview implements CardReviewService.SubmitReview.
func (s *cardReviewServiceImpl) SubmitReview(ctx context.Context, sub ReviewSubmission) (*domain.Card, error) {
	log := logger.FromContextOrDefault(ctx, s.logger).With(
		slog.String("user_id", sub.UserID.String()),
		slog.String("card_id", sub.CardID.String()),
		slog.String("rating", string(sub.Rating)),
	)

	if !sub.Rating.IsValid() {
		log.Warn("invalid review rating")
		return nil, fmt.Errorf("%w: %q", domain.ErrInvalidRating, sub.Rating)
	}
	if sub.ReviewTime < 0 || sub.SessionDuration < 0 {
		return nil, domain.ErrNegativeDuration
	}

	var updated *domain.Card
	err := s.transactor.RunInTransaction(ctx, func(ctx context.Context, tx *sql.Tx) error {
		cards := s.cardStore.WithTx(tx)

		card, err := s.lockOwnedCard(ctx, log, cards, sub.UserID, sub.CardID)
		if err != nil {
			return err
		}

		if sub.DeckID != uuid.Nil && card.DeckID != sub.DeckID {
			log.Warn("review names the wrong deck",
				slog.String("deck_id", sub.DeckID.String()),
				slog.String("card_deck_id", card.DeckID.String()))
			return ErrDeckMismatch
		}

		if sub.ExpectedVersion != nil && *sub.ExpectedVersion != card.Version {
			return fmt.Errorf("%w: card %s is at version %d, expected %d",
				store.ErrVersionConflict, card.ID, card.Version, *sub.ExpectedVersion)
		}

		next, err := s.scheduler.ApplyRating(card, sub.Rating, s.timeFunc())
		if err != nil {
			return fmt.Errorf("failed to apply rating: %w", err)
		}

		if err := cards.UpdateSchedule(ctx, next, card.Version); err != nil {
			return err
		}

		entry, err := domain.NewReviewLog(card, next, sub.Rating, sub.ReviewTime, sub.SessionDuration)
		if err != nil {
			return fmt.Errorf("failed to build review log: %w", err)
		}
		if err := s.reviewLogStore.WithTx(tx).Create(ctx, entry); err != nil {
			return err
		}

		updated = next
		return nil
	})
	if err != nil {
		if isExpected(err) {
			return nil, err
		}
		log.Error("failed to submit review", slog.String("error", err.Error()))
		return nil, newServiceError("submit_review", "failed to submit review", err)
	}

	log.Debug("review recorded",
		slog.Float64("ease_factor", updated.EaseFactor),
		slog.Duration("interval", updated.Interval),
		slog.Time("next_review_at", updated.NextReviewAt),
		slog.Int("version", updated.Version))
	return updated, nil
}

// PostponeCard implements CardReviewService.PostponeCard.
func (s *cardReviewServiceImpl) PostponeCard(
	ctx context.Context,
	userID, cardID uuid.UUID,
	days int,
) (*domain.Card, error) {
	log := logger.FromContextOrDefault(ctx, s.logger).With(
		slog.String("user_id", userID.String()),
		slog.String("card_id", cardID.String()),
	)

	if days < 1 {
		return nil, srs.ErrInvalidDays
	}

	var postponed *domain.Card
	err := s.transactor.RunInTransaction(ctx, func(ctx context.Context, tx *sql.Tx) error {
		cards := s.cardStore.WithTx(tx)

		card, err := s.lockOwnedCard(ctx, log, cards, userID, cardID)
		if err != nil {
			return err
		}

		next, err := s.scheduler.PostponeReview(card, days, s.timeFunc())
		if err != nil {
			return err
		}
		if err := cards.UpdateSchedule(ctx, next, card.Version); err != nil {
			return err
		}

		postponed = next
		return nil
	})
	if err != nil {
		if isExpected(err) {
			return nil, err
		}
		log.Error("failed to postpone card", slog.String("error", err.Error()))
		return nil, newServiceError("postpone_card", "failed to postpone card", err)
	}

	log.Debug("card postponed",
		slog.Int("days", days),
		slog.Time("next_review_at", postponed.NextReviewAt))
	return postponed, nil
}

// GetReviewHistory implements CardReviewService.GetReviewHistory.
func (s *cardReviewServiceImpl) GetReviewHistory(
	ctx context.Context,
	userID, cardID uuid.UUID,
	limit int,
) ([]*domain.ReviewLog, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	card, err := s.cardStore.GetByID(ctx, cardID)
	if err != nil {
		if store.IsNotFoundError(err) {
			return nil, store.ErrCardNotFound
		}
		return nil, newServiceError("get_review_history", "failed to load card", err)
	}
	if userID != uuid.Nil && card.UserID != userID {
		log.Warn("review history access denied",
			slog.String("user_id", userID.String()),
			slog.String("card_id", cardID.String()))
		return nil, ErrCardNotOwned
	}

	entries, err := s.reviewLogStore.ListByCard(ctx, cardID,
		NormalizeLimit(limit, DefaultHistoryLimit, MaxHistoryLimit))
	if err != nil {
		return nil, newServiceError("get_review_history", "failed to list review history", err)
	}
	return entries, nil
}

// lockOwnedCard loads the card with a row lock and checks that userID owns it.
func (s *cardReviewServiceImpl) lockOwnedCard(
	ctx context.Context,
	log *slog.Logger,
	cards store.CardStore,
	userID, cardID uuid.UUID,
) (*domain.Card, error) {
	card, err := cards.GetForUpdate(ctx, cardID)
	if err != nil {
		if store.IsNotFoundError(err) {
			log.Warn("card not found for review")
			return nil, store.ErrCardNotFound
		}
		return nil, fmt.Errorf("failed to get card: %w", err)
	}

	if userID != uuid.Nil && card.UserID != userID {
		log.Warn("user does not own card", slog.String("owner_id", card.UserID.String()))
		return nil, ErrCardNotOwned
	}

	return card, nil
}

// isExpected reports whether err is a condition the caller should see as is.
func isExpected(err error) bool {
	return store.IsNotFoundError(err) ||
		errors.Is(err, ErrCardNotOwned) ||
		errors.Is(err, ErrDeckMismatch) ||
		errors.Is(err, store.ErrVersionConflict) ||
		errors.Is(err, domain.ErrInvalidRating) ||
		errors.Is(err, domain.ErrValidation)
}
