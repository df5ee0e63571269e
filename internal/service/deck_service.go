package service

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/phrazzld/memory-cards/internal/domain"
	"github.com/phrazzld/memory-cards/internal/domain/srs"
	"github.com/phrazzld/memory-cards/internal/platform/logger"
	"github.com/phrazzld/memory-cards/internal/store"
)

// CreateDeckInput carries the fields of a new deck.
type CreateDeckInput struct {
	UserID      uuid.UUID
	CourseID    string
	Title       string
	Description string
}

// DeckService provides deck and card management.
//
// Methods taking an actorID check that the actor owns the deck or card.
// uuid.Nil means a trusted caller (for example a server-side job) and skips
// the check.
type DeckService interface {
	// CreateDeck creates an empty deck for input.UserID.
	CreateDeck(ctx context.Context, input CreateDeckInput) (*domain.Deck, error)

	// GetDeck returns the deck. Returns store.ErrDeckNotFound or ErrNotOwned.
	GetDeck(ctx context.Context, actorID, deckID uuid.UUID) (*domain.Deck, error)

	// ListDecks returns the user's decks, newest first.
	ListDecks(ctx context.Context, userID uuid.UUID) ([]*domain.Deck, error)

	// DeleteDeck removes the deck together with its cards and their review history.
	DeleteDeck(ctx context.Context, actorID, deckID uuid.UUID) error

	// AddCard creates a card in the deck. The card inherits the deck's owner and
	// course, starts from the scheduler's initial state and is due immediately.
	// A zero DifficultyLevel selects domain.DefaultDifficultyLevel.
	AddCard(ctx context.Context, actorID, deckID uuid.UUID, draft domain.CardDraft) (*domain.Card, error)

	// GetCard returns the card. Returns store.ErrCardNotFound or ErrNotOwned.
	GetCard(ctx context.Context, actorID, cardID uuid.UUID) (*domain.Card, error)

	// ListCards returns every card in the deck in creation order.
	ListCards(ctx context.Context, actorID, deckID uuid.UUID) ([]*domain.Card, error)

	// DeleteCard removes the card and its review history.
	DeleteCard(ctx context.Context, actorID, cardID uuid.UUID) error
}

// deckServiceImpl implements the DeckService interface
type deckServiceImpl struct {
	deckStore store.DeckStore
	cardStore store.CardStore
	scheduler srs.Service
	timeFunc  func() time.Time
	logger    *slog.Logger
}

var _ DeckService = (*deckServiceImpl)(nil)

// NewDeckService creates a new DeckService.
// It returns an error if any of the required dependencies are nil.
func NewDeckService(
	deckStore store.DeckStore,
	cardStore store.CardStore,
	scheduler srs.Service,
	logger *slog.Logger,
) (DeckService, error) {
	if deckStore == nil {
		return nil, domain.NewValidationError("deckStore", "cannot be nil", domain.ErrValidation)
	}
	if cardStore == nil {
		return nil, domain.NewValidationError("cardStore", "cannot be nil", domain.ErrValidation)
	}
	if scheduler == nil {
		return nil, domain.NewValidationError("scheduler", "cannot be nil", domain.ErrValidation)
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &deckServiceImpl{
		deckStore: deckStore,
		cardStore: cardStore,
		scheduler: scheduler,
		timeFunc:  time.Now,
		logger:    logger.With(slog.String("component", "deck_service")),
	}, nil
}

// CreateDeck implements DeckService.CreateDeck
func (s *deckServiceImpl) CreateDeck(ctx context.Context, input CreateDeckInput) (*domain.Deck, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	deck, err := domain.NewDeck(input.UserID, input.CourseID, input.Title, input.Description, s.timeFunc())
	if err != nil {
		log.Debug("invalid deck input", slog.String("error", err.Error()))
		return nil, err
	}

	if err := s.deckStore.Create(ctx, deck); err != nil {
		log.Error("failed to save deck",
			slog.String("error", err.Error()),
			slog.String("user_id", input.UserID.String()))
		return nil, NewDeckServiceError("create_deck", "failed to save deck", err)
	}

	return deck, nil
}

// GetDeck implements DeckService.GetDeck
func (s *deckServiceImpl) GetDeck(ctx context.Context, actorID, deckID uuid.UUID) (*domain.Deck, error) {
	return s.ownedDeck(ctx, "get_deck", actorID, deckID)
}

// ListDecks implements DeckService.ListDecks
func (s *deckServiceImpl) ListDecks(ctx context.Context, userID uuid.UUID) ([]*domain.Deck, error) {
	decks, err := s.deckStore.ListByUser(ctx, userID)
	if err != nil {
		return nil, NewDeckServiceError("list_decks", "failed to list decks", err)
	}
	return decks, nil
}

// DeleteDeck implements DeckService.DeleteDeck
func (s *deckServiceImpl) DeleteDeck(ctx context.Context, actorID, deckID uuid.UUID) error {
	log := logger.FromContextOrDefault(ctx, s.logger)

	if _, err := s.ownedDeck(ctx, "delete_deck", actorID, deckID); err != nil {
		return err
	}

	if err := s.deckStore.Delete(ctx, deckID); err != nil {
		return NewDeckServiceError("delete_deck", "failed to delete deck", err)
	}

	log.Info("deck deleted", slog.String("deck_id", deckID.String()))
	return nil
}

// AddCard implements DeckService.AddCard
func (s *deckServiceImpl) AddCard(
	ctx context.Context,
	actorID, deckID uuid.UUID,
	draft domain.CardDraft,
) (*domain.Card, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	deck, err := s.ownedDeck(ctx, "add_card", actorID, deckID)
	if err != nil {
		return nil, err
	}

	if draft.DifficultyLevel == 0 {
		draft.DifficultyLevel = domain.DefaultDifficultyLevel
	}

	card, err := domain.NewCard(deck, draft, s.scheduler.InitialState(draft.DifficultyLevel), s.timeFunc())
	if err != nil {
		log.Debug("invalid card input",
			slog.String("error", err.Error()),
			slog.String("deck_id", deckID.String()))
		return nil, err
	}

	if err := s.cardStore.Create(ctx, card); err != nil {
		log.Error("failed to save card",
			slog.String("error", err.Error()),
			slog.String("deck_id", deckID.String()))
		return nil, NewDeckServiceError("add_card", "failed to save card", err)
	}

	log.Debug("card added",
		slog.String("card_id", card.ID.String()),
		slog.String("deck_id", deckID.String()),
		slog.Int("difficulty_level", card.DifficultyLevel))
	return card, nil
}

// GetCard implements DeckService.GetCard
func (s *deckServiceImpl) GetCard(ctx context.Context, actorID, cardID uuid.UUID) (*domain.Card, error) {
	return s.ownedCard(ctx, "get_card", actorID, cardID)
}

// ListCards implements DeckService.ListCards
func (s *deckServiceImpl) ListCards(ctx context.Context, actorID, deckID uuid.UUID) ([]*domain.Card, error) {
	if _, err := s.ownedDeck(ctx, "list_cards", actorID, deckID); err != nil {
		return nil, err
	}

	cards, err := s.cardStore.ListByDeck(ctx, deckID)
	if err != nil {
		return nil, NewDeckServiceError("list_cards", "failed to list cards", err)
	}
	return cards, nil
}

// DeleteCard implements DeckService.DeleteCard
func (s *deckServiceImpl) DeleteCard(ctx context.Context, actorID, cardID uuid.UUID) error {
	if _, err := s.ownedCard(ctx, "delete_card", actorID, cardID); err != nil {
		return err
	}

	if err := s.cardStore.Delete(ctx, cardID); err != nil {
		return NewDeckServiceError("delete_card", "failed to delete card", err)
	}
	return nil
}

func (s *deckServiceImpl) ownedDeck(ctx context.Context, op string, actorID, deckID uuid.UUID) (*domain.Deck, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	deck, err := s.deckStore.GetByID(ctx, deckID)
	if err != nil {
		if store.IsNotFoundError(err) {
			return nil, NewDeckServiceError(op, "deck not found", store.ErrDeckNotFound)
		}
		log.Error("failed to load deck",
			slog.String("error", err.Error()),
			slog.String("deck_id", deckID.String()))
		return nil, NewDeckServiceError(op, "failed to load deck", err)
	}

	if actorID != uuid.Nil && !deck.IsOwnedBy(actorID) {
		log.Warn("deck access denied",
			slog.String("deck_id", deckID.String()),
			slog.String("actor_id", actorID.String()))
		return nil, NewDeckServiceError(op, "deck belongs to another user", ErrNotOwned)
	}

	return deck, nil
}

func (s *deckServiceImpl) ownedCard(ctx context.Context, op string, actorID, cardID uuid.UUID) (*domain.Card, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	card, err := s.cardStore.GetByID(ctx, cardID)
	if err != nil {
		if store.IsNotFoundError(err) {
			return nil, NewDeckServiceError(op, "card not found", store.ErrCardNotFound)
		}
		log.Error("failed to load card",
			slog.String("error", err.Error()),
			slog.String("card_id", cardID.String()))
		return nil, NewDeckServiceError(op, "failed to load card", err)
	}

	if actorID != uuid.Nil && card.UserID != actorID {
		log.Warn("card access denied",
			slog.String("card_id", cardID.String()),
			slog.String("actor_id", actorID.String()))
		return nil, NewDeckServiceError(op, "card belongs to another user", ErrNotOwned)
	}

	return card, nil
}
