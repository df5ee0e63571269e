package mocks

import (
	"context"

	"github.com/google/uuid"
	"github.com/phrazzld/memory-cards/internal/domain"
	"github.com/phrazzld/memory-cards/internal/service"
)

// MockDeckService implements service.DeckService for testing. Methods without
// a function field set return Deck, Decks, Card, Cards and Err.
type MockDeckService struct {
	CreateDeckFn func(ctx context.Context, input service.CreateDeckInput) (*domain.Deck, error)
	AddCardFn    func(ctx context.Context, actorID, deckID uuid.UUID, draft domain.CardDraft) (*domain.Card, error)
	DeleteDeckFn func(ctx context.Context, actorID, deckID uuid.UUID) error

	Deck  *domain.Deck
	Decks []*domain.Deck
	Card  *domain.Card
	Cards []*domain.Card
	Err   error
}

var _ service.DeckService = (*MockDeckService)(nil)

// CreateDeck implements service.DeckService.
func (m *MockDeckService) CreateDeck(ctx context.Context, input service.CreateDeckInput) (*domain.Deck, error) {
	if m.CreateDeckFn != nil {
		return m.CreateDeckFn(ctx, input)
	}
	return m.Deck, m.Err
}

// GetDeck implements service.DeckService.
func (m *MockDeckService) GetDeck(_ context.Context, _, _ uuid.UUID) (*domain.Deck, error) {
	return m.Deck, m.Err
}

// ListDecks implements service.DeckService.
func (m *MockDeckService) ListDecks(_ context.Context, _ uuid.UUID) ([]*domain.Deck, error) {
	return m.Decks, m.Err
}

// DeleteDeck implements service.DeckService.
func (m *MockDeckService) DeleteDeck(ctx context.Context, actorID, deckID uuid.UUID) error {
	if m.DeleteDeckFn != nil {
		return m.DeleteDeckFn(ctx, actorID, deckID)
	}
	return m.Err
}

// AddCard implements service.DeckService.
func (m *MockDeckService) AddCard(
	ctx context.Context,
	actorID, deckID uuid.UUID,
	draft domain.CardDraft,
) (*domain.Card, error) {
	if m.AddCardFn != nil {
		return m.AddCardFn(ctx, actorID, deckID, draft)
	}
	return m.Card, m.Err
}

// GetCard implements service.DeckService.
func (m *MockDeckService) GetCard(_ context.Context, _, _ uuid.UUID) (*domain.Card, error) {
	return m.Card, m.Err
}

// ListCards implements service.DeckService.
func (m *MockDeckService) ListCards(_ context.Context, _, _ uuid.UUID) ([]*domain.Card, error) {
	return m.Cards, m.Err
}

// DeleteCard implements service.DeckService.
func (m *MockDeckService) DeleteCard(_ context.Context, _, _ uuid.UUID) error {
	return m.Err
}
