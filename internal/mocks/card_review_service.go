package mocks

import (
	"context"
	"sync"

	"github.com/google/uuid"
	"github.com/phrazzld/memory-cards/internal/domain"
	"github.com/phrazzld/memory-cards/internal/service/card_review"
)

// MockCardReviewService implements card_review.CardReviewService for testing.
type MockCardReviewService struct {
	GetDueCardsFn      func(ctx context.Context, query card_review.DueCardsQuery) ([]*domain.Card, error)
	SubmitReviewFn     func(ctx context.Context, submission card_review.ReviewSubmission) (*domain.Card, error)
	PostponeCardFn     func(ctx context.Context, userID, cardID uuid.UUID, days int) (*domain.Card, error)
	GetReviewHistoryFn func(ctx context.Context, userID, cardID uuid.UUID, limit int) ([]*domain.ReviewLog, error)

	// Defaults returned when the matching function is nil.
	DueCards []*domain.Card
	Card     *domain.Card
	History  []*domain.ReviewLog
	Err      error

	mu          sync.Mutex
	queries     []card_review.DueCardsQuery
	submissions []card_review.ReviewSubmission
}

var _ card_review.CardReviewService = (*MockCardReviewService)(nil)

// GetDueCards implements card_review.CardReviewService.
func (m *MockCardReviewService) GetDueCards(ctx context.Context, query card_review.DueCardsQuery) ([]*domain.Card, error) {
	m.mu.Lock()
	m.queries = append(m.queries, query)
	m.mu.Unlock()

	if m.GetDueCardsFn != nil {
		return m.GetDueCardsFn(ctx, query)
	}
	return m.DueCards, m.Err
}

// SubmitReview implements card_review.CardReviewService.
func (m *MockCardReviewService) SubmitReview(
	ctx context.Context,
	submission card_review.ReviewSubmission,
) (*domain.Card, error) {
	m.mu.Lock()
	m.submissions = append(m.submissions, submission)
	m.mu.Unlock()

	if m.SubmitReviewFn != nil {
		return m.SubmitReviewFn(ctx, submission)
	}
	return m.Card, m.Err
}

// PostponeCard implements card_review.CardReviewService.
func (m *MockCardReviewService) PostponeCard(
	ctx context.Context,
	userID, cardID uuid.UUID,
	days int,
) (*domain.Card, error) {
	if m.PostponeCardFn != nil {
		return m.PostponeCardFn(ctx, userID, cardID, days)
	}
	return m.Card, m.Err
}

// GetReviewHistory implements card_review.CardReviewService.
func (m *MockCardReviewService) GetReviewHistory(
	ctx context.Context,
	userID, cardID uuid.UUID,
	limit int,
) ([]*domain.ReviewLog, error) {
	if m.GetReviewHistoryFn != nil {
		return m.GetReviewHistoryFn(ctx, userID, cardID, limit)
	}
	return m.History, m.Err
}

// DueCardsQueries returns the queries GetDueCards received, in order.
func (m *MockCardReviewService) DueCardsQueries() []card_review.DueCardsQuery {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]card_review.DueCardsQuery, len(m.queries))
	copy(out, m.queries)
	return out
}

// Submissions returns the submissions SubmitReview received, in order.
func (m *MockCardReviewService) Submissions() []card_review.ReviewSubmission {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]card_review.ReviewSubmission, len(m.submissions))
	copy(out, m.submissions)
	return out
}
