package api

import (
	"time"

	"github.com/google/uuid"
	"github.com/phrazzld/memory-cards/internal/domain"
)

// Request and response bodies. Durations travel as seconds.

// CreateDeckRequest defines the payload for POST /memory-cards/decks.
type CreateDeckRequest struct {
	UserID      string `json:"userId"      validate:"omitempty,uuid"`
	CourseID    string `json:"courseId"    validate:"required,max=128"`
	Title       string `json:"title"       validate:"required,max=200"`
	Description string `json:"description" validate:"max=2000"`
}

// AddCardRequest defines the payload for POST /memory-cards/decks/{deckId}/cards.
type AddCardRequest struct {
	Question        string `json:"question"        validate:"required"`
	Answer          string `json:"answer"          validate:"required"`
	ChapterID       string `json:"chapterId"       validate:"max=128"`
	SectionID       string `json:"sectionId"       validate:"max=128"`
	DifficultyLevel int    `json:"difficultyLevel" validate:"omitempty,min=1,max=5"`
}

// SubmitReviewRequest defines the payload for POST /memory-cards/reviews.
type SubmitReviewRequest struct {
	UserID string `json:"userId" validate:"omitempty,uuid"`
	CardID string `json:"cardId" validate:"required,uuid"`
	DeckID string `json:"deckId" validate:"omitempty,uuid"`
	Rating string `json:"rating" validate:"required"`
	// ReviewTime is the time spent on the card, in seconds, at most a year.
	ReviewTime float64 `json:"reviewTime" validate:"gte=0,lte=31536000"`
	// SessionDuration is the time since the session started, in seconds, at
	// most a year.
	SessionDuration float64 `json:"sessionDuration" validate:"gte=0,lte=31536000"`
	// Version, when set, rejects the review with 409 if the card has moved on.
	Version *int `json:"version,omitempty" validate:"omitempty,gte=1"`
}

// PostponeCardRequest defines the payload for POST /memory-cards/cards/{cardId}/postpone.
type PostponeCardRequest struct {
	UserID string `json:"userId" validate:"omitempty,uuid"`
	Days   int    `json:"days"   validate:"required,gte=1,lte=3650"`
}

// DeckResponse is the wire form of a deck.
type DeckResponse struct {
	ID          uuid.UUID `json:"id"`
	UserID      uuid.UUID `json:"userId"`
	CourseID    string    `json:"courseId"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

// CardResponse is the wire form of a card and its review state.
type CardResponse struct {
	ID                 uuid.UUID  `json:"id"`
	DeckID             uuid.UUID  `json:"deckId"`
	UserID             uuid.UUID  `json:"userId"`
	CourseID           string     `json:"courseId"`
	ChapterID          string     `json:"chapterId,omitempty"`
	SectionID          string     `json:"sectionId,omitempty"`
	Question           string     `json:"question"`
	Answer             string     `json:"answer"`
	DifficultyLevel    int        `json:"difficultyLevel"`
	RepetitionCount    int        `json:"repetitionCount"`
	CorrectCount       int        `json:"correctCount"`
	IncorrectCount     int        `json:"incorrectCount"`
	ConsecutiveCorrect int        `json:"consecutiveCorrect"`
	EaseFactor         float64    `json:"easeFactor"`
	IntervalSeconds    int64      `json:"intervalSeconds"`
	LastReviewedAt     *time.Time `json:"lastReviewedAt"`
	NextReviewAt       time.Time  `json:"nextReviewAt"`
	Version            int        `json:"version"`
	CreatedAt          time.Time  `json:"createdAt"`
	UpdatedAt          time.Time  `json:"updatedAt"`
}

// ReviewLogResponse is the wire form of one review history entry.
type ReviewLogResponse struct {
	ID                    uuid.UUID `json:"id"`
	CardID                uuid.UUID `json:"cardId"`
	DeckID                uuid.UUID `json:"deckId"`
	UserID                uuid.UUID `json:"userId"`
	Rating                string    `json:"rating"`
	ReviewedAt            time.Time `json:"reviewedAt"`
	ReviewTime            float64   `json:"reviewTime"`
	SessionDuration       float64   `json:"sessionDuration"`
	IntervalBeforeSeconds int64     `json:"intervalBeforeSeconds"`
	IntervalAfterSeconds  int64     `json:"intervalAfterSeconds"`
	EaseFactorAfter       float64   `json:"easeFactorAfter"`
	NextReviewAt          time.Time `json:"nextReviewAt"`
}

// DueCardsResponse wraps the due queue. Cards is never null.
type DueCardsResponse struct {
	Cards []CardResponse `json:"cards"`
	Count int            `json:"count"`
}

// DeckToResponse converts a domain deck to its wire form.
func DeckToResponse(deck *domain.Deck) DeckResponse {
	return DeckResponse{
		ID:          deck.ID,
		UserID:      deck.UserID,
		CourseID:    deck.CourseID,
		Title:       deck.Title,
		Description: deck.Description,
		CreatedAt:   deck.CreatedAt,
		UpdatedAt:   deck.UpdatedAt,
	}
}

// CardToResponse converts a domain card to its wire form.
func CardToResponse(card *domain.Card) CardResponse {
	resp := CardResponse{
		ID:                 card.ID,
		DeckID:             card.DeckID,
		UserID:             card.UserID,
		CourseID:           card.CourseID,
		ChapterID:          card.ChapterID,
		SectionID:          card.SectionID,
		Question:           card.Question,
		Answer:             card.Answer,
		DifficultyLevel:    card.DifficultyLevel,
		RepetitionCount:    card.RepetitionCount,
		CorrectCount:       card.CorrectCount,
		IncorrectCount:     card.IncorrectCount,
		ConsecutiveCorrect: card.ConsecutiveCorrect,
		EaseFactor:         card.EaseFactor,
		IntervalSeconds:    int64(card.Interval / time.Second),
		NextReviewAt:       card.NextReviewAt,
		Version:            card.Version,
		CreatedAt:          card.CreatedAt,
		UpdatedAt:          card.UpdatedAt,
	}
	if !card.LastReviewedAt.IsZero() {
		t := card.LastReviewedAt
		resp.LastReviewedAt = &t
	}
	return resp
}

// ToDomain converts the wire form back into a domain card.
func (c CardResponse) ToDomain() *domain.Card {
	card := &domain.Card{
		ID:              c.ID,
		DeckID:          c.DeckID,
		UserID:          c.UserID,
		CourseID:        c.CourseID,
		ChapterID:       c.ChapterID,
		SectionID:       c.SectionID,
		Question:        c.Question,
		Answer:          c.Answer,
		DifficultyLevel: c.DifficultyLevel,
		ReviewState: domain.ReviewState{
			RepetitionCount:    c.RepetitionCount,
			CorrectCount:       c.CorrectCount,
			IncorrectCount:     c.IncorrectCount,
			ConsecutiveCorrect: c.ConsecutiveCorrect,
			EaseFactor:         c.EaseFactor,
			Interval:           time.Duration(c.IntervalSeconds) * time.Second,
			NextReviewAt:       c.NextReviewAt.UTC(),
		},
		Version:   c.Version,
		CreatedAt: c.CreatedAt.UTC(),
		UpdatedAt: c.UpdatedAt.UTC(),
	}
	if c.LastReviewedAt != nil {
		card.LastReviewedAt = c.LastReviewedAt.UTC()
	}
	return card
}

// ToDomain converts the wire form back into a domain deck.
func (d DeckResponse) ToDomain() *domain.Deck {
	return &domain.Deck{
		ID:          d.ID,
		UserID:      d.UserID,
		CourseID:    d.CourseID,
		Title:       d.Title,
		Description: d.Description,
		CreatedAt:   d.CreatedAt.UTC(),
		UpdatedAt:   d.UpdatedAt.UTC(),
	}
}

// ReviewLogToResponse converts a review log entry to its wire form.
func ReviewLogToResponse(entry *domain.ReviewLog) ReviewLogResponse {
	return ReviewLogResponse{
		ID:                    entry.ID,
		CardID:                entry.CardID,
		DeckID:                entry.DeckID,
		UserID:                entry.UserID,
		Rating:                string(entry.Rating),
		ReviewedAt:            entry.ReviewedAt,
		ReviewTime:            entry.ReviewTime.Seconds(),
		SessionDuration:       entry.SessionDuration.Seconds(),
		IntervalBeforeSeconds: int64(entry.IntervalBefore / time.Second),
		IntervalAfterSeconds:  int64(entry.IntervalAfter / time.Second),
		EaseFactorAfter:       entry.EaseFactorAfter,
		NextReviewAt:          entry.NextReviewAt,
	}
}

func cardsToResponse(cards []*domain.Card) []CardResponse {
	out := make([]CardResponse, 0, len(cards))
	for _, card := range cards {
		out = append(out, CardToResponse(card))
	}
	return out
}

// secondsToDuration converts a seconds value from a request body. Values
// are bounded by validation well inside time.Duration's range.
func secondsToDuration(s float64) time.Duration {
	return time.Duration(s * float64(time.Second))
}
