package api

import (
	"log/slog"
	"net/http"

	"github.com/google/uuid"
	"github.com/phrazzld/memory-cards/internal/api/shared"
	"github.com/phrazzld/memory-cards/internal/domain"
	"github.com/phrazzld/memory-cards/internal/platform/logger"
	"github.com/phrazzld/memory-cards/internal/service/card_review"
)

// ReviewHandler handles the due queue and review submission.
type ReviewHandler struct {
	cardReviewService card_review.CardReviewService
	logger            *slog.Logger
}

// NewReviewHandler creates a new ReviewHandler.
func NewReviewHandler(cardReviewService card_review.CardReviewService, logger *slog.Logger) *ReviewHandler {
	if cardReviewService == nil {
		// ALLOW-PANIC: Constructor enforcing required dependency
		panic("cardReviewService cannot be nil for ReviewHandler")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &ReviewHandler{
		cardReviewService: cardReviewService,
		logger:            logger.With(slog.String("component", "review_handler")),
	}
}

// GetDueCards handles GET /memory-cards/users/{userId}/due-cards.
// Optional query parameters: deckId, limit.
func (h *ReviewHandler) GetDueCards(w http.ResponseWriter, r *http.Request) {
	log := logger.FromContextOrDefault(r.Context(), h.logger)

	userID, ok := pathUser(w, r)
	if !ok {
		return
	}

	deckID, err := parseOptionalUUID("deckId", r.URL.Query().Get("deckId"))
	if err != nil {
		HandleAPIError(w, r, err, "")
		return
	}
	limit, err := parseLimit(r)
	if err != nil {
		HandleAPIError(w, r, err, "")
		return
	}

	cards, err := h.cardReviewService.GetDueCards(r.Context(), card_review.DueCardsQuery{
		UserID: userID,
		DeckID: deckID,
		Limit:  limit,
	})
	if err != nil {
		HandleAPIError(w, r, err, "Failed to get due cards")
		return
	}

	log.Debug("due cards served",
		slog.String("user_id", userID.String()),
		slog.Int("count", len(cards)))
	shared.RespondWithJSON(w, r, http.StatusOK, DueCardsResponse{
		Cards: cardsToResponse(cards),
		Count: len(cards),
	})
}

// SubmitReview handles POST /memory-cards/reviews.
func (h *ReviewHandler) SubmitReview(w http.ResponseWriter, r *http.Request) {
	log := logger.FromContextOrDefault(r.Context(), h.logger)

	var req SubmitReviewRequest
	if !decodeAndValidate(w, r, &req, log) {
		return
	}

	rating, err := domain.ParseRating(req.Rating)
	if err != nil {
		HandleAPIError(w, r, err, "")
		return
	}

	claimed, err := parseOptionalUUID("userId", req.UserID)
	if err != nil {
		HandleAPIError(w, r, err, "")
		return
	}
	userID, err := resolveActor(r, claimed)
	if err != nil {
		HandleAPIError(w, r, err, "")
		return
	}

	// validated as UUIDs above
	cardID := uuid.MustParse(req.CardID)
	var deckID uuid.UUID
	if req.DeckID != "" {
		deckID = uuid.MustParse(req.DeckID)
	}

	card, err := h.cardReviewService.SubmitReview(r.Context(), card_review.ReviewSubmission{
		UserID:          userID,
		CardID:          cardID,
		DeckID:          deckID,
		Rating:          rating,
		ReviewTime:      secondsToDuration(req.ReviewTime),
		SessionDuration: secondsToDuration(req.SessionDuration),
		ExpectedVersion: req.Version,
	})
	if err != nil {
		HandleAPIError(w, r, err, "Failed to submit review")
		return
	}

	log.Debug("review submitted",
		slog.String("card_id", cardID.String()),
		slog.String("rating", string(rating)),
		slog.Time("next_review_at", card.NextReviewAt))
	shared.RespondWithJSON(w, r, http.StatusOK, CardToResponse(card))
}

// PostponeCard handles POST /memory-cards/cards/{cardId}/postpone.
func (h *ReviewHandler) PostponeCard(w http.ResponseWriter, r *http.Request) {
	log := logger.FromContextOrDefault(r.Context(), h.logger)

	cardID, err := getPathUUID(r, "cardId")
	if err != nil {
		HandleAPIError(w, r, err, "")
		return
	}

	var req PostponeCardRequest
	if !decodeAndValidate(w, r, &req, log) {
		return
	}

	claimed, err := parseOptionalUUID("userId", req.UserID)
	if err != nil {
		HandleAPIError(w, r, err, "")
		return
	}
	userID, err := resolveActor(r, claimed)
	if err != nil {
		HandleAPIError(w, r, err, "")
		return
	}

	card, err := h.cardReviewService.PostponeCard(r.Context(), userID, cardID, req.Days)
	if err != nil {
		HandleAPIError(w, r, err, "Failed to postpone card")
		return
	}
	shared.RespondWithJSON(w, r, http.StatusOK, CardToResponse(card))
}

// GetReviewHistory handles GET /memory-cards/cards/{cardId}/reviews.
func (h *ReviewHandler) GetReviewHistory(w http.ResponseWriter, r *http.Request) {
	cardID, err := getPathUUID(r, "cardId")
	if err != nil {
		HandleAPIError(w, r, err, "")
		return
	}
	userID, err := actorFromQuery(r)
	if err != nil {
		HandleAPIError(w, r, err, "")
		return
	}
	limit, err := parseLimit(r)
	if err != nil {
		HandleAPIError(w, r, err, "")
		return
	}

	entries, err := h.cardReviewService.GetReviewHistory(r.Context(), userID, cardID, limit)
	if err != nil {
		HandleAPIError(w, r, err, "Failed to get review history")
		return
	}

	resp := make([]ReviewLogResponse, 0, len(entries))
	for _, entry := range entries {
		resp = append(resp, ReviewLogToResponse(entry))
	}
	shared.RespondWithJSON(w, r, http.StatusOK, resp)
}
