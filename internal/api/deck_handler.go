package api

import (
	"log/slog"
	"net/http"

	"github.com/google/uuid"
	"github.com/phrazzld/memory-cards/internal/api/shared"
	"github.com/phrazzld/memory-cards/internal/domain"
	"github.com/phrazzld/memory-cards/internal/platform/logger"
	"github.com/phrazzld/memory-cards/internal/service"
)

// DeckHandler handles deck and card management requests.
type DeckHandler struct {
	deckService service.DeckService
	logger      *slog.Logger
}

// NewDeckHandler creates a new DeckHandler.
func NewDeckHandler(deckService service.DeckService, logger *slog.Logger) *DeckHandler {
	if deckService == nil {
		// ALLOW-PANIC: Constructor enforcing required dependency
		panic("deckService cannot be nil for DeckHandler")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &DeckHandler{
		deckService: deckService,
		logger:      logger.With(slog.String("component", "deck_handler")),
	}
}

// CreateDeck handles POST /memory-cards/decks.
func (h *DeckHandler) CreateDeck(w http.ResponseWriter, r *http.Request) {
	log := logger.FromContextOrDefault(r.Context(), h.logger)

	var req CreateDeckRequest
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
	if userID == uuid.Nil {
		HandleAPIError(w, r, domain.NewValidationError("userId", "is required", domain.ErrValidation), "")
		return
	}

	deck, err := h.deckService.CreateDeck(r.Context(), service.CreateDeckInput{
		UserID:      userID,
		CourseID:    req.CourseID,
		Title:       req.Title,
		Description: req.Description,
	})
	if err != nil {
		HandleAPIError(w, r, err, "Failed to create deck")
		return
	}

	log.Debug("deck created",
		slog.String("deck_id", deck.ID.String()),
		slog.String("user_id", userID.String()))
	shared.RespondWithJSON(w, r, http.StatusCreated, DeckToResponse(deck))
}

// GetDeck handles GET /memory-cards/decks/{deckId}.
func (h *DeckHandler) GetDeck(w http.ResponseWriter, r *http.Request) {
	actorID, deckID, ok := h.actorAndPathID(w, r, "deckId")
	if !ok {
		return
	}

	deck, err := h.deckService.GetDeck(r.Context(), actorID, deckID)
	if err != nil {
		HandleAPIError(w, r, err, "Failed to get deck")
		return
	}
	shared.RespondWithJSON(w, r, http.StatusOK, DeckToResponse(deck))
}

// DeleteDeck handles DELETE /memory-cards/decks/{deckId}.
func (h *DeckHandler) DeleteDeck(w http.ResponseWriter, r *http.Request) {
	log := logger.FromContextOrDefault(r.Context(), h.logger)

	actorID, deckID, ok := h.actorAndPathID(w, r, "deckId")
	if !ok {
		return
	}

	if err := h.deckService.DeleteDeck(r.Context(), actorID, deckID); err != nil {
		HandleAPIError(w, r, err, "Failed to delete deck")
		return
	}

	log.Debug("deck deleted", slog.String("deck_id", deckID.String()))
	w.WriteHeader(http.StatusNoContent)
}

// ListDecks handles GET /memory-cards/users/{userId}/decks.
func (h *DeckHandler) ListDecks(w http.ResponseWriter, r *http.Request) {
	userID, ok := pathUser(w, r)
	if !ok {
		return
	}

	decks, err := h.deckService.ListDecks(r.Context(), userID)
	if err != nil {
		HandleAPIError(w, r, err, "Failed to list decks")
		return
	}

	resp := make([]DeckResponse, 0, len(decks))
	for _, deck := range decks {
		resp = append(resp, DeckToResponse(deck))
	}
	shared.RespondWithJSON(w, r, http.StatusOK, resp)
}

// AddCard handles POST /memory-cards/decks/{deckId}/cards.
func (h *DeckHandler) AddCard(w http.ResponseWriter, r *http.Request) {
	log := logger.FromContextOrDefault(r.Context(), h.logger)

	actorID, deckID, ok := h.actorAndPathID(w, r, "deckId")
	if !ok {
		return
	}

	var req AddCardRequest
	if !decodeAndValidate(w, r, &req, log) {
		return
	}

	card, err := h.deckService.AddCard(r.Context(), actorID, deckID, domain.CardDraft{
		Question:        req.Question,
		Answer:          req.Answer,
		ChapterID:       req.ChapterID,
		SectionID:       req.SectionID,
		DifficultyLevel: req.DifficultyLevel,
	})
	if err != nil {
		HandleAPIError(w, r, err, "Failed to add card")
		return
	}

	log.Debug("card added",
		slog.String("deck_id", deckID.String()),
		slog.String("card_id", card.ID.String()))
	shared.RespondWithJSON(w, r, http.StatusCreated, CardToResponse(card))
}

// ListCards handles GET /memory-cards/decks/{deckId}/cards.
func (h *DeckHandler) ListCards(w http.ResponseWriter, r *http.Request) {
	actorID, deckID, ok := h.actorAndPathID(w, r, "deckId")
	if !ok {
		return
	}

	cards, err := h.deckService.ListCards(r.Context(), actorID, deckID)
	if err != nil {
		HandleAPIError(w, r, err, "Failed to list cards")
		return
	}
	shared.RespondWithJSON(w, r, http.StatusOK, cardsToResponse(cards))
}

// GetCard handles GET /memory-cards/cards/{cardId}.
func (h *DeckHandler) GetCard(w http.ResponseWriter, r *http.Request) {
	actorID, cardID, ok := h.actorAndPathID(w, r, "cardId")
	if !ok {
		return
	}

	card, err := h.deckService.GetCard(r.Context(), actorID, cardID)
	if err != nil {
		HandleAPIError(w, r, err, "Failed to get card")
		return
	}
	shared.RespondWithJSON(w, r, http.StatusOK, CardToResponse(card))
}

// DeleteCard handles DELETE /memory-cards/cards/{cardId}.
func (h *DeckHandler) DeleteCard(w http.ResponseWriter, r *http.Request) {
	actorID, cardID, ok := h.actorAndPathID(w, r, "cardId")
	if !ok {
		return
	}

	if err := h.deckService.DeleteCard(r.Context(), actorID, cardID); err != nil {
		HandleAPIError(w, r, err, "Failed to delete card")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// actorAndPathID resolves the acting user (from the token, or the optional
// userId query parameter without authentication) and parses a path UUID.
// It writes the error response and returns false on failure.
func (h *DeckHandler) actorAndPathID(w http.ResponseWriter, r *http.Request, param string) (uuid.UUID, uuid.UUID, bool) {
	log := logger.FromContextOrDefault(r.Context(), h.logger)

	id, err := getPathUUID(r, param)
	if err != nil {
		log.Warn("invalid path parameter", slog.String("param_name", param))
		HandleAPIError(w, r, err, "")
		return uuid.Nil, uuid.Nil, false
	}

	actorID, err := actorFromQuery(r)
	if err != nil {
		HandleAPIError(w, r, err, "")
		return uuid.Nil, uuid.Nil, false
	}
	return actorID, id, true
}

// pathUser reads {userId} and checks it against the authenticated user.
func pathUser(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	userID, err := getPathUUID(r, "userId")
	if err != nil {
		HandleAPIError(w, r, err, "")
		return uuid.Nil, false
	}
	if _, err := resolveActor(r, &userID); err != nil {
		HandleAPIError(w, r, err, "")
		return uuid.Nil, false
	}
	return userID, true
}

// actorFromQuery resolves the actor using the optional userId query parameter.
func actorFromQuery(r *http.Request) (uuid.UUID, error) {
	claimed, err := parseOptionalUUID("userId", r.URL.Query().Get("userId"))
	if err != nil {
		return uuid.Nil, err
	}
	return resolveActor(r, claimed)
}
