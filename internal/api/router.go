package api

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/phrazzld/memory-cards/internal/api/middleware"
	"github.com/phrazzld/memory-cards/internal/service"
	"github.com/phrazzld/memory-cards/internal/service/auth"
	"github.com/phrazzld/memory-cards/internal/service/card_review"
)

// RoutePrefix is the path prefix of every memory card endpoint.
const RoutePrefix = "/memory-cards"

// RouterDeps holds what the router needs to build its handlers.
type RouterDeps struct {
	DeckService       service.DeckService
	CardReviewService card_review.CardReviewService
	// JWTService enables bearer-token authentication when set. Without it the
	// API trusts the userId carried by each request.
	JWTService auth.JWTService
	Logger     *slog.Logger
}

// NewRouter creates the HTTP router with all routes and middleware.
func NewRouter(deps RouterDeps) http.Handler {
	log := deps.Logger
	if log == nil {
		log = slog.Default()
	}

	deckHandler := NewDeckHandler(deps.DeckService, log)
	reviewHandler := NewReviewHandler(deps.CardReviewService, log)

	r := chi.NewRouter()
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)
	r.Use(middleware.NewTraceMiddleware(log))

	r.Route(RoutePrefix, func(r chi.Router) {
		if deps.JWTService != nil {
			r.Use(middleware.NewAuthMiddleware(deps.JWTService).Authenticate)
		}

		// Decks and cards
		r.Post("/decks", deckHandler.CreateDeck)
		r.Get("/decks/{deckId}", deckHandler.GetDeck)
		r.Delete("/decks/{deckId}", deckHandler.DeleteDeck)
		r.Post("/decks/{deckId}/cards", deckHandler.AddCard)
		r.Get("/decks/{deckId}/cards", deckHandler.ListCards)
		r.Get("/users/{userId}/decks", deckHandler.ListDecks)
		r.Get("/cards/{cardId}", deckHandler.GetCard)
		r.Delete("/cards/{cardId}", deckHandler.DeleteCard)

		// Reviews
		r.Get("/users/{userId}/due-cards", reviewHandler.GetDueCards)
		r.Post("/reviews", reviewHandler.SubmitReview)
		r.Post("/cards/{cardId}/postpone", reviewHandler.PostponeCard)
		r.Get("/cards/{cardId}/reviews", reviewHandler.GetReviewHistory)
	})

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		if _, err := w.Write([]byte("OK")); err != nil {
			log.Error("failed to write health check response", slog.String("error", err.Error()))
		}
	})

	return r
}
