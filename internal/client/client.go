// Package client is an HTTP client for the memory card API. It satisfies the
// review session's Fetcher and Submitter, so a terminal or UI front end can
// drive a session against a remote server.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/phrazzld/memory-cards/internal/api"
	"github.com/phrazzld/memory-cards/internal/api/shared"
	"github.com/phrazzld/memory-cards/internal/domain"
	"github.com/phrazzld/memory-cards/internal/platform/logger"
	"github.com/phrazzld/memory-cards/internal/session"
)

// DefaultTimeout bounds each request when Config.Timeout is zero.
const DefaultTimeout = 15 * time.Second

// maxErrorBody caps how much of an error response is read.
const maxErrorBody = 64 << 10

// Config configures a Client.
type Config struct {
	// BaseURL is the server root, for example http://localhost:8080.
	BaseURL string
	// Token, when set, is sent as a bearer token.
	Token string
	// Timeout bounds each request. Ignored when HTTPClient is set.
	Timeout time.Duration
	// HTTPClient overrides the underlying client.
	HTTPClient *http.Client
}

// APIError is a non-2xx response from the server.
type APIError struct {
	StatusCode int
	Message    string
	TraceID    string
}

// Error implements the error interface.
func (e *APIError) Error() string {
	if e.TraceID != "" {
		return fmt.Sprintf("api error %d: %s (trace %s)", e.StatusCode, e.Message, e.TraceID)
	}
	return fmt.Sprintf("api error %d: %s", e.StatusCode, e.Message)
}

// UserMessage returns the server's message, which is safe to show to learners.
func (e *APIError) UserMessage() string {
	return e.Message
}

// IsStatus reports whether err is an APIError with the given status code.
func IsStatus(err error, status int) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.StatusCode == status
}

// Client talks to the memory card API.
type Client struct {
	baseURL    string
	token      string
	httpClient *http.Client
	logger     *slog.Logger
}

var (
	_ session.Fetcher   = (*Client)(nil)
	_ session.Submitter = (*Client)(nil)
)

// New creates a Client.
func New(cfg Config, logger *slog.Logger) (*Client, error) {
	base := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if base == "" {
		return nil, fmt.Errorf("client: base URL required")
	}
	if _, err := url.ParseRequestURI(base); err != nil {
		return nil, fmt.Errorf("client: invalid base URL: %w", err)
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		timeout := cfg.Timeout
		if timeout <= 0 {
			timeout = DefaultTimeout
		}
		httpClient = &http.Client{Timeout: timeout}
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &Client{
		baseURL:    base + api.RoutePrefix,
		token:      cfg.Token,
		httpClient: httpClient,
		logger:     logger.With(slog.String("component", "api_client")),
	}, nil
}

// CreateDeck creates a deck. userID may be uuid.Nil when the token identifies the user.
func (c *Client) CreateDeck(ctx context.Context, userID uuid.UUID, courseID, title, description string) (*domain.Deck, error) {
	req := api.CreateDeckRequest{
		CourseID:    courseID,
		Title:       title,
		Description: description,
	}
	if userID != uuid.Nil {
		req.UserID = userID.String()
	}

	var resp api.DeckResponse
	if err := c.do(ctx, http.MethodPost, "/decks", nil, req, &resp); err != nil {
		return nil, err
	}
	return resp.ToDomain(), nil
}

// GetDeck fetches a deck.
func (c *Client) GetDeck(ctx context.Context, deckID uuid.UUID) (*domain.Deck, error) {
	var resp api.DeckResponse
	if err := c.do(ctx, http.MethodGet, "/decks/"+deckID.String(), nil, nil, &resp); err != nil {
		return nil, err
	}
	return resp.ToDomain(), nil
}

// ListDecks lists the user's decks.
func (c *Client) ListDecks(ctx context.Context, userID uuid.UUID) ([]*domain.Deck, error) {
	var resp []api.DeckResponse
	if err := c.do(ctx, http.MethodGet, "/users/"+userID.String()+"/decks", nil, nil, &resp); err != nil {
		return nil, err
	}
	decks := make([]*domain.Deck, 0, len(resp))
	for _, d := range resp {
		decks = append(decks, d.ToDomain())
	}
	return decks, nil
}

// DeleteDeck deletes a deck with its cards and history.
func (c *Client) DeleteDeck(ctx context.Context, deckID uuid.UUID) error {
	return c.do(ctx, http.MethodDelete, "/decks/"+deckID.String(), nil, nil, nil)
}

// AddCard adds a card to a deck.
func (c *Client) AddCard(ctx context.Context, deckID uuid.UUID, draft domain.CardDraft) (*domain.Card, error) {
	req := api.AddCardRequest{
		Question:        draft.Question,
		Answer:          draft.Answer,
		ChapterID:       draft.ChapterID,
		SectionID:       draft.SectionID,
		DifficultyLevel: draft.DifficultyLevel,
	}

	var resp api.CardResponse
	if err := c.do(ctx, http.MethodPost, "/decks/"+deckID.String()+"/cards", nil, req, &resp); err != nil {
		return nil, err
	}
	return resp.ToDomain(), nil
}

// ListCards lists every card in a deck.
func (c *Client) ListCards(ctx context.Context, deckID uuid.UUID) ([]*domain.Card, error) {
	var resp []api.CardResponse
	if err := c.do(ctx, http.MethodGet, "/decks/"+deckID.String()+"/cards", nil, nil, &resp); err != nil {
		return nil, err
	}
	return cardsToDomain(resp), nil
}

// GetDueCards fetches the user's due queue, optionally for one deck.
// A limit <= 0 lets the server choose.
func (c *Client) GetDueCards(ctx context.Context, userID uuid.UUID, deckID *uuid.UUID, limit int) ([]*domain.Card, error) {
	query := url.Values{}
	if deckID != nil {
		query.Set("deckId", deckID.String())
	}
	if limit > 0 {
		query.Set("limit", strconv.Itoa(limit))
	}

	var resp api.DueCardsResponse
	if err := c.do(ctx, http.MethodGet, "/users/"+userID.String()+"/due-cards", query, nil, &resp); err != nil {
		return nil, err
	}
	return cardsToDomain(resp.Cards), nil
}

// SubmitReview records one rating and returns the stored card.
func (c *Client) SubmitReview(
	ctx context.Context,
	userID, cardID, deckID uuid.UUID,
	rating domain.Rating,
	reviewTime, sessionDuration time.Duration,
) (*domain.Card, error) {
	req := api.SubmitReviewRequest{
		CardID:          cardID.String(),
		Rating:          string(rating),
		ReviewTime:      reviewTime.Seconds(),
		SessionDuration: sessionDuration.Seconds(),
	}
	if userID != uuid.Nil {
		req.UserID = userID.String()
	}
	if deckID != uuid.Nil {
		req.DeckID = deckID.String()
	}
	return c.Review(ctx, req)
}

// Review sends a raw review request, for callers that need the version check.
func (c *Client) Review(ctx context.Context, req api.SubmitReviewRequest) (*domain.Card, error) {
	var resp api.CardResponse
	if err := c.do(ctx, http.MethodPost, "/reviews", nil, req, &resp); err != nil {
		return nil, err
	}
	return resp.ToDomain(), nil
}

// PostponeCard moves a card's next review forward by days.
func (c *Client) PostponeCard(ctx context.Context, userID, cardID uuid.UUID, days int) (*domain.Card, error) {
	req := api.PostponeCardRequest{Days: days}
	if userID != uuid.Nil {
		req.UserID = userID.String()
	}

	var resp api.CardResponse
	if err := c.do(ctx, http.MethodPost, "/cards/"+cardID.String()+"/postpone", nil, req, &resp); err != nil {
		return nil, err
	}
	return resp.ToDomain(), nil
}

// GetReviewHistory returns the card's most recent reviews first.
func (c *Client) GetReviewHistory(ctx context.Context, cardID uuid.UUID, limit int) ([]api.ReviewLogResponse, error) {
	query := url.Values{}
	if limit > 0 {
		query.Set("limit", strconv.Itoa(limit))
	}

	var resp []api.ReviewLogResponse
	if err := c.do(ctx, http.MethodGet, "/cards/"+cardID.String()+"/reviews", query, nil, &resp); err != nil {
		return nil, err
	}
	return resp, nil
}

// do sends one request. A non-2xx status becomes *APIError; out may be nil.
func (c *Client) do(ctx context.Context, method, path string, query url.Values, body, out interface{}) error {
	log := logger.FromContextOrDefault(ctx, c.logger)

	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("client: encode request: %w", err)
		}
		reader = bytes.NewReader(payload)
	}

	target := c.baseURL + path
	if len(query) > 0 {
		target += "?" + query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, method, target, reader)
	if err != nil {
		return fmt.Errorf("client: build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		log.Debug("request failed",
			slog.String("method", method),
			slog.String("path", path),
			slog.String("error", err.Error()))
		return fmt.Errorf("client: %s %s: %w", method, path, err)
	}
	defer func() { _ = resp.Body.Close() }()

	log.Debug("request completed",
		slog.String("method", method),
		slog.String("path", path),
		slog.Int("status", resp.StatusCode),
		slog.Duration("elapsed", time.Since(start)))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return decodeAPIError(resp)
	}
	if out == nil || resp.StatusCode == http.StatusNoContent {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("client: decode %s %s response: %w", method, path, err)
	}
	return nil
}

func decodeAPIError(resp *http.Response) error {
	apiErr := &APIError{
		StatusCode: resp.StatusCode,
		TraceID:    resp.Header.Get(shared.TraceIDHeader),
	}

	raw, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	var body shared.ErrorResponse
	if err := json.Unmarshal(raw, &body); err == nil && body.Error != "" {
		apiErr.Message = body.Error
		if body.TraceID != "" {
			apiErr.TraceID = body.TraceID
		}
	} else {
		apiErr.Message = http.StatusText(resp.StatusCode)
	}
	return apiErr
}

func cardsToDomain(in []api.CardResponse) []*domain.Card {
	cards := make([]*domain.Card, 0, len(in))
	for _, c := range in {
		cards = append(cards, c.ToDomain())
	}
	return cards
}
