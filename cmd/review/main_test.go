package main

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/phrazzld/memory-cards/internal/api"
	"github.com/phrazzld/memory-cards/internal/client"
	"github.com/phrazzld/memory-cards/internal/domain"
	"github.com/phrazzld/memory-cards/internal/domain/srs"
	"github.com/phrazzld/memory-cards/internal/platform/sqlite"
	"github.com/phrazzld/memory-cards/internal/service"
	"github.com/phrazzld/memory-cards/internal/service/card_review"
	"github.com/phrazzld/memory-cards/internal/session"
	"github.com/phrazzld/memory-cards/internal/store"
	"github.com/phrazzld/memory-cards/internal/testdb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func startServer(t *testing.T) *httptest.Server {
	t.Helper()
	db := testdb.NewSQLiteDB(t)
	scheduler, err := srs.NewDefaultService()
	require.NoError(t, err)

	cards := sqlite.NewSQLiteCardStore(db, nil)
	decks, err := service.NewDeckService(sqlite.NewSQLiteDeckStore(db, nil), cards, scheduler, nil)
	require.NoError(t, err)
	reviews, err := card_review.NewCardReviewService(
		store.NewTransactor(db), cards, sqlite.NewSQLiteReviewLogStore(db, nil), scheduler, card_review.Options{}, nil,
	)
	require.NoError(t, err)

	srv := httptest.NewServer(api.NewRouter(api.RouterDeps{DeckService: decks, CardReviewService: reviews}))
	t.Cleanup(srv.Close)
	return srv
}

func seed(t *testing.T, c *client.Client, user uuid.UUID, questions ...string) *domain.Deck {
	t.Helper()
	ctx := context.Background()
	deck, err := c.CreateDeck(ctx, user, "physio-150", "Renal physiology", "")
	require.NoError(t, err)
	for _, q := range questions {
		_, err := c.AddCard(ctx, deck.ID, domain.CardDraft{Question: q, Answer: "Loop of Henle"})
		require.NoError(t, err)
	}
	return deck
}

func TestReviewSession(t *testing.T) {
	t.Parallel()
	srv := startServer(t)
	c, err := client.New(client.Config{BaseURL: srv.URL}, nil)
	require.NoError(t, err)
	user := uuid.New()
	deck := seed(t, c, user, "Where is urine concentrated?", "Where does countercurrent multiplication happen?")

	// show, rate good; show, typo, rate again
	input := strings.NewReader("\n3\n\nmaybe\n1\n")
	var out bytes.Buffer

	err = run(context.Background(), []string{
		"--server", srv.URL, "--user", user.String(), "--deck", deck.ID.String(), "--log-level", "error",
	}, input, &out)
	require.NoError(t, err)

	text := out.String()
	assert.Contains(t, text, "[1/2] Where is urine concentrated?")
	assert.Contains(t, text, "Answer: Loop of Henle")
	assert.Contains(t, text, `"maybe" is not a rating.`)
	assert.Contains(t, text, "Session complete: 2 reviewed, 1 correct, 1 incorrect, 50% accuracy")

	due, err := c.GetDueCards(context.Background(), user, &deck.ID, 0)
	require.NoError(t, err)
	assert.Empty(t, due, "both ratings reached the server")
}

func TestReviewSessionWithNothingDue(t *testing.T) {
	t.Parallel()
	srv := startServer(t)

	var out bytes.Buffer
	err := run(context.Background(), []string{"--server", srv.URL, "--user", uuid.NewString()}, strings.NewReader(""), &out)
	require.NoError(t, err)
	assert.Contains(t, out.String(), "No cards are due")
}

func TestReviewSessionQuit(t *testing.T) {
	t.Parallel()
	srv := startServer(t)
	c, err := client.New(client.Config{BaseURL: srv.URL}, nil)
	require.NoError(t, err)
	user := uuid.New()
	seed(t, c, user, "What does ADH act on?")

	var out bytes.Buffer
	err = run(context.Background(), []string{"--server", srv.URL, "--user", user.String()}, strings.NewReader("q\n"), &out)
	require.NoError(t, err)
	assert.Contains(t, out.String(), "Session ended.")

	due, err := c.GetDueCards(context.Background(), user, nil, 0)
	require.NoError(t, err)
	assert.Len(t, due, 1, "quitting before rating saves nothing")
}

func TestReviewSessionServerDown(t *testing.T) {
	t.Parallel()
	srv := startServer(t)
	url := srv.URL
	srv.Close()

	var out bytes.Buffer
	err := run(context.Background(), []string{"--server", url, "--user", uuid.NewString(), "--log-level", "error"},
		strings.NewReader("q\n"), &out)
	require.NoError(t, err)
	assert.Contains(t, out.String(), "Could not load your due cards")
}

func TestLoadSettings(t *testing.T) {
	t.Parallel()

	_, err := loadSettings([]string{"--user", "nobody"})
	assert.ErrorContains(t, err, "--user must be a UUID")

	user := uuid.New()
	_, err = loadSettings([]string{"--user", user.String(), "--deck", "x"})
	assert.ErrorContains(t, err, "--deck must be a UUID")

	s, err := loadSettings([]string{"--user", user.String(), "--limit", "5"})
	require.NoError(t, err)
	assert.Equal(t, user, s.userID)
	assert.Nil(t, s.deckID)
	assert.Equal(t, 5, s.limit)
	assert.Equal(t, "http://localhost:8080", s.server)
}

func TestParseRating(t *testing.T) {
	t.Parallel()

	for input, want := range map[string]domain.Rating{
		"1": domain.RatingAgain, "2": domain.RatingHard, "3": domain.RatingGood, "4": domain.RatingEasy,
		"easy": domain.RatingEasy, "again": domain.RatingAgain,
	} {
		got, err := parseRating(input)
		require.NoError(t, err, input)
		assert.Equal(t, want, got)
	}

	_, err := parseRating("5")
	assert.ErrorIs(t, err, domain.ErrInvalidRating)
}

func TestDescribeFailure(t *testing.T) {
	t.Parallel()
	cardID := uuid.New()

	testCases := []struct {
		name     string
		err      error
		rejected bool
		contains string
	}{
		{"deleted card", &client.APIError{StatusCode: http.StatusNotFound, Message: "Card not found"},
			true, "no longer exists"},
		{"reviewed elsewhere", &client.APIError{StatusCode: http.StatusConflict}, true, "reviewed elsewhere"},
		{"not the owner", &client.APIError{StatusCode: http.StatusForbidden, Message: "You do not own this card"},
			true, "You do not own this card"},
		{"server trouble", &client.APIError{StatusCode: http.StatusInternalServerError, Message: "Failed to submit review"},
			false, "Failed to submit review"},
		{"network", errors.New("connection refused"), false, "connection refused"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			failure := session.PersistenceError{CardID: cardID, Rating: domain.RatingGood, Err: tc.err}
			assert.Equal(t, tc.rejected, rejected(failure))
			assert.Contains(t, describeFailure(failure), tc.contains)
			assert.Contains(t, describeFailure(failure), cardID.String())
		})
	}
}
