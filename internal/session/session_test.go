package session_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/phrazzld/memory-cards/internal/domain"
	"github.com/phrazzld/memory-cards/internal/domain/srs"
	"github.com/phrazzld/memory-cards/internal/session"
	"github.com/phrazzld/memory-cards/internal/task"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var t0 = time.Date(2025, 3, 14, 9, 0, 0, 0, time.UTC)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type stubFetcher struct {
	mu    sync.Mutex
	cards []*domain.Card
	err   error
	calls int
}

func (f *stubFetcher) GetDueCards(context.Context, uuid.UUID, *uuid.UUID, int) ([]*domain.Card, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	return f.cards, f.err
}

func (f *stubFetcher) set(cards []*domain.Card, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.cards, f.err = cards, err
}

type submitted struct {
	cardID          uuid.UUID
	rating          domain.Rating
	reviewTime      time.Duration
	sessionDuration time.Duration
}

type stubSubmitter struct {
	mu      sync.Mutex
	calls   []submitted
	fail    error
	release chan struct{}
}

func (s *stubSubmitter) SubmitReview(
	ctx context.Context,
	_, cardID, _ uuid.UUID,
	rating domain.Rating,
	reviewTime, sessionDuration time.Duration,
) (*domain.Card, error) {
	if s.release != nil {
		select {
		case <-s.release:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls = append(s.calls, submitted{cardID, rating, reviewTime, sessionDuration})
	return nil, s.fail
}

func (s *stubSubmitter) setFail(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.fail = err
}

func (s *stubSubmitter) recorded() []submitted {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]submitted, len(s.calls))
	copy(out, s.calls)
	return out
}

// countingScheduler counts ApplyRating calls.
type countingScheduler struct {
	srs.Service
	mu    sync.Mutex
	calls int
}

func (s *countingScheduler) ApplyRating(card *domain.Card, rating domain.Rating, now time.Time) (*domain.Card, error) {
	s.mu.Lock()
	s.calls++
	s.mu.Unlock()
	return s.Service.ApplyRating(card, rating, now)
}

func (s *countingScheduler) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

// apiError mimics a transport error whose body carries a message.
type apiError struct {
	status  int
	message string
}

func (e *apiError) Error() string       { return "request failed" }
func (e *apiError) UserMessage() string { return e.message }

type harness struct {
	ctrl      *session.Controller
	fetcher   *stubFetcher
	submitter *stubSubmitter
	scheduler *countingScheduler
	clock     *fakeClock
}

func newHarness(t *testing.T, cards int) *harness {
	t.Helper()
	base, err := srs.NewDefaultService()
	require.NoError(t, err)

	h := &harness{
		fetcher:   &stubFetcher{cards: dueCards(t, base, cards)},
		submitter: &stubSubmitter{},
		scheduler: &countingScheduler{Service: base},
		clock:     &fakeClock{now: t0},
	}
	h.ctrl, err = session.New(session.Config{UserID: uuid.New()}, session.Dependencies{
		Fetcher:   h.fetcher,
		Submitter: h.submitter,
		Scheduler: h.scheduler,
		Clock:     h.clock.Now,
	})
	require.NoError(t, err)
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		_ = h.ctrl.Close(ctx)
	})
	return h
}

func dueCards(t *testing.T, scheduler srs.Service, n int) []*domain.Card {
	t.Helper()
	deck, err := domain.NewDeck(uuid.New(), "neuro-110", "Cranial nerves", "", t0.Add(-time.Hour))
	require.NoError(t, err)

	cards := make([]*domain.Card, 0, n)
	for i := 0; i < n; i++ {
		card, err := domain.NewCard(deck, domain.CardDraft{
			Question:        "Which nerve?",
			Answer:          "Vagus",
			DifficultyLevel: 3,
		}, scheduler.InitialState(3), t0.Add(-time.Hour))
		require.NoError(t, err)
		cards = append(cards, card)
	}
	return cards
}

func (h *harness) drain(t *testing.T) {
	t.Helper()
	assert.Eventually(t, func() bool {
		return h.ctrl.Snapshot().PendingWrites == 0
	}, time.Second, 5*time.Millisecond)
}

func TestNewValidatesDependencies(t *testing.T) {
	t.Parallel()
	scheduler, err := srs.NewDefaultService()
	require.NoError(t, err)
	deps := session.Dependencies{Fetcher: &stubFetcher{}, Submitter: &stubSubmitter{}, Scheduler: scheduler}

	_, err = session.New(session.Config{}, deps)
	assert.ErrorIs(t, err, domain.ErrValidation)

	for name, broken := range map[string]session.Dependencies{
		"fetcher":   {Submitter: deps.Submitter, Scheduler: scheduler},
		"submitter": {Fetcher: deps.Fetcher, Scheduler: scheduler},
		"scheduler": {Fetcher: deps.Fetcher, Submitter: deps.Submitter},
	} {
		_, err := session.New(session.Config{UserID: uuid.New()}, broken)
		assert.ErrorIs(t, err, domain.ErrValidation, name)
	}
}

func TestTwoCardPassCompletes(t *testing.T) {
	t.Parallel()
	h := newHarness(t, 2)
	require.NoError(t, h.ctrl.Load(context.Background()))

	snap := h.ctrl.Snapshot()
	assert.Equal(t, session.StateReady, snap.State)
	assert.True(t, snap.HasCards)
	assert.NotNil(t, snap.CurrentCard())

	require.NoError(t, h.ctrl.RateCard(domain.RatingGood))
	require.NoError(t, h.ctrl.RateCard(domain.RatingEasy))

	snap = h.ctrl.Snapshot()
	assert.Equal(t, 2, snap.ReviewsCompleted)
	assert.Equal(t, 2, snap.CurrentCardIndex)
	assert.True(t, snap.IsComplete)
	assert.Equal(t, 100.0, snap.Accuracy)
	assert.Nil(t, snap.CurrentCard())

	h.drain(t)
	calls := h.submitter.recorded()
	require.Len(t, calls, 2)
	assert.Equal(t, domain.RatingGood, calls[0].rating)
	assert.Equal(t, domain.RatingEasy, calls[1].rating)

	assert.ErrorIs(t, h.ctrl.RateCard(domain.RatingGood), session.ErrNotRateable)
}

func TestEmptyQueueCompletesImmediately(t *testing.T) {
	t.Parallel()
	h := newHarness(t, 0)
	h.fetcher.set([]*domain.Card{}, nil)

	require.NoError(t, h.ctrl.Load(context.Background()))

	snap := h.ctrl.Snapshot()
	assert.False(t, snap.HasCards)
	assert.True(t, snap.IsComplete)
	assert.False(t, snap.IsError)
	assert.Zero(t, snap.Accuracy)
	assert.ErrorIs(t, h.ctrl.RateCard(domain.RatingGood), session.ErrNotRateable)
	assert.Zero(t, h.scheduler.count())
}

func TestFetchFailureSurfacesMessage(t *testing.T) {
	t.Parallel()
	h := newHarness(t, 2)
	fetchErr := &apiError{status: 500, message: "Server error"}
	h.fetcher.set(nil, fetchErr)

	err := h.ctrl.Load(context.Background())
	assert.ErrorIs(t, err, fetchErr)

	snap := h.ctrl.Snapshot()
	assert.True(t, snap.IsError)
	assert.Equal(t, "Server error", snap.ErrorMessage)
	assert.Empty(t, snap.Cards)
	assert.NotNil(t, snap.Cards)
	assert.ErrorIs(t, h.ctrl.RateCard(domain.RatingGood), session.ErrNotRateable)
	assert.False(t, h.ctrl.FlipCard())

	// Manual retry recovers.
	h.fetcher.set(dueCards(t, h.scheduler.Service, 1), nil)
	require.NoError(t, h.ctrl.Retry(context.Background()))
	snap = h.ctrl.Snapshot()
	assert.False(t, snap.IsError)
	assert.Empty(t, snap.ErrorMessage)
	assert.Equal(t, session.StateReady, snap.State)
}

func TestFetchFailureMessages(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		name string
		err  error
		want string
	}{
		{"message from the error body", &apiError{status: 503, message: "Maintenance until 10:00"}, "Maintenance until 10:00"},
		{"empty body falls back", &apiError{status: 500}, "Could not load your due cards. Check your connection and try again."},
		{"plain error", errors.New("dial tcp: connection refused"), "Could not load your due cards. Check your connection and try again."},
		{"timeout", context.DeadlineExceeded, "Loading your due cards took too long. Please try again."},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			h := newHarness(t, 0)
			h.fetcher.set(nil, tc.err)
			require.Error(t, h.ctrl.Load(context.Background()))
			assert.Equal(t, tc.want, h.ctrl.Snapshot().ErrorMessage)
		})
	}
}

func TestFlipTwiceHasNoSchedulingEffect(t *testing.T) {
	t.Parallel()
	h := newHarness(t, 1)
	require.NoError(t, h.ctrl.Load(context.Background()))

	assert.True(t, h.ctrl.FlipCard())
	assert.Equal(t, session.StateFlipped, h.ctrl.Snapshot().State)
	assert.False(t, h.ctrl.FlipCard())

	snap := h.ctrl.Snapshot()
	assert.False(t, snap.IsFlipped)
	assert.Equal(t, session.StateReady, snap.State)
	assert.Zero(t, h.scheduler.count())
	assert.Zero(t, snap.ReviewsCompleted)
}

func TestSessionDurationTicks(t *testing.T) {
	t.Parallel()
	h := newHarness(t, 2)
	require.NoError(t, h.ctrl.Load(context.Background()))

	for i := 0; i < 30; i++ {
		h.clock.Advance(time.Second)
		h.ctrl.Tick()
	}
	assert.GreaterOrEqual(t, h.ctrl.Snapshot().SessionDuration, 30*time.Second)

	// A clock stepping backwards never shrinks the duration.
	h.clock.Advance(-10 * time.Second)
	h.ctrl.Tick()
	assert.Equal(t, 30*time.Second, h.ctrl.Snapshot().SessionDuration)
}

func TestSessionDurationFreezesOnComplete(t *testing.T) {
	t.Parallel()
	h := newHarness(t, 1)
	require.NoError(t, h.ctrl.Load(context.Background()))

	h.clock.Advance(45 * time.Second)
	require.NoError(t, h.ctrl.RateCard(domain.RatingHard))
	assert.Equal(t, 45*time.Second, h.ctrl.Snapshot().SessionDuration)

	h.clock.Advance(time.Hour)
	h.ctrl.Tick()
	assert.Equal(t, 45*time.Second, h.ctrl.Snapshot().SessionDuration)

	h.drain(t)
	calls := h.submitter.recorded()
	require.Len(t, calls, 1)
	assert.Equal(t, 45*time.Second, calls[0].reviewTime)
	assert.Equal(t, 45*time.Second, calls[0].sessionDuration)
}

func TestStartDrivesTicks(t *testing.T) {
	t.Parallel()
	base, err := srs.NewDefaultService()
	require.NoError(t, err)

	start := time.Now()
	ctrl, err := session.New(session.Config{UserID: uuid.New(), TickInterval: 5 * time.Millisecond}, session.Dependencies{
		Fetcher:   &stubFetcher{cards: dueCards(t, base, 1)},
		Submitter: &stubSubmitter{},
		Scheduler: base,
	})
	require.NoError(t, err)
	defer func() { _ = ctrl.Close(context.Background()) }()

	require.NoError(t, ctrl.Load(context.Background()))
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	ctrl.Start(ctx)

	assert.Eventually(t, func() bool {
		return ctrl.Snapshot().SessionDuration > 0
	}, time.Second, 5*time.Millisecond)
	assert.LessOrEqual(t, ctrl.Snapshot().SessionDuration, time.Since(start))
}

func TestRateCardRejectsInvalidRating(t *testing.T) {
	t.Parallel()
	h := newHarness(t, 2)
	require.NoError(t, h.ctrl.Load(context.Background()))
	h.ctrl.FlipCard()
	before := h.ctrl.Snapshot()

	err := h.ctrl.RateCard(domain.Rating("perfect"))
	assert.ErrorIs(t, err, domain.ErrInvalidRating)
	assert.Equal(t, before, h.ctrl.Snapshot())
}

func TestRatingFromLoadingIsNotAllowed(t *testing.T) {
	t.Parallel()
	h := newHarness(t, 1)
	assert.ErrorIs(t, h.ctrl.RateCard(domain.RatingGood), session.ErrNotRateable, "idle")

	blocking := &blockingFetcher{release: make(chan struct{})}
	base, err := srs.NewDefaultService()
	require.NoError(t, err)
	ctrl, err := session.New(session.Config{UserID: uuid.New()}, session.Dependencies{
		Fetcher: blocking, Submitter: &stubSubmitter{}, Scheduler: base,
	})
	require.NoError(t, err)

	done := make(chan error, 1)
	go func() { done <- ctrl.Load(context.Background()) }()
	assert.Eventually(t, func() bool { return ctrl.Snapshot().IsLoading }, time.Second, time.Millisecond)

	assert.ErrorIs(t, ctrl.RateCard(domain.RatingGood), session.ErrNotRateable)
	assert.ErrorIs(t, ctrl.Load(context.Background()), session.ErrAlreadyLoading)

	close(blocking.release)
	require.NoError(t, <-done)
	require.NoError(t, ctrl.Close(context.Background()))
}

type blockingFetcher struct {
	release chan struct{}
}

func (f *blockingFetcher) GetDueCards(context.Context, uuid.UUID, *uuid.UUID, int) ([]*domain.Card, error) {
	<-f.release
	return []*domain.Card{}, nil
}

func TestAccuracyCountsAgainAsIncorrect(t *testing.T) {
	t.Parallel()
	h := newHarness(t, 4)
	require.NoError(t, h.ctrl.Load(context.Background()))

	for _, r := range []domain.Rating{domain.RatingAgain, domain.RatingGood, domain.RatingHard, domain.RatingAgain} {
		require.NoError(t, h.ctrl.RateCard(r))
		snap := h.ctrl.Snapshot()
		assert.GreaterOrEqual(t, snap.Accuracy, 0.0)
		assert.LessOrEqual(t, snap.Accuracy, 100.0)
	}

	snap := h.ctrl.Snapshot()
	assert.Equal(t, 2, snap.CorrectCount)
	assert.Equal(t, 2, snap.IncorrectCount)
	assert.Equal(t, 50.0, snap.Accuracy)
}

func TestRatingsPersistInOrderWithoutBlocking(t *testing.T) {
	t.Parallel()
	h := newHarness(t, 3)
	h.submitter.release = make(chan struct{})
	require.NoError(t, h.ctrl.Load(context.Background()))

	ids := make([]uuid.UUID, 0, 3)
	for _, r := range []domain.Rating{domain.RatingEasy, domain.RatingAgain, domain.RatingGood} {
		ids = append(ids, h.ctrl.Snapshot().CurrentCard().ID)
		require.NoError(t, h.ctrl.RateCard(r))
	}

	snap := h.ctrl.Snapshot()
	assert.True(t, snap.IsComplete, "the pass advances while writes are pending")
	assert.Equal(t, 3, snap.PendingWrites)

	close(h.submitter.release)
	h.drain(t)

	calls := h.submitter.recorded()
	require.Len(t, calls, 3)
	for i, call := range calls {
		assert.Equal(t, ids[i], call.cardID)
	}
	assert.Equal(t, domain.RatingAgain, calls[1].rating)
}

func TestPersistenceFailureIsSurfacedAndRetried(t *testing.T) {
	t.Parallel()
	base, err := srs.NewDefaultService()
	require.NoError(t, err)

	saveErr := errors.New("503 from card store")
	submitter := &stubSubmitter{fail: saveErr}
	reported := make(chan session.PersistenceError, 4)

	ctrl, err := session.New(session.Config{UserID: uuid.New()}, session.Dependencies{
		Fetcher:              &stubFetcher{cards: dueCards(t, base, 2)},
		Submitter:            submitter,
		Scheduler:            base,
		OnPersistenceFailure: func(pe session.PersistenceError) { reported <- pe },
	})
	require.NoError(t, err)
	defer func() { _ = ctrl.Close(context.Background()) }()

	require.NoError(t, ctrl.Load(context.Background()))
	first := ctrl.Snapshot().CurrentCard().ID
	require.NoError(t, ctrl.RateCard(domain.RatingGood))

	select {
	case pe := <-reported:
		assert.Equal(t, first, pe.CardID)
		assert.Equal(t, domain.RatingGood, pe.Rating)
		assert.ErrorIs(t, pe, saveErr)
		assert.Contains(t, pe.Error(), "good rating")
	case <-time.After(time.Second):
		t.Fatal("persistence failure was not reported")
	}

	snap := ctrl.Snapshot()
	require.Len(t, snap.PersistenceErrors, 1)
	assert.False(t, snap.IsError, "a failed write is not a fetch failure")
	assert.Equal(t, 1, snap.ReviewsCompleted, "the session still advanced")

	submitter.setFail(nil)
	queued, err := ctrl.RetryFailedWrites()
	require.NoError(t, err)
	assert.Equal(t, 1, queued)

	assert.Eventually(t, func() bool {
		s := ctrl.Snapshot()
		return s.PendingWrites == 0 && len(s.PersistenceErrors) == 0
	}, time.Second, 5*time.Millisecond)
	assert.Len(t, submitter.recorded(), 2)
}

func TestQueueingFailureIsReportedBeforeRateCardReturns(t *testing.T) {
	t.Parallel()
	base, err := srs.NewDefaultService()
	require.NoError(t, err)

	submitter := &stubSubmitter{release: make(chan struct{})}
	var (
		mu       sync.Mutex
		reported []session.PersistenceError
	)
	ctrl, err := session.New(session.Config{UserID: uuid.New(), QueueSize: 1}, session.Dependencies{
		Fetcher:   &stubFetcher{cards: dueCards(t, base, 3)},
		Submitter: submitter,
		Scheduler: base,
		OnPersistenceFailure: func(pe session.PersistenceError) {
			mu.Lock()
			defer mu.Unlock()
			reported = append(reported, pe)
		},
	})
	require.NoError(t, err)
	defer func() {
		close(submitter.release)
		_ = ctrl.Close(context.Background())
	}()

	require.NoError(t, ctrl.Load(context.Background()))
	for i := 0; i < 3; i++ {
		require.NoError(t, ctrl.RateCard(domain.RatingGood))
	}

	// One write can be in flight and one buffered, so at least one of three
	// could not be queued. Each is reported synchronously.
	mu.Lock()
	got := append([]session.PersistenceError(nil), reported...)
	mu.Unlock()
	require.NotEmpty(t, got)

	snap := ctrl.Snapshot()
	assert.Len(t, snap.PersistenceErrors, len(got))
	for _, pe := range got {
		assert.ErrorIs(t, pe, task.ErrQueueFull)
	}
}

func TestCloseDrainsQueuedWrites(t *testing.T) {
	t.Parallel()
	h := newHarness(t, 2)
	require.NoError(t, h.ctrl.Load(context.Background()))
	require.NoError(t, h.ctrl.RateCard(domain.RatingGood))

	require.NoError(t, h.ctrl.Close(context.Background()))
	assert.Len(t, h.submitter.recorded(), 1)

	assert.ErrorIs(t, h.ctrl.RateCard(domain.RatingGood), session.ErrClosed)
	assert.ErrorIs(t, h.ctrl.Load(context.Background()), session.ErrClosed)
	_, err := h.ctrl.RetryFailedWrites()
	assert.ErrorIs(t, err, session.ErrClosed)
	assert.NoError(t, h.ctrl.Close(context.Background()), "close is idempotent")
}

func TestCloseGivesUpOnStuckWrites(t *testing.T) {
	t.Parallel()
	h := newHarness(t, 1)
	h.submitter.release = make(chan struct{})
	require.NoError(t, h.ctrl.Load(context.Background()))
	require.NoError(t, h.ctrl.RateCard(domain.RatingEasy))

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, h.ctrl.Close(ctx), context.DeadlineExceeded)
}
