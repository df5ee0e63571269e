package session

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/phrazzld/memory-cards/internal/domain"
	"github.com/phrazzld/memory-cards/internal/domain/srs"
	"github.com/phrazzld/memory-cards/internal/task"
)

// State is the controller's position in a review pass.
type State string

const (
	StateIdle     State = "idle"
	StateLoading  State = "loading"
	StateReady    State = "ready"
	StateFlipped  State = "flipped"
	StateComplete State = "complete"
	StateError    State = "error"
)

// DefaultTickInterval is how often Start recomputes the session duration.
const DefaultTickInterval = time.Second

// Fetcher supplies the due queue.
type Fetcher interface {
	GetDueCards(ctx context.Context, userID uuid.UUID, deckID *uuid.UUID, limit int) ([]*domain.Card, error)
}

// Submitter persists one rating and returns the stored card.
type Submitter interface {
	SubmitReview(
		ctx context.Context,
		userID, cardID, deckID uuid.UUID,
		rating domain.Rating,
		reviewTime, sessionDuration time.Duration,
	) (*domain.Card, error)
}

// Config selects what the session reviews.
type Config struct {
	UserID uuid.UUID
	// DeckID narrows the queue to one deck when set.
	DeckID *uuid.UUID
	// Limit caps the queue; <= 0 lets the Fetcher pick its default.
	Limit int
	// TickInterval drives Start; DefaultTickInterval when zero.
	TickInterval time.Duration
	// QueueSize bounds the number of unsaved ratings; task.DefaultQueueSize
	// when zero.
	QueueSize int
}

// Dependencies are the controller's collaborators.
type Dependencies struct {
	Fetcher   Fetcher
	Submitter Submitter
	Scheduler srs.Service
	// Clock returns the current time; time.Now when nil.
	Clock func() time.Time
	// OnPersistenceFailure, when set, is called for every rating that could
	// not be saved, never with the controller lock held. Save failures are
	// reported on the write worker in submission order; a rating that could
	// not even be queued is reported before RateCard or RetryFailedWrites
	// returns.
	OnPersistenceFailure func(PersistenceError)
	Logger               *slog.Logger
}

// Snapshot is a consistent copy of the session's observable state.
type Snapshot struct {
	State             State
	Cards             []*domain.Card
	IsLoading         bool
	IsError           bool
	ErrorMessage      string
	CurrentCardIndex  int
	IsFlipped         bool
	ReviewsCompleted  int
	CorrectCount      int
	IncorrectCount    int
	Accuracy          float64
	IsComplete        bool
	HasCards          bool
	SessionDuration   time.Duration
	PendingWrites     int
	PersistenceErrors []PersistenceError
}

// CurrentCard returns the card on screen, or nil when there is none.
func (s Snapshot) CurrentCard() *domain.Card {
	if s.State != StateReady && s.State != StateFlipped {
		return nil
	}
	if s.CurrentCardIndex < 0 || s.CurrentCardIndex >= len(s.Cards) {
		return nil
	}
	return s.Cards[s.CurrentCardIndex]
}

// Controller is a review session. All methods are safe for concurrent use.
type Controller struct {
	cfg       Config
	fetcher   Fetcher
	submitter Submitter
	scheduler srs.Service
	now       func() time.Time
	onFailure func(PersistenceError)
	logger    *slog.Logger

	writes *task.TaskQueue
	pool   *task.WorkerPool

	mu                sync.Mutex
	state             State
	cards             []*domain.Card
	errorMessage      string
	index             int
	flipped           bool
	reviewsCompleted  int
	correct           int
	incorrect         int
	startedAt         time.Time
	shownAt           time.Time
	duration          time.Duration
	pendingWrites     int
	persistenceErrors []PersistenceError
	// undelivered holds queueing failures not yet passed to onFailure.
	undelivered []PersistenceError
	closed            bool
	stopTicker        context.CancelFunc
}

// New creates an idle controller and starts its write worker. Call Load to
// fetch the queue and Close when the learner leaves.
func New(cfg Config, deps Dependencies) (*Controller, error) {
	if cfg.UserID == uuid.Nil {
		return nil, domain.NewValidationError("userID", "cannot be empty", domain.ErrValidation)
	}
	if deps.Fetcher == nil {
		return nil, domain.NewValidationError("fetcher", "cannot be nil", domain.ErrValidation)
	}
	if deps.Submitter == nil {
		return nil, domain.NewValidationError("submitter", "cannot be nil", domain.ErrValidation)
	}
	if deps.Scheduler == nil {
		return nil, domain.NewValidationError("scheduler", "cannot be nil", domain.ErrValidation)
	}
	if deps.Clock == nil {
		deps.Clock = time.Now
	}
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	if cfg.TickInterval <= 0 {
		cfg.TickInterval = DefaultTickInterval
	}

	logger := deps.Logger.With(
		slog.String("component", "review_session"),
		slog.String("user_id", cfg.UserID.String()),
	)

	writes := task.NewTaskQueue(cfg.QueueSize, logger)
	pool := task.NewWorkerPool(writes, task.DefaultWorkerPoolConfig(), logger)

	c := &Controller{
		cfg:       cfg,
		fetcher:   deps.Fetcher,
		submitter: deps.Submitter,
		scheduler: deps.Scheduler,
		now:       deps.Clock,
		onFailure: deps.OnPersistenceFailure,
		logger:    logger,
		writes:    writes,
		pool:      pool,
		state:     StateIdle,
		cards:     []*domain.Card{},
	}
	pool.SetErrorHandler(c.writeFailed)
	pool.Start()
	return c, nil
}

// Load fetches the due queue and starts a new pass over it. The mutex is not
// held during the fetch, so FlipCard, Snapshot and Tick stay responsive.
//
// A failed fetch moves the session to StateError with a message for the
// learner; the error is also returned. An empty queue completes the session
// immediately with HasCards false.
func (c *Controller) Load(ctx context.Context) error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return ErrClosed
	}
	if c.state == StateLoading {
		c.mu.Unlock()
		return ErrAlreadyLoading
	}

	now := c.now()
	if c.state != StateError || c.startedAt.IsZero() {
		// A retry after a failed fetch keeps the clock running; anything
		// else starts a fresh pass.
		c.startedAt = now
		c.duration = 0
	}
	c.state = StateLoading
	c.cards = []*domain.Card{}
	c.errorMessage = ""
	c.index = 0
	c.flipped = false
	c.reviewsCompleted = 0
	c.correct = 0
	c.incorrect = 0
	c.mu.Unlock()

	c.logger.Debug("loading due cards", slog.Int("limit", c.cfg.Limit))
	cards, err := c.fetcher.GetDueCards(ctx, c.cfg.UserID, c.cfg.DeckID, c.cfg.Limit)

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return ErrClosed
	}

	if err != nil {
		c.state = StateError
		c.errorMessage = fetchErrorMessage(err)
		c.logger.Warn("failed to load due cards",
			slog.String("error", err.Error()),
			slog.String("message", c.errorMessage))
		return err
	}

	c.cards = make([]*domain.Card, 0, len(cards))
	for _, card := range cards {
		if card != nil {
			c.cards = append(c.cards, card.Clone())
		}
	}

	if len(c.cards) == 0 {
		c.complete()
		c.logger.Debug("no cards due")
		return nil
	}

	c.state = StateReady
	c.shownAt = c.now()
	c.logger.Debug("due cards loaded", slog.Int("count", len(c.cards)))
	return nil
}

// Retry refetches the queue, typically after a failed Load.
func (c *Controller) Retry(ctx context.Context) error {
	return c.Load(ctx)
}

// FlipCard toggles between question and answer. It has no scheduling effect
// and does nothing unless a card is on screen. It returns the new flip state.
func (c *Controller) FlipCard() bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	switch c.state {
	case StateReady:
		c.state = StateFlipped
		c.flipped = true
	case StateFlipped:
		c.state = StateReady
		c.flipped = false
	}
	return c.flipped
}

// RateCard applies rating to the current card, queues the write and moves
// to the next card. It never waits for the write.
//
// Returns ErrNotRateable when no card is on screen and domain.ErrInvalidRating
// for a rating outside again/hard/good/easy; in both cases nothing changes.
func (c *Controller) RateCard(rating domain.Rating) error {
	defer c.deliverFailures()
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return ErrClosed
	}
	if (c.state != StateReady && c.state != StateFlipped) || c.index >= len(c.cards) {
		return ErrNotRateable
	}

	now := c.now()
	current := c.cards[c.index]
	next, err := c.scheduler.ApplyRating(current, rating, now)
	if err != nil {
		return err
	}

	c.refreshDuration(now)
	w := write{
		cardID:          current.ID,
		deckID:          current.DeckID,
		rating:          rating,
		reviewTime:      nonNegative(now.Sub(c.shownAt)),
		sessionDuration: c.duration,
	}

	c.cards[c.index] = next
	c.reviewsCompleted++
	if rating.IsCorrect() {
		c.correct++
	} else {
		c.incorrect++
	}
	c.flipped = false
	c.index++

	c.enqueueLocked(w)

	if c.index >= len(c.cards) {
		c.complete()
		c.logger.Debug("review pass complete",
			slog.Int("reviews", c.reviewsCompleted),
			slog.Float64("accuracy", c.accuracy()))
		return nil
	}

	c.state = StateReady
	c.shownAt = now
	return nil
}

// Tick recomputes the session duration. Start calls it on a timer; tests
// call it directly.
func (c *Controller) Tick() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.refreshDuration(c.now())
}

// Start ticks the session duration every TickInterval until ctx ends or the
// session is closed. Calling Start again replaces the previous ticker.
func (c *Controller) Start(ctx context.Context) {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	if c.stopTicker != nil {
		c.stopTicker()
	}
	ctx, cancel := context.WithCancel(ctx)
	c.stopTicker = cancel
	interval := c.cfg.TickInterval
	c.mu.Unlock()

	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				c.Tick()
			}
		}
	}()
}

// Close abandons the session. No further cards are fetched or rated; writes
// already queued keep going until they finish or ctx ends, and nothing that
// was saved is rolled back. Close returns ctx's error if writes were cut off.
func (c *Controller) Close(ctx context.Context) error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.refreshDuration(c.now())
	c.closed = true
	if c.stopTicker != nil {
		c.stopTicker()
	}
	pending := c.pendingWrites
	c.mu.Unlock()

	c.logger.Debug("closing review session", slog.Int("pending_writes", pending))
	c.writes.Close()
	if err := c.pool.Stop(ctx); err != nil {
		if !errors.Is(err, context.Canceled) {
			c.logger.Warn("review session closed with unsaved ratings",
				slog.String("error", err.Error()))
		}
		return err
	}
	return nil
}

// Snapshot returns a copy of the observable state.
func (c *Controller) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()

	cards := make([]*domain.Card, len(c.cards))
	for i, card := range c.cards {
		cards[i] = card.Clone()
	}
	failures := make([]PersistenceError, len(c.persistenceErrors))
	copy(failures, c.persistenceErrors)

	return Snapshot{
		State:             c.state,
		Cards:             cards,
		IsLoading:         c.state == StateLoading,
		IsError:           c.state == StateError,
		ErrorMessage:      c.errorMessage,
		CurrentCardIndex:  c.index,
		IsFlipped:         c.flipped,
		ReviewsCompleted:  c.reviewsCompleted,
		CorrectCount:      c.correct,
		IncorrectCount:    c.incorrect,
		Accuracy:          c.accuracy(),
		IsComplete:        c.state == StateComplete,
		HasCards:          len(c.cards) > 0,
		SessionDuration:   c.duration,
		PendingWrites:     c.pendingWrites,
		PersistenceErrors: failures,
	}
}

// complete ends the pass and freezes the duration. Caller holds c.mu.
func (c *Controller) complete() {
	c.refreshDuration(c.now())
	c.state = StateComplete
	c.flipped = false
}

// refreshDuration advances the duration while the pass is running. The value
// never decreases, even if the clock steps backwards. Caller holds c.mu.
func (c *Controller) refreshDuration(now time.Time) {
	if c.closed || c.startedAt.IsZero() || c.state == StateComplete {
		return
	}
	if elapsed := now.Sub(c.startedAt); elapsed > c.duration {
		c.duration = elapsed
	}
}

// accuracy is the share of correct ratings in percent. Caller holds c.mu.
func (c *Controller) accuracy() float64 {
	if c.reviewsCompleted == 0 {
		return 0
	}
	pct := float64(c.correct) / float64(c.reviewsCompleted) * 100
	switch {
	case pct < 0:
		return 0
	case pct > 100:
		return 100
	}
	return pct
}

func nonNegative(d time.Duration) time.Duration {
	if d < 0 {
		return 0
	}
	return d
}
