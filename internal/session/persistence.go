package session

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/phrazzld/memory-cards/internal/domain"
	"github.com/phrazzld/memory-cards/internal/task"
)

const writeTaskType = "submit_review"

// write is one rating waiting to be saved.
type write struct {
	cardID          uuid.UUID
	deckID          uuid.UUID
	rating          domain.Rating
	reviewTime      time.Duration
	sessionDuration time.Duration
}

// enqueueLocked hands w to the write worker. A write that cannot be queued
// is recorded as failed straight away and reported once the caller releases
// the lock (see deliverFailures). Caller holds c.mu.
func (c *Controller) enqueueLocked(w write) {
	err := c.writes.Enqueue(task.NewFuncTask(writeTaskType, func(ctx context.Context) error {
		return c.save(ctx, w)
	}))
	if err != nil {
		failure := c.recordFailureLocked(w, err)
		c.logger.Error("failed to queue rating",
			slog.String("card_id", w.cardID.String()),
			slog.String("error", err.Error()))
		c.undelivered = append(c.undelivered, failure)
		return
	}
	c.pendingWrites++
}

func (c *Controller) recordFailureLocked(w write, err error) PersistenceError {
	failure := PersistenceError{CardID: w.cardID, Rating: w.rating, Err: err, write: w}
	c.persistenceErrors = append(c.persistenceErrors, failure)
	return failure
}

// save runs on the write worker. A failure is recorded here and returned as
// a PersistenceError for the pool's error handler.
func (c *Controller) save(ctx context.Context, w write) error {
	stored, err := c.submitter.SubmitReview(ctx,
		c.cfg.UserID, w.cardID, w.deckID, w.rating, w.reviewTime, w.sessionDuration)

	c.mu.Lock()
	defer c.mu.Unlock()
	c.pendingWrites--
	if err != nil {
		return c.recordFailureLocked(w, err)
	}

	if stored != nil {
		for i, card := range c.cards {
			if card.ID == stored.ID {
				// The store's copy carries the authoritative version.
				c.cards[i] = stored.Clone()
				break
			}
		}
	}
	return nil
}

// writeFailed is the worker pool's error handler. It runs on the worker
// without the controller lock.
func (c *Controller) writeFailed(t task.Task, err error) {
	var failure PersistenceError
	if !errors.As(err, &failure) {
		c.logger.Error("write task failed", slog.String("task_id", t.ID().String()), slog.String("error", err.Error()))
		return
	}
	c.logger.Error("failed to save rating",
		slog.String("card_id", failure.CardID.String()),
		slog.String("rating", string(failure.Rating)),
		slog.String("error", failure.Err.Error()))
	c.notify(failure)
}

// deliverFailures reports failures recorded while queueing. Public methods
// defer it ahead of taking the lock so it runs after the lock is released.
func (c *Controller) deliverFailures() {
	c.mu.Lock()
	pending := c.undelivered
	c.undelivered = nil
	c.mu.Unlock()

	for _, failure := range pending {
		c.notify(failure)
	}
}

func (c *Controller) notify(failure PersistenceError) {
	if c.onFailure != nil {
		c.onFailure(failure)
	}
}

// RetryFailedWrites queues every failed rating again, in the order they were
// made, and clears them from the snapshot. It returns how many were queued.
func (c *Controller) RetryFailedWrites() (int, error) {
	defer c.deliverFailures()
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return 0, ErrClosed
	}

	failed := c.persistenceErrors
	c.persistenceErrors = nil

	for _, f := range failed {
		c.enqueueLocked(f.write)
	}

	queued := len(failed) - len(c.persistenceErrors)
	c.logger.Debug("retrying failed ratings", slog.Int("queued", queued))
	return queued, nil
}
