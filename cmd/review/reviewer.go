package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/phrazzld/memory-cards/internal/client"
	"github.com/phrazzld/memory-cards/internal/domain"
	"github.com/phrazzld/memory-cards/internal/session"
)

// errQuit ends the session at the learner's request.
var errQuit = errors.New("quit")

// pendingPoll is how often the summary checks for unsaved ratings.
const pendingPoll = 50 * time.Millisecond

// reviewer drives a session from line-oriented terminal input.
type reviewer struct {
	ctrl *session.Controller
	in   *bufio.Scanner
	out  io.Writer
}

func (r *reviewer) run(ctx context.Context) (err error) {
	defer func() {
		if closeErr := closeSession(r.ctrl); closeErr != nil && err == nil {
			err = fmt.Errorf("some ratings were not saved: %w", closeErr)
		}
	}()

	r.printf("Loading due cards...\n")
	_ = r.ctrl.Load(ctx)

	for {
		if ctx.Err() != nil {
			return nil
		}

		snap := r.ctrl.Snapshot()
		var stepErr error
		switch snap.State {
		case session.StateError:
			stepErr = r.handleError(ctx, snap)
		case session.StateComplete:
			return r.finish(ctx)
		case session.StateReady:
			stepErr = r.showQuestion(snap)
		case session.StateFlipped:
			stepErr = r.askRating(snap)
		default:
			// loading happens synchronously in Load
			return fmt.Errorf("unexpected session state %q", snap.State)
		}

		if errors.Is(stepErr, errQuit) {
			r.printf("Session ended.\n")
			return nil
		}
		if stepErr != nil {
			return stepErr
		}
	}
}

func (r *reviewer) showQuestion(snap session.Snapshot) error {
	card := snap.CurrentCard()
	r.printf("\n[%d/%d] %s\n", snap.CurrentCardIndex+1, len(snap.Cards), card.Question)
	line, err := r.prompt("Press Enter to show the answer (q to quit): ")
	if err != nil {
		return err
	}
	if line == "q" {
		return errQuit
	}
	r.ctrl.FlipCard()
	return nil
}

func (r *reviewer) askRating(snap session.Snapshot) error {
	r.printf("Answer: %s\n", snap.CurrentCard().Answer)
	for {
		line, err := r.prompt("Rate it: 1 again, 2 hard, 3 good, 4 easy (q to quit): ")
		if err != nil {
			return err
		}
		if line == "q" {
			return errQuit
		}

		rating, err := parseRating(line)
		if err == nil {
			err = r.ctrl.RateCard(rating)
		}
		if err == nil {
			return nil
		}
		if !errors.Is(err, domain.ErrInvalidRating) {
			return err
		}
		r.printf("%q is not a rating.\n", line)
	}
}

func (r *reviewer) handleError(ctx context.Context, snap session.Snapshot) error {
	r.printf("%s\n", snap.ErrorMessage)
	line, err := r.prompt("Press Enter to retry (q to quit): ")
	if err != nil {
		return err
	}
	if line == "q" {
		return errQuit
	}
	_ = r.ctrl.Retry(ctx)
	return nil
}

// finish prints the summary once every rating is saved or has failed, and
// offers to resend failed ratings.
func (r *reviewer) finish(ctx context.Context) error {
	for {
		snap := r.waitForWrites(ctx)
		if !snap.HasCards {
			r.printf("No cards are due. Nice work.\n")
			return nil
		}

		r.printf("\nSession complete: %d reviewed, %d correct, %d incorrect, %.0f%% accuracy, %s.\n",
			snap.ReviewsCompleted, snap.CorrectCount, snap.IncorrectCount,
			snap.Accuracy, snap.SessionDuration.Round(time.Second))

		if len(snap.PersistenceErrors) == 0 {
			return nil
		}
		r.printf("%d rating(s) could not be saved:\n", len(snap.PersistenceErrors))
		retryable := 0
		for _, failure := range snap.PersistenceErrors {
			r.printf("  %s\n", describeFailure(failure))
			if !rejected(failure) {
				retryable++
			}
		}
		if retryable == 0 {
			return fmt.Errorf("%d rating(s) rejected by the server", len(snap.PersistenceErrors))
		}
		line, err := r.prompt("Press Enter to try again (q to give up): ")
		if err != nil || line == "q" {
			return fmt.Errorf("%d rating(s) not saved", len(snap.PersistenceErrors))
		}
		if _, err := r.ctrl.RetryFailedWrites(); err != nil {
			return err
		}
	}
}

func (r *reviewer) waitForWrites(ctx context.Context) session.Snapshot {
	deadline := time.Now().Add(closeTimeout)
	for {
		snap := r.ctrl.Snapshot()
		if snap.PendingWrites == 0 || time.Now().After(deadline) || ctx.Err() != nil {
			return snap
		}
		time.Sleep(pendingPoll)
	}
}

// rejected reports whether the server refused the rating outright, so
// sending it again cannot succeed.
func rejected(failure session.PersistenceError) bool {
	return client.IsStatus(failure.Err, http.StatusNotFound) ||
		client.IsStatus(failure.Err, http.StatusForbidden) ||
		client.IsStatus(failure.Err, http.StatusConflict)
}

func describeFailure(failure session.PersistenceError) string {
	switch {
	case client.IsStatus(failure.Err, http.StatusNotFound):
		return fmt.Sprintf("%s: the card no longer exists", failure.CardID)
	case client.IsStatus(failure.Err, http.StatusConflict):
		return fmt.Sprintf("%s: the card was reviewed elsewhere", failure.CardID)
	}
	var apiErr *client.APIError
	if errors.As(failure.Err, &apiErr) && apiErr.UserMessage() != "" {
		return fmt.Sprintf("%s: %s", failure.CardID, apiErr.UserMessage())
	}
	return fmt.Sprintf("%s: %v", failure.CardID, failure.Err)
}

// prompt reads one trimmed, lower-cased line. End of input quits.
func (r *reviewer) prompt(text string) (string, error) {
	r.printf("%s", text)
	if !r.in.Scan() {
		if err := r.in.Err(); err != nil {
			return "", err
		}
		return "", errQuit
	}
	return strings.ToLower(strings.TrimSpace(r.in.Text())), nil
}

func (r *reviewer) printf(format string, args ...interface{}) {
	_, _ = fmt.Fprintf(r.out, format, args...)
}

// parseRating accepts 1-4 as shortcuts for again, hard, good and easy.
func parseRating(input string) (domain.Rating, error) {
	ratings := domain.Ratings()
	if len(input) == 1 && input[0] >= '1' && input[0] <= '4' {
		return ratings[input[0]-'1'], nil
	}
	return domain.ParseRating(input)
}
