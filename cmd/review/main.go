// Command review runs a spaced-repetition review session in the terminal
// against a memory-cards server.
//
// Usage:
//
//	review --server http://localhost:8080 --user <uuid> [--deck <uuid>] [--limit 20]
//
// Every flag can also come from the environment, e.g. MEMCARDS_REVIEW_TOKEN.
package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/phrazzld/memory-cards/internal/client"
	"github.com/phrazzld/memory-cards/internal/domain/srs"
	"github.com/phrazzld/memory-cards/internal/platform/logger"
	"github.com/phrazzld/memory-cards/internal/session"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// envPrefix namespaces the environment variables read by this command.
const envPrefix = "MEMCARDS_REVIEW"

type settings struct {
	server   string
	token    string
	userID   uuid.UUID
	deckID   *uuid.UUID
	limit    int
	logLevel string
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, os.Args[1:], os.Stdin, os.Stdout); err != nil {
		fmt.Fprintf(os.Stderr, "review: %v\n", err)
		os.Exit(1)
	}
}

func loadSettings(args []string) (settings, error) {
	fs := pflag.NewFlagSet("review", pflag.ContinueOnError)
	fs.String("server", "http://localhost:8080", "memory-cards server URL")
	fs.String("token", "", "bearer token when the server requires authentication")
	fs.String("user", "", "learner user ID")
	fs.String("deck", "", "review only this deck")
	fs.Int("limit", 0, "maximum cards in the session (server default when 0)")
	fs.String("log-level", "warn", "log level: debug, info, warn or error")
	if err := fs.Parse(args); err != nil {
		return settings{}, err
	}

	v := viper.New()
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()
	if err := v.BindPFlags(fs); err != nil {
		return settings{}, fmt.Errorf("failed to bind flags: %w", err)
	}

	s := settings{
		server:   v.GetString("server"),
		token:    v.GetString("token"),
		limit:    v.GetInt("limit"),
		logLevel: v.GetString("log-level"),
	}

	userID, err := uuid.Parse(v.GetString("user"))
	if err != nil {
		return settings{}, fmt.Errorf("--user must be a UUID")
	}
	s.userID = userID

	if raw := v.GetString("deck"); raw != "" {
		deckID, err := uuid.Parse(raw)
		if err != nil {
			return settings{}, fmt.Errorf("--deck must be a UUID")
		}
		s.deckID = &deckID
	}
	return s, nil
}

func run(ctx context.Context, args []string, in io.Reader, out io.Writer) error {
	s, err := loadSettings(args)
	if err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return nil
		}
		return err
	}

	log := logger.New(os.Stderr, s.logLevel)
	api, err := client.New(client.Config{BaseURL: s.server, Token: s.token}, log)
	if err != nil {
		return err
	}
	scheduler, err := srs.NewDefaultService()
	if err != nil {
		return err
	}

	ctrl, err := session.New(session.Config{
		UserID: s.userID,
		DeckID: s.deckID,
		Limit:  s.limit,
	}, session.Dependencies{
		Fetcher:   api,
		Submitter: api,
		Scheduler: scheduler,
		Logger:    log,
	})
	if err != nil {
		return err
	}

	r := &reviewer{ctrl: ctrl, in: bufio.NewScanner(in), out: out}
	return r.run(ctx)
}

// closeTimeout bounds how long the command waits for queued ratings on exit.
const closeTimeout = 10 * time.Second

func closeSession(ctrl *session.Controller) error {
	ctx, cancel := context.WithTimeout(context.Background(), closeTimeout)
	defer cancel()
	return ctrl.Close(ctx)
}
