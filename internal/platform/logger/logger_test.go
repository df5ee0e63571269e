// Package logger_test contains tests for the logger package
package logger_test

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"os"
	"strings"
	"testing"

	"github.com/phrazzld/memory-cards/internal/config"
	"github.com/phrazzld/memory-cards/internal/platform/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// captureStderr runs fn while stderr is redirected and returns what was written.
func captureStderr(t *testing.T, fn func()) string {
	t.Helper()

	orig := os.Stderr
	r, w, err := os.Pipe()
	require.NoError(t, err)
	os.Stderr = w

	fn()

	os.Stderr = orig
	require.NoError(t, w.Close())
	out, err := io.ReadAll(r)
	require.NoError(t, err)
	return string(out)
}

func TestSetup(t *testing.T) {
	original := slog.Default()
	t.Cleanup(func() { slog.SetDefault(original) })

	log, err := logger.Setup(config.ServerConfig{LogLevel: "info", Port: 8080})

	require.NoError(t, err)
	require.NotNil(t, log)
	assert.Same(t, log, slog.Default())
}

func TestParseLevel(t *testing.T) {
	testCases := []struct {
		name     string
		logLevel string
		want     slog.Level
	}{
		{"debug level", "debug", slog.LevelDebug},
		{"info level", "info", slog.LevelInfo},
		{"warn level", "warn", slog.LevelWarn},
		{"error level", "error", slog.LevelError},
		{"case insensitive - DEBUG", "DEBUG", slog.LevelDebug},
		{"case insensitive - Info", " Info ", slog.LevelInfo},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, logger.ParseLevel(tc.logLevel))
		})
	}
}

// TestInvalidLogLevelParsing tests that an invalid log level defaults to info
// and writes a warning to stderr.
func TestInvalidLogLevelParsing(t *testing.T) {
	var level slog.Level
	stderr := captureStderr(t, func() {
		level = logger.ParseLevel("invalid_level")
	})

	assert.Equal(t, slog.LevelInfo, level)
	assert.Contains(t, stderr, "invalid log level configured")
	assert.Contains(t, stderr, "invalid_level")
}

func TestNewFiltersBelowLevel(t *testing.T) {
	var buf bytes.Buffer
	log := logger.New(&buf, "warn")

	log.Info("info test message")
	log.Warn("warn test message", slog.String("card_id", "abc"))

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 1)

	var entry map[string]any
	require.NoError(t, json.Unmarshal([]byte(lines[0]), &entry))
	assert.Equal(t, "warn test message", entry["msg"])
	assert.Equal(t, "abc", entry["card_id"])
}

func TestContextLogger(t *testing.T) {
	var buf bytes.Buffer
	requestLogger := logger.New(&buf, "debug").With(slog.String("trace_id", "trace-1"))
	fallback := slog.New(slog.NewJSONHandler(io.Discard, nil))

	ctx := logger.WithLogger(context.Background(), requestLogger)

	assert.Same(t, requestLogger, logger.FromContext(ctx))
	assert.Same(t, requestLogger, logger.FromContextOrDefault(ctx, fallback))
	assert.Same(t, fallback, logger.FromContextOrDefault(context.Background(), fallback))
	assert.Same(t, slog.Default(), logger.FromContextOrDefault(context.Background(), nil))

	// A nil logger leaves the context untouched
	assert.Equal(t, context.Background(), logger.WithLogger(context.Background(), nil))

	logger.FromContext(ctx).Debug("hello")
	assert.Contains(t, buf.String(), `"trace_id":"trace-1"`)
}
