package logging

import (
	"bytes"
	"context"
	"log/slog"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func newRedactedLogger(buf *bytes.Buffer) *SlogLogger {
	h := slog.NewTextHandler(buf, &slog.HandlerOptions{Level: slog.LevelDebug})
	return NewSlogLogger(slog.New(NewRedactingHandler(h)))
}

func TestRedactingHandler_MasksSensitiveKeys(t *testing.T) {
	var buf bytes.Buffer
	log := newRedactedLogger(&buf)

	log.Info(context.Background(), "reset issued",
		"reset_token", "deadbeef",
		"Email", "alice@example.com",
		"new_password", "hunter2",
		"account_id", "42",
	)

	out := buf.String()
	assert.NotContains(t, out, "deadbeef")
	assert.NotContains(t, out, "alice@example.com")
	assert.NotContains(t, out, "hunter2")
	assert.Contains(t, out, "account_id=42")
	assert.Equal(t, 3, strings.Count(out, redactedValue))
}

func TestRedactingHandler_WithAndGroups(t *testing.T) {
	var buf bytes.Buffer
	log := newRedactedLogger(&buf)

	child := log.With("master_key_secret", "s3cr3t", "user", "bob")
	child.Warn(context.Background(), "grouped",
		slog.Group("req", slog.String("authorization", "Bearer abc"), slog.String("path", "/login")),
	)

	out := buf.String()
	assert.NotContains(t, out, "s3cr3t")
	assert.NotContains(t, out, "Bearer abc")
	assert.Contains(t, out, "user=bob")
	assert.Contains(t, out, "req.path=/login")
}

func TestRedactingHandler_EnabledDelegates(t *testing.T) {
	h := NewRedactingHandler(slog.NewTextHandler(&bytes.Buffer{}, &slog.HandlerOptions{Level: slog.LevelWarn}))
	assert.False(t, h.Enabled(context.Background(), slog.LevelInfo))
	assert.True(t, h.Enabled(context.Background(), slog.LevelError))
}
