package logger

import (
	"bytes"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNew(t *testing.T) {
	t.Run("production logs json", func(t *testing.T) {
		var buf bytes.Buffer
		NewWithWriter(&buf, "production", "info").Info("hello", "k", "v")
		assert.Contains(t, buf.String(), `"msg":"hello"`)
		assert.Contains(t, buf.String(), `"service":"policardmed"`)
	})

	t.Run("level filters", func(t *testing.T) {
		var buf bytes.Buffer
		NewWithWriter(&buf, "development", "warn").Info("hidden")
		assert.Empty(t, buf.String())
	})

	t.Run("parse level", func(t *testing.T) {
		assert.Equal(t, slog.LevelDebug, ParseLevel(" DEBUG "))
		assert.Equal(t, slog.LevelInfo, ParseLevel("verbose"))
	})
}
