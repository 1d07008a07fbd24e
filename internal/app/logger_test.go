package app

import (
	"log/slog"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNewLoggerFormat(t *testing.T) {
	logger := NewLogger(&Config{AppEnv: "production"})
	_, ok := logger.Handler().(*slog.JSONHandler)
	require.True(t, ok, "production must log JSON")

	logger = NewLogger(&Config{AppEnv: "development", LogFormat: "json"})
	_, ok = logger.Handler().(*slog.JSONHandler)
	require.True(t, ok, "LOG_FORMAT=json must log JSON")

	logger = NewLogger(&Config{AppEnv: "development"})
	_, ok = logger.Handler().(*slog.TextHandler)
	require.True(t, ok)

	logger = NewLogger(nil)
	_, ok = logger.Handler().(*slog.TextHandler)
	require.True(t, ok)
}
