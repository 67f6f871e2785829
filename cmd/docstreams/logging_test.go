package main

import (
	"context"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/c360/docstreams/config"
)

func TestResolveLevel(t *testing.T) {
	assert.Equal(t, slog.LevelWarn, resolveLevel("warn"))
	assert.Equal(t, slog.LevelDebug, resolveLevel("DEBUG"))
	assert.Equal(t, slog.LevelInfo, resolveLevel("verbose"), "unknown levels fall back to info")
	assert.Equal(t, slog.LevelInfo, resolveLevel(""))
}

func TestResolveLevel_EnvFallback(t *testing.T) {
	t.Setenv(config.EnvLogLevel, "debug")
	assert.Equal(t, slog.LevelDebug, resolveLevel(""))
	assert.Equal(t, slog.LevelError, resolveLevel("error"), "an explicit level wins over the environment")
}

func TestSetupLogger(t *testing.T) {
	logger := setupLogger("warn", "text")
	assert.IsType(t, &slog.TextHandler{}, logger.Handler())
	assert.False(t, logger.Enabled(context.Background(), slog.LevelInfo))
	assert.True(t, logger.Enabled(context.Background(), slog.LevelWarn))

	logger = setupLogger("info", "unknown-format")
	assert.IsType(t, &slog.JSONHandler{}, logger.Handler())
}
