package main

import (
	"log/slog"
	"os"
	"strings"

	"github.com/c360/docstreams/config"
)

var logLevels = map[string]slog.Level{
	"debug": slog.LevelDebug,
	"info":  slog.LevelInfo,
	"warn":  slog.LevelWarn,
	"error": slog.LevelError,
}

// setupLogger builds the process-wide logger. An empty level falls back to
// the DOCSTREAMS_LOG_LEVEL environment variable, then to info; unknown
// formats fall back to JSON.
func setupLogger(level, format string) *slog.Logger {
	lvl := resolveLevel(level)

	opts := &slog.HandlerOptions{
		Level:     lvl,
		AddSource: lvl == slog.LevelDebug,
	}

	var handler slog.Handler = slog.NewJSONHandler(os.Stdout, opts)
	if strings.EqualFold(format, "text") {
		handler = slog.NewTextHandler(os.Stdout, opts)
	}

	return slog.New(handler).With(
		"service", appName,
		"version", Version,
		"pid", os.Getpid(),
	)
}

func resolveLevel(level string) slog.Level {
	if level == "" {
		level = os.Getenv(config.EnvLogLevel)
	}
	if lvl, ok := logLevels[strings.ToLower(level)]; ok {
		return lvl
	}
	return slog.LevelInfo
}
