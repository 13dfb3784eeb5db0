// Package logging configures structured logging for the CLI and web UI.
package logging

import (
	"io"
	"log/slog"
	"os"
	"strings"
)

// Config controls handler selection for a logger.
type Config struct {
	Level  string // debug, info, warn, error
	Format string // text or json
	Output io.Writer
}

// New builds a slog.Logger from cfg. Unknown levels fall back to info and an
// unset output falls back to stderr, so New never fails.
func New(cfg Config) *slog.Logger {
	var level slog.Level
	switch strings.ToLower(cfg.Level) {
	case "debug":
		level = slog.LevelDebug
	case "info", "":
		level = slog.LevelInfo
	case "warn", "warning":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	output := cfg.Output
	if output == nil {
		output = os.Stderr
	}

	opts := &slog.HandlerOptions{Level: level}

	var handler slog.Handler
	if strings.EqualFold(cfg.Format, "json") {
		handler = slog.NewJSONHandler(output, opts)
	} else {
		handler = slog.NewTextHandler(output, opts)
	}

	return slog.New(handler)
}

// Setup installs a logger built from cfg as the process default and returns it.
func Setup(cfg Config) *slog.Logger {
	logger := New(cfg)
	slog.SetDefault(logger)
	return logger
}
