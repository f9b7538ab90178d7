// Package logging builds the slog loggers used across aireview.
package logging

import (
	"io"
	"log/slog"
	"os"
	"strings"
)

// Config configures the logger.
type Config struct {
	Level  string // debug, info, warn, error
	Format string // json, text
	Output io.Writer
}

// New creates a structured logger. Output defaults to stderr so that the
// review report on stdout stays clean.
func New(cfg Config) *slog.Logger {
	level := slog.LevelInfo
	switch strings.ToLower(cfg.Level) {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	}

	output := cfg.Output
	if output == nil {
		output = os.Stderr
	}

	opts := &slog.HandlerOptions{Level: level}
	var handler slog.Handler
	if cfg.Format == "json" {
		handler = slog.NewJSONHandler(output, opts)
	} else {
		handler = slog.NewTextHandler(output, opts)
	}
	return slog.New(handler)
}

// Discard returns a logger that drops everything.
func Discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// OrDiscard returns l, or a discarding logger when l is nil.
func OrDiscard(l *slog.Logger) *slog.Logger {
	if l == nil {
		return Discard()
	}
	return l
}

// MaskKey renders a secret for logs, keeping only the last four characters.
func MaskKey(key string) string {
	if key == "" {
		return "(unset)"
	}
	if len(key) <= 8 {
		return "****"
	}
	return "****" + key[len(key)-4:]
}
