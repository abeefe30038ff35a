// Package util provides shared helpers for logging, retries and rate
// limiting.
package util

import (
	"io"
	"log/slog"
	"os"
	"strings"

	"gopkg.in/natefinch/lumberjack.v2"

	"tradelab/internal/config"
)

// ParseLevel maps "debug", "info", "warn" and "error" to a slog level.
// Unrecognised strings map to info.
func ParseLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// NewLogger builds a structured logger from cfg writing to stderr. When
// cfg.File is set, records are also written to a size-rotated file. The
// returned closer releases the file and must be called on shutdown.
func NewLogger(cfg config.Logging) (*slog.Logger, io.Closer) {
	return newLogger(cfg, os.Stderr)
}

func newLogger(cfg config.Logging, console io.Writer) (*slog.Logger, io.Closer) {
	w := console
	var closer io.Closer = nopCloser{}
	if cfg.File != "" {
		rotated := &lumberjack.Logger{
			Filename:   cfg.File,
			MaxSize:    cfg.MaxSizeMB,
			MaxBackups: cfg.MaxBackups,
			MaxAge:     cfg.MaxAgeDays,
			Compress:   cfg.Compress,
		}
		w = io.MultiWriter(console, rotated)
		closer = rotated
	}

	opts := &slog.HandlerOptions{Level: ParseLevel(cfg.Level)}
	var handler slog.Handler
	if strings.EqualFold(cfg.Format, "json") {
		handler = slog.NewJSONHandler(w, opts)
	} else {
		handler = slog.NewTextHandler(w, opts)
	}
	return slog.New(handler), closer
}

// SetDefault configures the provided logger as the default slog logger.
func SetDefault(logger *slog.Logger) {
	slog.SetDefault(logger)
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }
