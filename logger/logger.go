// Package logger provides structured logging for news-cli.
package logger

import (
	"io"
	"log/slog"
	"strings"
)

// Init installs a JSON logger writing to w as the default logger and
// returns it.
func Init(w io.Writer, level string) *slog.Logger {
	handler := slog.NewJSONHandler(w, &slog.HandlerOptions{
		Level: ParseLevel(level),
	})

	logger := slog.New(handler).With("service", "news-cli")
	slog.SetDefault(logger)

	return logger
}

// ParseLevel maps a level name to a slog.Level. Unknown names map to info.
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
