// Package logger provides structured logging functionality for the
// supervisor using Go's standard library log/slog package.
package logger

import (
	"io"
	"log/slog"
	"os"
	"strings"
)

// Setup initializes the supervisor's logging system from the configured
// level. It creates a structured JSON logger writing to stderr and sets
// it as the default logger, so worker stdout redirection never mixes
// with supervisor output.
func Setup(level string) *slog.Logger {
	return SetupWithWriter(level, os.Stderr)
}

// SetupWithWriter is Setup with an explicit output writer, for tests and
// embedding.
func SetupWithWriter(level string, w io.Writer) *slog.Logger {
	logger := slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{
		Level: parseLevel(level, w),
	}))
	slog.SetDefault(logger)
	return logger
}

// parseLevel maps the configured level string (case-insensitive) to a
// slog.Level, warning and defaulting to info when it is unrecognized.
func parseLevel(level string, w io.Writer) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		tmp := slog.New(slog.NewTextHandler(w, nil))
		tmp.Warn("invalid log level configured, using default level",
			"configured_level", level,
			"default_level", "info")
		return slog.LevelInfo
	}
}
