// Package logs builds the process-wide slog logger.
package logs

import (
	"log/slog"
	"os"
	"strings"
)

// GetLoggerFromString builds a text logger from a level name (debug, info,
// warn, error). Unknown names fall back to info.
func GetLoggerFromString(level string) *slog.Logger {
	return GetLoggerFromLevel(parseLevel(level))
}

// GetLoggerFromLevel builds a text logger writing to stderr.
func GetLoggerFromLevel(level slog.Level) *slog.Logger {
	handler := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})
	return slog.New(handler)
}

func parseLevel(level string) slog.Level {
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
