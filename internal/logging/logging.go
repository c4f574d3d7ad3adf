// Package logging builds the [log/slog] loggers used by statbridge binaries
// and, optionally, by the engine.
//
// Loggers write JSON with a configurable minimum level and carry a component
// attribute so engine output is distinguishable when an application shares
// one sink.
package logging

import (
	"io"
	"log/slog"
	"os"
	"strings"
)

// New creates a logger writing JSON to stderr at the given level. Accepted
// level strings (case-insensitive): "debug", "info", "warn", "error"; empty
// or unrecognised strings mean "info".
func New(level string) *slog.Logger {
	return NewWithWriter(level, os.Stderr)
}

// NewWithWriter creates a logger writing JSON to w at the given level.
func NewWithWriter(level string, w io.Writer) *slog.Logger {
	return slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{
		Level: ParseLevel(level),
	}))
}

// ForComponent returns log with a component attribute attached, defaulting
// to [slog.Default] when log is nil.
func ForComponent(log *slog.Logger, component string) *slog.Logger {
	if log == nil {
		log = slog.Default()
	}
	return log.With("component", component)
}

// ParseLevel converts a level string to a [slog.Level], defaulting to info.
func ParseLevel(s string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
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
