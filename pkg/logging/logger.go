package logging

import (
	"io"
	"log/slog"
	"os"
	"strings"
)

// Logger wraps slog.Logger with the service name attached to every record.
type Logger struct {
	*slog.Logger
}

// New creates a JSON logger on stdout at the given level.
func New(service, level string) *Logger {
	return NewWithWriter(os.Stdout, service, level)
}

func NewWithWriter(w io.Writer, service, level string) *Logger {
	opts := &slog.HandlerOptions{
		Level: ParseLevel(level),
	}

	logger := slog.New(slog.NewJSONHandler(w, opts))
	if service != "" {
		logger = logger.With("service", service)
	}

	return &Logger{Logger: logger}
}

// ParseLevel maps debug, info, warn and error to slog levels. Anything else
// is info.
func ParseLevel(level string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
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

// Discard returns a logger that drops everything; handy in tests.
func Discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}
