package logging

import (
	"io"
	"log/slog"
	"os"
	"strings"
)

// Setup builds the JSON logger for a binary and installs it as the slog
// default, so adapters logging through slog share the service attribute.
func Setup(service, level string) *slog.Logger {
	logger := NewJSONLogger(os.Stdout, service, level)
	slog.SetDefault(logger)
	return logger
}

func NewJSONLogger(w io.Writer, service, level string) *slog.Logger {
	handler := slog.NewJSONHandler(w, &slog.HandlerOptions{
		Level: ParseLevel(level),
	})
	return slog.New(handler).With("service", service)
}

// ParseLevel maps LOG_LEVEL values to slog levels; unknown values mean info.
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
