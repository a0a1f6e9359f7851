package logging

import (
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/kirillkom/facture-organizer/internal/core/domain"
)

func NewJSONLogger(service, level string) *slog.Logger {
	return NewJSONLoggerTo(os.Stdout, service, level)
}

// NewJSONLoggerTo writes JSON records to w. Every record carries the service
// name, and error attributes carrying a domain kind are logged as
// {"message", "kind"} so failures can be filtered by kind.
func NewJSONLoggerTo(w io.Writer, service, level string) *slog.Logger {
	handler := slog.NewJSONHandler(w, &slog.HandlerOptions{
		Level:       ParseLevel(level),
		ReplaceAttr: annotateErrorKind,
	})
	return slog.New(handler).With("service", service)
}

func annotateErrorKind(_ []string, a slog.Attr) slog.Attr {
	if a.Value.Kind() != slog.KindAny {
		return a
	}
	err, ok := a.Value.Any().(error)
	if !ok || err == nil {
		return a
	}
	kind := domain.KindOf(err)
	if kind == nil {
		return a
	}
	return slog.Group(a.Key, slog.String("message", err.Error()), slog.String("kind", kind.Error()))
}

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
