// Package logging configures the process-wide slog logger for the appraisal
// services.
package logging

import (
	"io"
	"log/slog"
	"os"
	"strings"
)

// App tags every record written by the appraisal binaries.
const App = "appraisal-intelligence"

func NewJSONLogger(service, level string) *slog.Logger {
	return New(os.Stdout, service, level)
}

// New writes JSON records to w. Duration attributes are rendered as whole
// milliseconds under a "_ms" suffixed key.
func New(w io.Writer, service, level string) *slog.Logger {
	handler := slog.NewJSONHandler(w, &slog.HandlerOptions{
		Level:       ParseLevel(level),
		ReplaceAttr: durationMillis,
	})
	return slog.New(handler).With("app", App, "service", service)
}

func durationMillis(_ []string, a slog.Attr) slog.Attr {
	if a.Value.Kind() != slog.KindDuration {
		return a
	}
	return slog.Int64(a.Key+"_ms", a.Value.Duration().Milliseconds())
}

// ParseLevel maps LOG_LEVEL onto a slog level; unknown values mean info.
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
