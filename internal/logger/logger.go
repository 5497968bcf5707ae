package logger

import (
	"context"
	"io"
	"log/slog"
	"os"
	"strings"
)

// Logger wraps slog.Logger with a few domain helpers.
type Logger struct {
	*slog.Logger
}

// New creates a logger writing to stdout. Development environments get the
// text handler, everything else JSON.
func New(env string) *Logger {
	return NewWithWriter(os.Stdout, env, os.Getenv("LOG_LEVEL"))
}

// NewWithWriter builds a logger on an arbitrary writer.
func NewWithWriter(w io.Writer, env, level string) *Logger {
	lvl := getLogLevel(level)
	opts := &slog.HandlerOptions{
		Level:     lvl,
		AddSource: lvl == slog.LevelDebug,
	}

	var handler slog.Handler
	switch strings.ToLower(env) {
	case "dev", "development", "local", "test":
		handler = slog.NewTextHandler(w, opts)
	default:
		handler = slog.NewJSONHandler(w, opts)
	}
	return &Logger{Logger: slog.New(handler)}
}

// Discard returns a logger that drops everything.
func Discard() *Logger {
	return &Logger{Logger: slog.New(slog.NewTextHandler(io.Discard, nil))}
}

// getLogLevel converts string to slog.Level
func getLogLevel(levelStr string) slog.Level {
	switch strings.ToLower(levelStr) {
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

// WithRequestID adds request ID to logger context
func (l *Logger) WithRequestID(requestID string) *Logger {
	return &Logger{Logger: l.Logger.With(slog.String("request_id", requestID))}
}

// WithTenant adds the tenant id to logger context
func (l *Logger) WithTenant(tenantID uint64) *Logger {
	return &Logger{Logger: l.Logger.With(slog.Uint64("tenant_id", tenantID))}
}

// WithError adds error to logger context
func (l *Logger) WithError(err error) *Logger {
	return &Logger{Logger: l.Logger.With(slog.String("error", err.Error()))}
}

// LogSeatTransition records an accepted or rejected status change.
func (l *Logger) LogSeatTransition(ctx context.Context, eventSeatingID uint64, seatUID, from, to string, accepted bool) {
	l.DebugContext(ctx, "seat transition",
		slog.Uint64("event_seating_id", eventSeatingID),
		slog.String("seat_uid", seatUID),
		slog.String("from", from),
		slog.String("to", to),
		slog.Bool("accepted", accepted),
	)
}
