// Package logger builds the slog loggers used by the portal and the CLI.
package logger

import (
	"context"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/go-chi/chi/v5/middleware"
)

type ctxKey struct{}

// Logger is a slog.Logger with component helpers.
type Logger struct {
	*slog.Logger
}

// New writes to stdout at level, as JSON when json is set and as text otherwise.
func New(level slog.Level, json bool) *Logger {
	return NewWithWriter(os.Stdout, level, json)
}

// NewWithWriter is New with an explicit destination. Debug level adds the
// source location to every record.
func NewWithWriter(w io.Writer, level slog.Level, json bool) *Logger {
	opts := &slog.HandlerOptions{Level: level, AddSource: level <= slog.LevelDebug}
	if json {
		return &Logger{Logger: slog.New(slog.NewJSONHandler(w, opts))}
	}
	return &Logger{Logger: slog.New(slog.NewTextHandler(w, opts))}
}

// Default is an INFO level JSON logger on stdout.
func Default() *Logger {
	return New(slog.LevelInfo, true)
}

// ParseLevel maps debug, info, warn/warning and error to a level. Anything
// else is INFO.
func ParseLevel(s string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	}
	return slog.LevelInfo
}

// WithComponent tags every record with component.
func (l *Logger) WithComponent(component string) *Logger {
	return &Logger{Logger: l.With("component", component)}
}

// ContextWithUserEmail records the acting user for From.
func ContextWithUserEmail(ctx context.Context, email string) context.Context {
	return context.WithValue(ctx, ctxKey{}, email)
}

// UserEmailFromContext returns the email stored by ContextWithUserEmail.
func UserEmailFromContext(ctx context.Context) string {
	email, _ := ctx.Value(ctxKey{}).(string)
	return email
}

// From returns base annotated with the request id chi assigned to ctx and
// the acting user, when present.
func From(ctx context.Context, base *slog.Logger) *slog.Logger {
	if base == nil {
		base = slog.Default()
	}
	if id := middleware.GetReqID(ctx); id != "" {
		base = base.With("request_id", id)
	}
	if email := UserEmailFromContext(ctx); email != "" {
		base = base.With("user_email", email)
	}
	return base
}
