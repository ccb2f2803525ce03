// Package middleware provides HTTP middleware for the portal.
package middleware

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5/middleware"
)

// levelFor maps a response status to the level its access line is logged at.
func levelFor(status int) slog.Level {
	switch {
	case status >= http.StatusInternalServerError:
		return slog.LevelError
	case status >= http.StatusBadRequest:
		return slog.LevelWarn
	default:
		return slog.LevelInfo
	}
}

// RequestLogger writes one access line per request once the handler returns.
// Client errors are logged at warn and server errors at error. The acting
// user is included when an Identity middleware ran anywhere below it.
func RequestLogger(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			began := time.Now()
			rw := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			slot := &identitySlot{}
			if id, ok := IdentityFrom(r.Context()); ok {
				slot.id, slot.set = id, true
			}
			r = r.WithContext(context.WithValue(r.Context(), slotKey, slot))
			next.ServeHTTP(rw, r)

			status := rw.Status()
			if status == 0 {
				status = http.StatusOK
			}
			line := []slog.Attr{
				slog.String("request_id", middleware.GetReqID(r.Context())),
				slog.String("method", r.Method),
				slog.String("path", r.URL.Path),
				slog.Int("status", status),
				slog.Int("bytes", rw.BytesWritten()),
				slog.Duration("elapsed", time.Since(began)),
			}
			if tab := r.URL.Query().Get("tab"); tab != "" {
				line = append(line, slog.String("tab", tab))
			}
			if slot.set && slot.id.Email != "" {
				line = append(line, slog.String("user_email", slot.id.Email))
			}
			logger.LogAttrs(r.Context(), levelFor(status), "request", line...)
		})
	}
}
