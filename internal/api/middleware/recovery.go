package middleware

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5/middleware"

	apierrors "github.com/dsecure/portal/internal/api/errors"
)

// Recovery turns a handler panic into a logged INTERNAL_ERROR response.
func Recovery(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				rec := recover()
				if rec == nil {
					return
				}
				if rec == http.ErrAbortHandler {
					panic(rec)
				}

				report := apierrors.NewPanicReport(middleware.GetReqID(r.Context()), rec)
				logger.Error("panic recovered", append(report.Attrs(), "method", r.Method, "path", r.URL.Path)...)

				apierrors.Write(w, r, apierrors.Internal("An unexpected error occurred"))
			}()

			next.ServeHTTP(w, r)
		})
	}
}
