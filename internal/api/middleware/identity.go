package middleware

import (
	"context"
	"net/http"

	"github.com/dsecure/portal/internal/identity"
	"github.com/dsecure/portal/pkg/logger"
)

type contextKey string

const (
	identityKey contextKey = "identity"
	slotKey     contextKey = "identity-slot"
)

// identitySlot carries the identity resolved by a nested Identity middleware
// back out to RequestLogger.
type identitySlot struct {
	id  identity.Identity
	set bool
}

// Identity resolves the acting user from the request's identity cookies and
// token and stores it in the request context. It never rejects a request:
// a missing identity is reported by the explorer itself.
func Identity(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := identity.FromRequest(r)
		ctx := context.WithValue(r.Context(), identityKey, id)
		if id.Email != "" {
			ctx = logger.ContextWithUserEmail(ctx, id.Email)
		}
		if slot, ok := ctx.Value(slotKey).(*identitySlot); ok {
			slot.id, slot.set = id, true
		}
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// IdentityFrom returns the identity stored by the Identity middleware.
func IdentityFrom(ctx context.Context) (identity.Identity, bool) {
	id, ok := ctx.Value(identityKey).(identity.Identity)
	return id, ok
}
