package auth

import (
	"context"
	"net/http"

	"github.com/georgemunganga/pos-backend/internal/platform/httpx"
)

type ctxKey struct{}

// Middleware rejects requests without a valid access token and stores the
// token subject in the request context.
func Middleware(svc Service) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token, err := httpx.Bearer(r)
			if err != nil {
				httpx.Error(w, err)
				return
			}
			subject, err := svc.Verify(token)
			if err != nil {
				httpx.Error(w, err)
				return
			}
			next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), ctxKey{}, subject)))
		})
	}
}

// UserID returns the authenticated user id, if any.
func UserID(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(ctxKey{}).(string)
	return id, ok
}
