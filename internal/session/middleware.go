package session

import (
	"context"
	"net/http"
)

type contextKey string

const userIDContextKey contextKey = "user_id"

// UserID returns the authenticated user id placed in the context by Require.
func UserID(ctx context.Context) (int64, bool) {
	id, ok := ctx.Value(userIDContextKey).(int64)
	return id, ok
}

// WithUserID returns a context carrying the user id. Exposed for handler
// tests that bypass the middleware.
func WithUserID(ctx context.Context, id int64) context.Context {
	return context.WithValue(ctx, userIDContextKey, id)
}

// Require rejects requests without a valid session before any store access.
// The rejection body matches the historical surface: {"message":"Unauthorized"}.
func (m *Manager) Require(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s, err := m.Resolve(r)
		if err != nil {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusUnauthorized)
			_, _ = w.Write([]byte(`{"message":"Unauthorized"}`))
			return
		}
		next.ServeHTTP(w, r.WithContext(WithUserID(r.Context(), s.UserID)))
	})
}
