package account

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
)

// AnonymousUser is the user ID assigned when authentication is optional and
// no token is presented.
const AnonymousUser = "local"

type ctxKey struct{}

// Authenticator resolves bearer tokens.
type Authenticator interface {
	Authenticate(ctx context.Context, token string) (string, error)
}

// WithUser returns a context carrying userID.
func WithUser(ctx context.Context, userID string) context.Context {
	return context.WithValue(ctx, ctxKey{}, userID)
}

// UserID returns the authenticated user ID stored by Middleware.
func UserID(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(ctxKey{}).(string)
	return id, ok && id != ""
}

// BearerToken extracts the token from an Authorization header.
func BearerToken(r *http.Request) string {
	h := r.Header.Get("Authorization")
	if len(h) < 7 || !strings.EqualFold(h[:7], "bearer ") {
		return ""
	}
	return strings.TrimSpace(h[7:])
}

// Middleware resolves the caller. A presented token must be valid. Without
// one the request is rejected when required is set, otherwise it runs as
// AnonymousUser.
func Middleware(a Authenticator, required bool) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := BearerToken(r)
			if token == "" {
				if required {
					deny(w, "missing bearer token")
					return
				}
				next.ServeHTTP(w, r.WithContext(WithUser(r.Context(), AnonymousUser)))
				return
			}

			userID, err := a.Authenticate(r.Context(), token)
			if err != nil {
				if errors.Is(err, ErrUnauthorized) {
					deny(w, "invalid token")
					return
				}
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusInternalServerError)
				json.NewEncoder(w).Encode(map[string]string{"error": err.Error()})
				return
			}
			next.ServeHTTP(w, r.WithContext(WithUser(r.Context(), userID)))
		})
	}
}

func deny(w http.ResponseWriter, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	json.NewEncoder(w).Encode(map[string]string{"error": msg})
}
