package api

import (
	"context"
	"net/http"
	"strings"

	"github.com/bookclubapp/bookclub-server/internal/domain"
	domainerrors "github.com/bookclubapp/bookclub-server/internal/errors"
	"github.com/bookclubapp/bookclub-server/internal/service"
)

// ctxKey is the type for context keys to avoid collisions.
type ctxKey string

// userKey is the context key for the authenticated user.
const userKey ctxKey = "user"

// GetUser returns the authenticated user from context.
// Returns 401 error if the request carried no valid token.
func GetUser(ctx context.Context) (*domain.User, error) {
	user, ok := ctx.Value(userKey).(*domain.User)
	if !ok || user == nil {
		return nil, domainerrors.Unauthorized("Authentication required")
	}
	return user, nil
}

// setUser stores the authenticated user in context.
func setUser(ctx context.Context, user *domain.User) context.Context {
	return context.WithValue(ctx, userKey, user)
}

// authMiddleware returns a middleware that validates Bearer tokens and
// stores the authenticated user in context. If no token is present or the
// token is invalid, the request continues without a user; handlers that
// need one reject via GetUser.
func authMiddleware(auth *service.AuthService) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authHeader := r.Header.Get("Authorization")
			if authHeader == "" || !strings.HasPrefix(authHeader, "Bearer ") {
				next.ServeHTTP(w, r)
				return
			}

			token := authHeader[7:]
			user, _, err := auth.VerifyAccessToken(r.Context(), token)
			if err != nil {
				next.ServeHTTP(w, r)
				return
			}

			next.ServeHTTP(w, r.WithContext(setUser(r.Context(), user)))
		})
	}
}
