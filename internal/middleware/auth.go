package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/mentormatch/backend/internal/service/auth"
	"github.com/mentormatch/backend/pkg/utils"
)

type contextKey int

const (
	userIDKey contextKey = iota
	roleKey
)

// TokenVerifier validates API tokens.
type TokenVerifier interface {
	Verify(token string) (*auth.Claims, error)
}

// Auth rejects requests without a valid API token. The token is read from
// the x-auth-token header or an Authorization bearer header.
func Auth(verifier TokenVerifier) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := TokenFromRequest(r)
			if token == "" {
				utils.RespondError(w, http.StatusUnauthorized, "no token, authorization denied")
				return
			}

			claims, err := verifier.Verify(token)
			if err != nil {
				utils.RespondError(w, http.StatusUnauthorized, "token is not valid")
				return
			}

			ctx := WithIdentity(r.Context(), claims.Subject, claims.Role)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// TokenFromRequest extracts the raw token, if any.
func TokenFromRequest(r *http.Request) string {
	if token := strings.TrimSpace(r.Header.Get("x-auth-token")); token != "" {
		return token
	}
	header := strings.TrimSpace(r.Header.Get("Authorization"))
	if len(header) > 7 && strings.EqualFold(header[:7], "bearer ") {
		return strings.TrimSpace(header[7:])
	}
	return ""
}

// WithIdentity stores the authenticated user on ctx.
func WithIdentity(ctx context.Context, userID, role string) context.Context {
	ctx = context.WithValue(ctx, userIDKey, userID)
	return context.WithValue(ctx, roleKey, role)
}

// UserID returns the authenticated user id, or "".
func UserID(ctx context.Context) string {
	id, _ := ctx.Value(userIDKey).(string)
	return id
}

// Role returns the authenticated user's role, or "".
func Role(ctx context.Context) string {
	role, _ := ctx.Value(roleKey).(string)
	return role
}
