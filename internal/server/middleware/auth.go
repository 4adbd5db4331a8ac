// Package middleware authenticates API requests by bearer token.
package middleware

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/google/uuid"
)

// ErrNoUser is returned when a request reached a handler without authentication.
var ErrNoUser = errors.New("no authenticated user in request context")

type userKey struct{}

// TokenValidator resolves a bearer token to the user it was issued to.
type TokenValidator interface {
	UserIDFromToken(token string) (uuid.UUID, error)
}

// TokenValidatorFunc adapts a plain function to TokenValidator.
type TokenValidatorFunc func(token string) (uuid.UUID, error)

// UserIDFromToken calls f.
func (f TokenValidatorFunc) UserIDFromToken(token string) (uuid.UUID, error) {
	return f(token)
}

// RequireUser rejects requests without a valid bearer token with a JSON 401
// and passes the rest on with the user ID in the context.
func RequireUser(tokens TokenValidator) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token, ok := BearerToken(r.Header.Get("Authorization"))
			if !ok {
				unauthorized(w)
				return
			}
			userID, err := tokens.UserIDFromToken(token)
			if err != nil || userID == uuid.Nil {
				unauthorized(w)
				return
			}
			next.ServeHTTP(w, r.WithContext(WithUserID(r.Context(), userID)))
		})
	}
}

// BearerToken extracts the token from an Authorization header value. The
// scheme is case-insensitive.
func BearerToken(header string) (string, bool) {
	parts := strings.Fields(header)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return "", false
	}
	return parts[1], true
}

func unauthorized(w http.ResponseWriter) {
	w.Header().Set("WWW-Authenticate", `Bearer realm="content-engine"`)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	_, _ = w.Write([]byte(`{"error":"Unauthorized"}` + "\n"))
}

// WithUserID returns a copy of ctx carrying userID.
func WithUserID(ctx context.Context, userID uuid.UUID) context.Context {
	return context.WithValue(ctx, userKey{}, userID)
}

// UserIDFromContext returns the authenticated user stored by RequireUser.
func UserIDFromContext(ctx context.Context) (uuid.UUID, bool) {
	id, ok := ctx.Value(userKey{}).(uuid.UUID)
	return id, ok && id != uuid.Nil
}

// GetUserID returns the authenticated user of r, or ErrNoUser.
func GetUserID(r *http.Request) (uuid.UUID, error) {
	id, ok := UserIDFromContext(r.Context())
	if !ok {
		return uuid.Nil, ErrNoUser
	}
	return id, nil
}
