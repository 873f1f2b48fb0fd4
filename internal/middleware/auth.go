package middleware

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"

	"github.com/interopae/travel-concierge/backend/internal/config"
	"github.com/interopae/travel-concierge/backend/pkg/utils"
)

// AnonymousUser identifies callers that present no identity.
const AnonymousUser = "anonymous"

// UserIDHeader carries the caller identity when token verification is off.
const UserIDHeader = "X-User-ID"

var (
	ErrMissingToken = errors.New("missing bearer token")
	ErrInvalidToken = errors.New("invalid token")
	ErrMissingClaim = errors.New("missing user claim")
)

type userIDKey struct{}

// WithUserID stores the caller identity in ctx.
func WithUserID(ctx context.Context, userID string) context.Context {
	return context.WithValue(ctx, userIDKey{}, userID)
}

// UserID returns the caller identity stored by Auth, or AnonymousUser.
func UserID(ctx context.Context) string {
	if id, ok := ctx.Value(userIDKey{}).(string); ok && id != "" {
		return id
	}
	return AnonymousUser
}

// Auth resolves the caller identity. With a secret configured every request
// must carry a valid HS256 bearer token; otherwise the X-User-ID header is
// trusted.
func Auth(cfg config.AuthConfig) func(http.Handler) http.Handler {
	secret := []byte(cfg.JWTSecret)
	claim := cfg.UserClaim
	if claim == "" {
		claim = "id"
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !cfg.Enabled() {
				userID := strings.TrimSpace(r.Header.Get(UserIDHeader))
				next.ServeHTTP(w, r.WithContext(WithUserID(r.Context(), userID)))
				return
			}

			userID, err := verify(r.Header.Get("Authorization"), secret, claim)
			if err != nil {
				log.Printf("[auth] rejected request: %v", err)
				utils.RespondError(w, http.StatusUnauthorized, "unauthorized")
				return
			}
			next.ServeHTTP(w, r.WithContext(WithUserID(r.Context(), userID)))
		})
	}
}

func verify(header string, secret []byte, claim string) (string, error) {
	raw, ok := strings.CutPrefix(header, "Bearer ")
	if !ok || strings.TrimSpace(raw) == "" {
		return "", ErrMissingToken
	}

	token, err := jwt.Parse(strings.TrimSpace(raw), func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return secret, nil
	})
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok || !token.Valid {
		return "", ErrInvalidToken
	}

	switch v := claims[claim].(type) {
	case string:
		if v != "" {
			return v, nil
		}
	case float64:
		return fmt.Sprintf("%.0f", v), nil
	}
	return "", fmt.Errorf("%w: %s", ErrMissingClaim, claim)
}
