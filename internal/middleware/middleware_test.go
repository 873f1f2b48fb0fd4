package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/interopae/travel-concierge/backend/internal/config"
)

func echoUser() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(UserID(r.Context())))
	})
}

func sign(t *testing.T, secret string, claims jwt.MapClaims) string {
	t.Helper()
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
	require.NoError(t, err)
	return token
}

func TestAuthWithoutSecret(t *testing.T) {
	h := Auth(config.AuthConfig{UserClaim: "id"})(echoUser())

	req := httptest.NewRequest(http.MethodPost, "/response", nil)
	req.Header.Set(UserIDHeader, "alice")
	resp := httptest.NewRecorder()
	h.ServeHTTP(resp, req)
	assert.Equal(t, "alice", resp.Body.String())

	resp = httptest.NewRecorder()
	h.ServeHTTP(resp, httptest.NewRequest(http.MethodPost, "/response", nil))
	assert.Equal(t, AnonymousUser, resp.Body.String())
}

func TestAuthWithSecret(t *testing.T) {
	cfg := config.AuthConfig{JWTSecret: "s3cret", UserClaim: "id"}
	h := Auth(cfg)(echoUser())

	cases := []struct {
		name   string
		header string
		code   int
		user   string
	}{
		{"string claim", "Bearer " + sign(t, "s3cret", jwt.MapClaims{"id": "alice"}), http.StatusOK, "alice"},
		{"numeric claim", "Bearer " + sign(t, "s3cret", jwt.MapClaims{"id": 42}), http.StatusOK, "42"},
		{"missing header", "", http.StatusUnauthorized, ""},
		{"wrong secret", "Bearer " + sign(t, "other", jwt.MapClaims{"id": "alice"}), http.StatusUnauthorized, ""},
		{"missing claim", "Bearer " + sign(t, "s3cret", jwt.MapClaims{"sub": "alice"}), http.StatusUnauthorized, ""},
		{"expired", "Bearer " + sign(t, "s3cret", jwt.MapClaims{"id": "alice", "exp": time.Now().Add(-time.Hour).Unix()}), http.StatusUnauthorized, ""},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/response", nil)
			if tc.header != "" {
				req.Header.Set("Authorization", tc.header)
			}
			// The header is ignored once tokens are verified.
			req.Header.Set(UserIDHeader, "mallory")
			resp := httptest.NewRecorder()
			h.ServeHTTP(resp, req)

			assert.Equal(t, tc.code, resp.Code)
			if tc.code == http.StatusOK {
				assert.Equal(t, tc.user, resp.Body.String())
			}
		})
	}
}
