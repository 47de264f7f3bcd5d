package api

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt"
	"github.com/stretchr/testify/require"
)

func signed(t *testing.T, secret string, claims jwt.StandardClaims) string {
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
	require.NoError(t, err)
	return token
}

func TestApiHandler_auth(t *testing.T) {
	h, _ := newTestHandler(t)
	h.JWTSecret = "s3cret"
	router := h.Router()

	call := func(path, header string) int {
		req := httptest.NewRequest(http.MethodGet, path, nil)
		if header != "" {
			req.Header.Set("Authorization", header)
		}
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)
		return w.Code
	}
	valid := signed(t, "s3cret", jwt.StandardClaims{Subject: "ops", ExpiresAt: time.Now().Add(time.Hour).Unix()})

	t.Run("health is open", func(t *testing.T) {
		require.Equal(t, 200, call("/health", ""))
	})

	t.Run("valid token", func(t *testing.T) {
		require.Equal(t, 200, call("/holds", "Bearer "+valid))
		require.Equal(t, 200, call("/holds?token="+valid, ""))
	})

	t.Run("rejected tokens", func(t *testing.T) {
		expired := signed(t, "s3cret", jwt.StandardClaims{ExpiresAt: time.Now().Add(-time.Minute).Unix()})
		wrongKey := signed(t, "other", jwt.StandardClaims{ExpiresAt: time.Now().Add(time.Hour).Unix()})
		noExpiry := signed(t, "s3cret", jwt.StandardClaims{Subject: "ops"})

		require.Equal(t, 401, call("/holds", ""))
		require.Equal(t, 401, call("/holds", "Bearer "+expired))
		require.Equal(t, 401, call("/holds", "Bearer "+wrongKey))
		require.Equal(t, 401, call("/holds", "Bearer "+noExpiry))
		require.Equal(t, 401, call("/roster", "Basic abc"))
	})
}
