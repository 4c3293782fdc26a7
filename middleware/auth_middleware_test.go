package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

const testSecret = "test-secret-key"

func signedToken(t *testing.T, secret string, claims jwt.MapClaims) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(secret))
	require.NoError(t, err)
	return signed
}

func protectedHandler(t *testing.T, hitClaims **Claims) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		*hitClaims = GetClaimsFromContext(r.Context())
		w.WriteHeader(http.StatusOK)
	})
}

func TestRequireAuthValidToken(t *testing.T) {
	validator := NewJWTValidator(testSecret)
	mw := NewAuthMiddleware(validator, zap.NewNop())

	var claims *Claims
	handler := mw.RequireAuth(protectedHandler(t, &claims))

	token := signedToken(t, testSecret, jwt.MapClaims{
		"sub": "operator-1",
		"iss": "clearwatch",
		"exp": time.Now().Add(time.Hour).Unix(),
		"iat": time.Now().Unix(),
	})

	req := httptest.NewRequest(http.MethodGet, "/alerts/recent", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	require.NotNil(t, claims)
	assert.Equal(t, "operator-1", claims.Sub)
	assert.Equal(t, "clearwatch", claims.Iss)
}

func TestRequireAuthMissingHeader(t *testing.T) {
	mw := NewAuthMiddleware(NewJWTValidator(testSecret), zap.NewNop())
	var claims *Claims
	handler := mw.RequireAuth(protectedHandler(t, &claims))

	req := httptest.NewRequest(http.MethodGet, "/alerts/recent", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Nil(t, claims)
}

func TestRequireAuthWrongSecret(t *testing.T) {
	mw := NewAuthMiddleware(NewJWTValidator(testSecret), zap.NewNop())
	var claims *Claims
	handler := mw.RequireAuth(protectedHandler(t, &claims))

	token := signedToken(t, "other-secret", jwt.MapClaims{
		"sub": "operator-1",
		"exp": time.Now().Add(time.Hour).Unix(),
	})
	req := httptest.NewRequest(http.MethodGet, "/alerts/recent", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestRequireAuthExpiredToken(t *testing.T) {
	mw := NewAuthMiddleware(NewJWTValidator(testSecret), zap.NewNop())
	var claims *Claims
	handler := mw.RequireAuth(protectedHandler(t, &claims))

	token := signedToken(t, testSecret, jwt.MapClaims{
		"sub": "operator-1",
		"exp": time.Now().Add(-time.Hour).Unix(),
	})
	req := httptest.NewRequest(http.MethodGet, "/alerts/recent", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestExtractToken(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	assert.Empty(t, extractToken(req))

	req.Header.Set("Authorization", "Basic dXNlcjpwYXNz")
	assert.Empty(t, extractToken(req))

	req.Header.Set("Authorization", "Bearer abc.def.ghi")
	assert.Equal(t, "abc.def.ghi", extractToken(req))

	req.Header.Set("Authorization", "bearer abc.def.ghi")
	assert.Equal(t, "abc.def.ghi", extractToken(req), "scheme is case-insensitive")
}
