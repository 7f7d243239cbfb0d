package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "test-signing-secret"

func issueToken(t *testing.T, secret string, userID uint64, role string) string {
	t.Helper()
	claims := jwt.MapClaims{
		"sub":  userID,
		"role": role,
		"exp":  time.Now().Add(time.Hour).Unix(),
		"iat":  time.Now().Unix(),
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
	require.NoError(t, err)
	return signed
}

func runJWT(t *testing.T, authHeader string, mws ...echo.MiddlewareFunc) (*httptest.ResponseRecorder, echo.Context, bool) {
	t.Helper()
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/v1/tickets/history", nil)
	if authHeader != "" {
		req.Header.Set("Authorization", authHeader)
	}
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	called := false
	h := echo.HandlerFunc(func(c echo.Context) error {
		called = true
		return c.String(http.StatusOK, "ok")
	})
	for i := len(mws) - 1; i >= 0; i-- {
		h = mws[i](h)
	}
	require.NoError(t, h(c))
	return rec, c, called
}

func TestJWTAuthInjectsClaims(t *testing.T) {
	tok := issueToken(t, testSecret, 12, "CUSTOMER")
	_, c, called := runJWT(t, "Bearer "+tok, JWTAuth(testSecret))
	assert.True(t, called)

	id, ok := UserID(c)
	assert.True(t, ok)
	assert.Equal(t, uint64(12), id)
	assert.Equal(t, "CUSTOMER", c.Get("role"))
}

func TestJWTAuthRejectsMissingAndMalformed(t *testing.T) {
	rec, _, called := runJWT(t, "", JWTAuth(testSecret))
	assert.False(t, called)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec, _, called = runJWT(t, "Bearer not-a-token", JWTAuth(testSecret))
	assert.False(t, called)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestJWTAuthRejectsWrongSecret(t *testing.T) {
	tok := issueToken(t, "some-other-secret", 12, "CUSTOMER")
	rec, _, called := runJWT(t, "Bearer "+tok, JWTAuth(testSecret))
	assert.False(t, called)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestRequireRole(t *testing.T) {
	tok := issueToken(t, testSecret, 9, "ORGANIZER")
	rec, _, called := runJWT(t, "Bearer "+tok, JWTAuth(testSecret), RequireRole("ORGANIZER", "ADMIN"))
	assert.True(t, called)
	assert.Equal(t, http.StatusOK, rec.Code)

	tok = issueToken(t, testSecret, 9, "CUSTOMER")
	rec, _, called = runJWT(t, "Bearer "+tok, JWTAuth(testSecret), RequireRole("ORGANIZER", "ADMIN"))
	assert.False(t, called)
	assert.Equal(t, http.StatusForbidden, rec.Code)
}
