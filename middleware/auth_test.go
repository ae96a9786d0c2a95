package middleware

import (
	"crypto/rand"
	"crypto/rsa"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"order-backend/internal/auth"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testMid(t *testing.T) (*Mid, *rsa.PrivateKey) {
	t.Helper()
	priv, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)
	keys, err := auth.NewKeys(&priv.PublicKey)
	require.NoError(t, err)
	m, err := NewMid(keys)
	require.NoError(t, err)
	return m, priv
}

func signToken(t *testing.T, priv *rsa.PrivateKey, claims auth.Claims) string {
	t.Helper()
	token, err := jwt.NewWithClaims(jwt.SigningMethodRS256, claims).SignedString(priv)
	require.NoError(t, err)
	return token
}

func protectedRouter(m *Mid) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(m.Authentication())
	r.GET("/whoami", func(c *gin.Context) {
		claims := c.Request.Context().Value(auth.ClaimsKey).(auth.Claims)
		c.JSON(http.StatusOK, gin.H{"subject": claims.Subject})
	})
	r.GET("/admin-only", m.Authorize(func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"ok": true})
	}, auth.RoleAdmin))
	return r
}

func TestAuthenticationMissingHeader(t *testing.T) {
	m, _ := testMid(t)
	r := protectedRouter(m)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/whoami", nil))
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestAuthenticationValidToken(t *testing.T) {
	m, priv := testMid(t)
	r := protectedRouter(m)

	claims := auth.Claims{Roles: []string{auth.RoleUser}}
	claims.Subject = "user-1"
	claims.ExpiresAt = jwt.NewNumericDate(time.Now().Add(time.Hour))

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/whoami", nil)
	req.Header.Set("Authorization", "Bearer "+signToken(t, priv, claims))
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "user-1")
}

func TestAuthorizeRoleGate(t *testing.T) {
	m, priv := testMid(t)
	r := protectedRouter(m)

	user := auth.Claims{Roles: []string{auth.RoleUser}}
	user.Subject = "user-1"
	user.ExpiresAt = jwt.NewNumericDate(time.Now().Add(time.Hour))

	admin := auth.Claims{Roles: []string{auth.RoleAdmin}}
	admin.Subject = "admin-1"
	admin.ExpiresAt = jwt.NewNumericDate(time.Now().Add(time.Hour))

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/admin-only", nil)
	req.Header.Set("Authorization", "Bearer "+signToken(t, priv, user))
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodGet, "/admin-only", nil)
	req.Header.Set("Authorization", "Bearer "+signToken(t, priv, admin))
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)
}
