package auth

import (
	"crypto/rand"
	"crypto/rsa"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func signToken(t *testing.T, priv *rsa.PrivateKey, claims Claims) string {
	t.Helper()
	token, err := jwt.NewWithClaims(jwt.SigningMethodRS256, claims).SignedString(priv)
	require.NoError(t, err)
	return token
}

func TestValidateToken(t *testing.T) {
	priv, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)

	keys, err := NewKeys(&priv.PublicKey)
	require.NoError(t, err)

	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "user-1",
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
		Roles: []string{RoleUser},
	}

	got, err := keys.ValidateToken(signToken(t, priv, claims))
	require.NoError(t, err)
	assert.Equal(t, "user-1", got.Subject)
	assert.True(t, got.HasRole(RoleUser))
	assert.False(t, got.HasRole(RoleAdmin))
}

func TestValidateTokenRejectsWrongKey(t *testing.T) {
	priv, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)
	otherPriv, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)

	keys, err := NewKeys(&priv.PublicKey)
	require.NoError(t, err)

	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "user-1",
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	}

	_, err = keys.ValidateToken(signToken(t, otherPriv, claims))
	assert.Error(t, err)
}

func TestValidateTokenRejectsExpired(t *testing.T) {
	priv, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)

	keys, err := NewKeys(&priv.PublicKey)
	require.NoError(t, err)

	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "user-1",
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(-time.Hour)),
		},
	}

	_, err = keys.ValidateToken(signToken(t, priv, claims))
	assert.Error(t, err)
}
