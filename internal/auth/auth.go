package auth

import (
	"crypto/rsa"
	"errors"
	"fmt"

	"github.com/golang-jwt/jwt/v5"
)

type ctxKey int

// ClaimsKey is the request-context key under which the authentication
// middleware stores the verified claims.
const ClaimsKey ctxKey = 1

const (
	RoleAdmin = "admin"
	RoleUser  = "user"
)

// Claims carries the identity the Access Gate issued for the caller.
// Subject holds the user id.
type Claims struct {
	jwt.RegisteredClaims
	Roles []string `json:"roles"`
}

// HasRole reports whether the caller was issued the given role.
func (c Claims) HasRole(role string) bool {
	for _, r := range c.Roles {
		if r == role {
			return true
		}
	}
	return false
}

// Keys verifies tokens minted by the identity service.
type Keys struct {
	pubKey *rsa.PublicKey
}

func NewKeys(pubKey *rsa.PublicKey) (*Keys, error) {
	if pubKey == nil {
		return nil, errors.New("public key is nil")
	}
	return &Keys{pubKey: pubKey}, nil
}

func NewKeysFromPEM(pemBytes []byte) (*Keys, error) {
	pubKey, err := jwt.ParseRSAPublicKeyFromPEM(pemBytes)
	if err != nil {
		return nil, fmt.Errorf("failed to parse public key: %w", err)
	}
	return &Keys{pubKey: pubKey}, nil
}

// ValidateToken parses and verifies a bearer token issued by the identity
// service and returns its claims.
func (k *Keys) ValidateToken(token string) (Claims, error) {
	var claims Claims
	tkn, err := jwt.ParseWithClaims(token, &claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodRSA); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return k.pubKey, nil
	})
	if err != nil {
		return Claims{}, fmt.Errorf("failed to parse token: %w", err)
	}
	if !tkn.Valid {
		return Claims{}, errors.New("invalid token")
	}
	return claims, nil
}
