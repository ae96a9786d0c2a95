package middleware

import (
	"errors"

	"order-backend/internal/auth"
)

type Mid struct {
	keys *auth.Keys
}

func NewMid(keys *auth.Keys) (*Mid, error) {
	if keys == nil {
		return nil, errors.New("auth keys not provided")
	}
	return &Mid{keys: keys}, nil
}
