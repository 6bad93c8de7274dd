// Package session maps opaque login tokens to user ids.
package session

import (
	"context"
	"errors"
)

var ErrNotFound = errors.New("session not found")

// Store is injected into the access gate and the login/logout handlers.
type Store interface {
	Put(ctx context.Context, token string, userID uint) error
	// Get returns ErrNotFound for unknown, revoked or expired tokens.
	Get(ctx context.Context, token string) (uint, error)
	Remove(ctx context.Context, token string) error
	// RemoveAllForUser revokes every token issued to the user.
	RemoveAllForUser(ctx context.Context, userID uint) error
}
