package core

import (
	"context"
	"errors"
)

var (
	// ErrSecretNotFound is returned by a SecretProvider if the vault has no value for the URI.
	ErrSecretNotFound = errors.New("secret not found")

	// ErrStateNotFound is returned by a StateStore if no state exists for the key.
	ErrStateNotFound = errors.New("state not found")
)

// SecretProvider resolves a named secret from a managed vault.
type SecretProvider interface {
	// Name returns the identifier of this provider (as used in config).
	Name() string

	// GetSecret returns the plain secret value stored at uri.
	GetSecret(ctx context.Context, uri string) (string, error)
}

// TokenVault stores per-user access tokens keyed by (user id, connection name).
// This is the Bot Framework token service in production.
type TokenVault interface {
	// GetToken returns ("", nil) if no token is stored for the user.
	GetToken(ctx context.Context, userID, connectionName string) (string, error)

	// SignOut removes any token stored for the user.
	SignOut(ctx context.Context, userID, connectionName string) error
}

// StateStore persists opaque per-conversation bot state.
type StateStore interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte) error
	Delete(ctx context.Context, key string) error
	Close() error
}
