package broker

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"

	"github.com/darmiel/badgebot/internal/core"
)

// UserBroker reads per-user access tokens from the token vault.
type UserBroker struct {
	vault          core.TokenVault
	connectionName string
}

func NewUserBroker(vault core.TokenVault, connectionName string) *UserBroker {
	return &UserBroker{
		vault:          vault,
		connectionName: connectionName,
	}
}

// GetUserToken returns ("", nil) if the user has not signed in.
func (b *UserBroker) GetUserToken(ctx context.Context, userID string) (string, error) {
	if userID == "" {
		return "", fmt.Errorf("user id cannot be empty")
	}
	token, err := b.vault.GetToken(ctx, userID, b.connectionName)
	if err != nil {
		return "", fmt.Errorf("reading user token: %w", err)
	}
	if token == "" {
		log.Ctx(ctx).Debug().Str("user_id", userID).Msg("user is not signed in")
	}
	return token, nil
}

// SignOut removes the user's token from the vault.
func (b *UserBroker) SignOut(ctx context.Context, userID string) error {
	if err := b.vault.SignOut(ctx, userID, b.connectionName); err != nil {
		return fmt.Errorf("signing out user: %w", err)
	}
	log.Ctx(ctx).Info().Str("user_id", userID).Msg("signed out user")
	return nil
}
