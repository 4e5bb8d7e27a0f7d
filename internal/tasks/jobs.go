package tasks

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"
)

const (
	BackendCheckTask = "backend-check"
	RosterFlushTask  = "roster-flush"
)

type OwnerTokenSource interface {
	GetOwnerToken(ctx context.Context) (string, error)
}

type OrgResolver interface {
	ResolveOrgIdentity(ctx context.Context) (string, error)
}

// BackendCheck obtains an owner token and resolves the issuer. With a cached owner token
// this also keeps the token warm.
func BackendCheck(owner OwnerTokenSource, org OrgResolver) TaskFunc {
	return func(ctx context.Context, logger zerolog.Logger) error {
		logger.Debug().Msg("obtaining owner token")
		if _, err := owner.GetOwnerToken(ctx); err != nil {
			return fmt.Errorf("owner token: %w", err)
		}
		logger.Debug().Msg("resolving issuer")
		issuerID, err := org.ResolveOrgIdentity(ctx)
		if err != nil {
			return fmt.Errorf("resolving issuer: %w", err)
		}
		logger.Info().Str("issuer_id", issuerID).Msgf("issuer %s is reachable", issuerID)
		return nil
	}
}

type RosterFlusher interface {
	Flush() int
}

// RosterFlush drops all cached team rosters.
func RosterFlush(cache RosterFlusher) TaskFunc {
	return func(_ context.Context, logger zerolog.Logger) error {
		n := cache.Flush()
		logger.Info().Int("rosters", n).Msgf("flushed %d cached rosters", n)
		return nil
	}
}
