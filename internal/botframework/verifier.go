package botframework

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/coreos/go-oidc/v3/oidc"

	"github.com/darmiel/badgebot/internal/config"
)

var ErrMissingToken = errors.New("missing bearer token")

// Verifier authenticates requests sent by the Bot Framework channel service.
type Verifier struct {
	disabled bool
	verifier *oidc.IDTokenVerifier
}

func NewVerifier(ctx context.Context, cfg config.BotConfig) *Verifier {
	if cfg.Auth.Disabled {
		return &Verifier{disabled: true}
	}
	keySet := oidc.NewRemoteKeySet(context.WithoutCancel(ctx), cfg.Auth.KeysURL)
	return &Verifier{
		verifier: oidc.NewVerifier(cfg.Auth.Issuer, keySet, &oidc.Config{
			ClientID: cfg.AppID,
		}),
	}
}

// Disabled reports whether verification is switched off.
func (v *Verifier) Disabled() bool {
	return v.disabled
}

// VerifyRequest checks the bearer token of r. It is a no-op if verification is disabled.
func (v *Verifier) VerifyRequest(r *http.Request) error {
	if v.disabled {
		return nil
	}
	auth := r.Header.Get("Authorization")
	token := strings.TrimPrefix(auth, "Bearer ")
	if token == "" || token == auth {
		return ErrMissingToken
	}
	if _, err := v.verifier.Verify(r.Context(), token); err != nil {
		return fmt.Errorf("verifying channel token: %w", err)
	}
	return nil
}
