package broker

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	gocache "github.com/patrickmn/go-cache"
	"github.com/rs/zerolog/log"
	"golang.org/x/oauth2"
	"golang.org/x/sync/singleflight"

	"github.com/darmiel/badgebot/internal/audit"
	"github.com/darmiel/badgebot/internal/badgr"
	"github.com/darmiel/badgebot/internal/config"
	"github.com/darmiel/badgebot/internal/core"
	"github.com/darmiel/badgebot/internal/obs"
)

const (
	ownerTokenEndpoint = "/o/token"

	// ExpiryMargin is subtracted from the declared token lifetime before caching.
	ExpiryMargin = 30 * time.Second

	// ExchangeTimeout bounds a shared exchange, which outlives the request that started it.
	ExchangeTimeout = 30 * time.Second
)

// OwnerBroker obtains an access token for the issuer owner account.
type OwnerBroker struct {
	secrets    core.SecretProvider
	owner      config.OwnerConfig
	tokenURL   string
	httpClient *http.Client

	// cache is nil if caching is disabled
	cache *gocache.Cache
	group singleflight.Group
}

type OwnerOption func(*OwnerBroker)

func WithOwnerHTTPClient(c *http.Client) OwnerOption {
	return func(b *OwnerBroker) {
		b.httpClient = c
	}
}

// WithoutTokenCache makes every call perform a fresh exchange.
func WithoutTokenCache() OwnerOption {
	return func(b *OwnerBroker) {
		b.cache = nil
	}
}

func NewOwnerBroker(secrets core.SecretProvider, owner config.OwnerConfig, badgrBaseURL string, opts ...OwnerOption) *OwnerBroker {
	b := &OwnerBroker{
		secrets:    secrets,
		owner:      owner,
		tokenURL:   strings.TrimRight(badgrBaseURL, "/") + ownerTokenEndpoint,
		httpClient: http.DefaultClient,
		cache:      gocache.New(gocache.NoExpiration, 10*time.Minute),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// GetOwnerToken returns an owner access token, exchanging the vault credentials if needed.
// A missing or empty credential fails with a configuration error before any exchange.
func (b *OwnerBroker) GetOwnerToken(ctx context.Context) (string, error) {
	username, err := b.credential(ctx, b.owner.UsernameKey)
	if err != nil {
		return "", err
	}
	password, err := b.credential(ctx, b.owner.PasswordKey)
	if err != nil {
		return "", err
	}

	key := audit.Fingerprint(username, password)
	if b.cache != nil {
		if tok, ok := b.cache.Get(key); ok {
			obs.OwnerTokenExchanges.WithLabelValues("cached").Inc()
			return tok.(string), nil
		}
	}

	ch := b.group.DoChan(key, func() (any, error) {
		exchangeCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), ExchangeTimeout)
		defer cancel()
		return b.exchange(exchangeCtx, key, username, password)
	})
	select {
	case <-ctx.Done():
		return "", ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return "", res.Err
		}
		if res.Shared {
			log.Ctx(ctx).Debug().Msg("owner token exchange shared with concurrent caller")
		}
		return res.Val.(string), nil
	}
}

// Invalidate drops any cached owner token, e.g. after the API rejected it.
func (b *OwnerBroker) Invalidate() {
	if b.cache != nil {
		b.cache.Flush()
	}
}

func (b *OwnerBroker) credential(ctx context.Context, key string) (string, error) {
	if key == "" {
		return "", badgr.ConfigurationError("owner.token", "owner credential key is not configured")
	}
	value, err := b.secrets.GetSecret(ctx, b.owner.SecretURI(key))
	if err != nil {
		if errors.Is(err, core.ErrSecretNotFound) {
			return "", badgr.ConfigurationError("owner.token", "owner credential %q not found", key)
		}
		return "", fmt.Errorf("reading owner credential %q: %w", key, err)
	}
	if value == "" {
		return "", badgr.ConfigurationError("owner.token", "owner credential %q is empty", key)
	}
	return value, nil
}

func (b *OwnerBroker) exchange(ctx context.Context, key, username, password string) (string, error) {
	logger := log.Ctx(ctx)

	conf := &oauth2.Config{
		Endpoint: oauth2.Endpoint{
			TokenURL:  b.tokenURL,
			AuthStyle: oauth2.AuthStyleInParams,
		},
	}
	tok, err := conf.PasswordCredentialsToken(context.WithValue(ctx, oauth2.HTTPClient, b.httpClient), username, password)
	if err != nil {
		obs.OwnerTokenExchanges.WithLabelValues("error").Inc()
		logger.Error().Err(err).Msg("owner token exchange failed")
		return "", classifyTokenError(err)
	}
	if tok.AccessToken == "" {
		obs.OwnerTokenExchanges.WithLabelValues("error").Inc()
		return "", &badgr.Error{Kind: badgr.KindUnknown, Op: "owner.token", Msg: "no access token received"}
	}
	obs.OwnerTokenExchanges.WithLabelValues("success").Inc()

	if b.cache != nil && !tok.Expiry.IsZero() {
		if ttl := time.Until(tok.Expiry) - ExpiryMargin; ttl > 0 {
			b.cache.Set(key, tok.AccessToken, ttl)
			logger.Debug().Dur("ttl", ttl).Msg("cached owner token")
		}
	}
	return tok.AccessToken, nil
}

// classifyTokenError maps a failed exchange to a typed error.
// Rejected owner credentials are a configuration fault, not a reason for the user to sign in again.
func classifyTokenError(err error) error {
	var re *oauth2.RetrieveError
	if errors.As(err, &re) && re.Response != nil {
		classified := badgr.Classify("owner.token", re.Response.StatusCode, re.Body)
		var e *badgr.Error
		if errors.As(classified, &e) {
			e.Err = err
			if e.Kind == badgr.KindUnauthorized || re.ErrorCode == "invalid_grant" {
				e.Kind = badgr.KindConfiguration
				e.Msg = "owner credentials were rejected"
			}
			return e
		}
	}
	return &badgr.Error{Kind: badgr.KindUnknown, Op: "owner.token", Err: err}
}
