package cmd

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog/log"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/darmiel/badgebot/internal/badgr"
	"github.com/darmiel/badgebot/internal/broker"
	"github.com/darmiel/badgebot/internal/cliconfig"
	"github.com/darmiel/badgebot/internal/config"
	"github.com/darmiel/badgebot/internal/reconcile"
	"github.com/darmiel/badgebot/internal/secrets"
	"github.com/darmiel/badgebot/pkg/client"
)

type Factory struct {
	// RemoteAddr is the address of the BadgeBot server to connect to.
	RemoteAddr string

	// ConfigPath is the server configuration used by local commands.
	ConfigPath string
}

func NewFactory() *Factory {
	return &Factory{}
}

// GetClient returns an authenticated HTTP client for remote operations.
func (f *Factory) GetClient() (*client.Client, error) {
	server := f.RemoteAddr // prio 1: command-line flag / env
	if server == "" {
		return nil, fmt.Errorf("server address not configured (use --server or set BADGEBOT_ADDR)")
	}

	var token string
	cfg, err := cliconfig.Load()
	if err != nil {
		log.Warn().Err(err).Msg("could not load saved credentials")
	} else if cred, err := cfg.GetCredential(server); err == nil { // token prio 1: saved credential
		token = cred.Token
	} else if !errors.Is(err, cliconfig.ErrCredentialNotFound) {
		return nil, err
	}

	if envToken := viper.GetString(TokenKey); envToken != "" { // token prio 2: env var
		token = envToken
	}

	return client.New(server, client.WithAuthToken(token)), nil
}

// LoadServerConfig loads the config named by --config, BADGEBOT_CONFIG or the default path, in that order.
func (f *Factory) LoadServerConfig() (*config.Config, error) {
	if f.ConfigPath == "" {
		f.ConfigPath = viper.GetString(ConfigPathKey)
	}
	if f.ConfigPath == "" {
		f.ConfigPath = DefaultConfigPath
	}
	return config.Load(f.ConfigPath)
}

func (f *Factory) bindConfigFlag(flags *pflag.FlagSet) {
	flags.StringVarP(&f.ConfigPath, "config", "c", "", "The BadgeBot server config file (default is "+DefaultConfigPath+")")
}

// Backend is the credentialing side of the bot, acting with the issuer owner account.
type Backend struct {
	Badgr *badgr.Client
	Owner *broker.OwnerBroker
	Org   *reconcile.Organization
}

func (f *Factory) NewBackend(ctx context.Context, cfg *config.Config) (*Backend, error) {
	secretProvider, err := secrets.New(ctx, cfg.Secrets)
	if err != nil {
		return nil, fmt.Errorf("creating secret provider: %w", err)
	}
	log.Debug().Str("provider", secretProvider.Name()).Msg("secret provider ready")

	badgrClient, err := badgr.NewFromConfig(cfg.Badgr)
	if err != nil {
		return nil, fmt.Errorf("creating badgr client: %w", err)
	}

	var ownerOpts []broker.OwnerOption
	if !cfg.Badgr.CacheOwnerToken() {
		ownerOpts = append(ownerOpts, broker.WithoutTokenCache())
	}
	owner := broker.NewOwnerBroker(secretProvider, cfg.Owner, cfg.Badgr.BaseURL, ownerOpts...)

	return &Backend{
		Badgr: badgrClient,
		Owner: owner,
		Org:   reconcile.NewOrganization(badgrClient, owner, cfg.Badgr.IssuerName),
	}, nil
}
