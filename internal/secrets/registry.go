package secrets

import (
	"context"
	"fmt"
	"strings"

	"github.com/mitchellh/mapstructure"

	"github.com/darmiel/badgebot/internal/config"
	"github.com/darmiel/badgebot/internal/core"
)

// New builds the secret provider selected by cfg.Type.
func New(ctx context.Context, cfg config.SecretsConfig) (core.SecretProvider, error) {
	switch cfg.Type {
	case VaultType:
		var conf VaultConfig
		if err := decode(cfg, &conf); err != nil {
			return nil, err
		}
		return NewVault(ctx, conf)
	case EnvType:
		var conf EnvConfig
		if err := decode(cfg, &conf); err != nil {
			return nil, err
		}
		return NewEnv(conf.Prefix), nil
	case StaticType:
		var conf StaticConfig
		if err := decode(cfg, &conf); err != nil {
			return nil, err
		}
		return NewStatic(conf.Secrets), nil
	case FileType:
		var conf FileConfig
		if err := decode(cfg, &conf); err != nil {
			return nil, err
		}
		return NewFile(conf.Dir)
	default:
		return nil, fmt.Errorf("unknown secrets type %q", cfg.Type)
	}
}

func decode(cfg config.SecretsConfig, out any) error {
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result: out,
	})
	if err != nil {
		return fmt.Errorf("failed to create decoder for %s secrets: %w", cfg.Type, err)
	}
	if err := decoder.Decode(cfg.Config); err != nil {
		return fmt.Errorf("failed to decode config for %s secrets: %w", cfg.Type, err)
	}
	return nil
}

// secretName returns the last path segment of uri.
func secretName(uri string) string {
	uri = strings.TrimRight(uri, "/")
	if idx := strings.LastIndex(uri, "/"); idx >= 0 {
		return uri[idx+1:]
	}
	return uri
}
