package secrets

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"

	"github.com/rs/zerolog/log"
	"golang.org/x/oauth2/clientcredentials"

	"github.com/darmiel/badgebot/internal/core"
)

const (
	VaultType         = "vault"
	DefaultAPIVersion = "7.4"
)

var _ core.SecretProvider = (*Vault)(nil)

// VaultConfig configures a Key Vault compatible secret store.
// If TokenURL is empty, requests are sent without authorization.
type VaultConfig struct {
	APIVersion   string   `mapstructure:"api_version"`
	TokenURL     string   `mapstructure:"token_url"`
	ClientID     string   `mapstructure:"client_id"`
	ClientSecret string   `mapstructure:"client_secret"`
	Scopes       []string `mapstructure:"scopes"`
}

// Vault reads secrets with `GET {uri}?api-version=...`, expecting `{"value": "..."}`.
type Vault struct {
	apiVersion string
	httpClient *http.Client
}

type vaultSecret struct {
	Value string `json:"value"`
}

func NewVault(ctx context.Context, conf VaultConfig) (*Vault, error) {
	v := &Vault{
		apiVersion: conf.APIVersion,
		httpClient: http.DefaultClient,
	}
	if v.apiVersion == "" {
		v.apiVersion = DefaultAPIVersion
	}
	if conf.TokenURL != "" {
		if conf.ClientID == "" || conf.ClientSecret == "" {
			return nil, fmt.Errorf("client_id and client_secret are required when token_url is set")
		}
		scopes := conf.Scopes
		if len(scopes) == 0 {
			scopes = []string{"https://vault.azure.net/.default"}
		}
		cc := &clientcredentials.Config{
			ClientID:     conf.ClientID,
			ClientSecret: conf.ClientSecret,
			TokenURL:     conf.TokenURL,
			Scopes:       scopes,
		}
		// the oauth2 transport caches and refreshes the token
		v.httpClient = cc.Client(context.WithoutCancel(ctx))
	}
	return v, nil
}

func (v *Vault) Name() string {
	return VaultType
}

func (v *Vault) GetSecret(ctx context.Context, uri string) (string, error) {
	u, err := url.Parse(uri)
	if err != nil {
		return "", fmt.Errorf("parsing secret uri: %w", err)
	}
	q := u.Query()
	q.Set("api-version", v.apiVersion)
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return "", fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := v.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("performing request: %w", err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return "", fmt.Errorf("%w: %s", core.ErrSecretNotFound, secretName(uri))
	case resp.StatusCode != http.StatusOK:
		log.Ctx(ctx).Warn().Int("status", resp.StatusCode).Str("secret", secretName(uri)).Msg("vault request failed")
		return "", fmt.Errorf("unexpected status code: %d", resp.StatusCode)
	}

	var secret vaultSecret
	if err := json.NewDecoder(resp.Body).Decode(&secret); err != nil {
		return "", fmt.Errorf("decoding response: %w", err)
	}
	return secret.Value, nil
}
