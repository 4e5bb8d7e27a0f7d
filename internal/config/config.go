package config

import (
	"fmt"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/goccy/go-yaml"

	"github.com/darmiel/badgebot/internal/policy"
)

const (
	DefaultListen          = ":8080"
	DefaultTokenExpiry     = 60 * time.Minute
	DefaultRosterTTL       = time.Hour
	DefaultRosterPageSize  = 500
	DefaultRequestTimeout  = 30 * time.Second
	DefaultTokenServiceURL = "https://token.botframework.com"
	DefaultBotKeysURL      = "https://login.botframework.com/v1/.well-known/keys"
	DefaultBotIssuer       = "https://api.botframework.com"
	DefaultAppTokenURL     = "https://login.microsoftonline.com/botframework.com/oauth2/v2.0/token"
	DefaultAppTokenScope   = "https://api.botframework.com/.default"
	DefaultAwardPolicy     = `role != ""`
	DefaultTaskTimeout     = 5 * time.Minute
	DefaultBackendCheck    = 30 * time.Minute
)

type Config struct {
	// AppBaseURL is the public URL of this app. It is the issuer and audience of internal tokens.
	AppBaseURL string `yaml:"app_base_url"`

	// TenantID restricts the bot to a single Azure AD tenant.
	TenantID string `yaml:"tenant_id"`

	Listen string `yaml:"listen"`

	Token       TokenConfig       `yaml:"token"`
	Badgr       BadgrConfig       `yaml:"badgr"`
	Owner       OwnerConfig       `yaml:"owner"`
	Secrets     SecretsConfig     `yaml:"secrets"`
	Bot         BotConfig         `yaml:"bot"`
	Roster      RosterConfig      `yaml:"roster"`
	State       StateConfig       `yaml:"state"`
	Audit       AuditConfig       `yaml:"audit"`
	AwardPolicy AwardPolicyConfig `yaml:"award_policy"`
	Tasks       TasksConfig       `yaml:"tasks"`

	// Resources overrides single UI strings by key.
	Resources map[string]string `yaml:"resources"`
}

// TokenConfig holds configuration for the internal API tokens.
type TokenConfig struct {
	SecurityKey string        `yaml:"security_key"`
	Expiry      time.Duration `yaml:"expiry"`
}

// BadgrConfig holds configuration for the credentialing API.
type BadgrConfig struct {
	BaseURL    string `yaml:"base_url"`
	IssuerName string `yaml:"issuer_name"`

	Timeout       time.Duration `yaml:"timeout"`
	RateLimit     float64       `yaml:"rate_limit"`
	RateBurst     int           `yaml:"rate_burst"`
	RetryAttempts int           `yaml:"retry_attempts"`

	// OwnerTokenCache enables caching of the owner access token until shortly before it expires.
	// Default: true
	OwnerTokenCache *bool `yaml:"owner_token_cache"`
}

func (b BadgrConfig) CacheOwnerToken() bool {
	return b.OwnerTokenCache == nil || *b.OwnerTokenCache
}

// OwnerConfig names the vault secrets of the issuer owner account.
type OwnerConfig struct {
	VaultBaseURL string `yaml:"vault_base_url"`
	UsernameKey  string `yaml:"username_key"`
	PasswordKey  string `yaml:"password_key"`
}

// SecretURI returns the vault URI of the secret named key.
func (o OwnerConfig) SecretURI(key string) string {
	return strings.TrimRight(o.VaultBaseURL, "/") + "/" + key
}

// SecretsConfig selects the secret backend.
type SecretsConfig struct {
	Type   string         `yaml:"type"`    // e.g., "vault", "env", "static", "file"
	Config map[string]any `yaml:",inline"` // Capture remaining fields
}

// BotConfig holds configuration for the Bot Framework.
type BotConfig struct {
	AppID           string `yaml:"app_id"`
	AppPassword     string `yaml:"app_password"`
	ConnectionName  string `yaml:"connection_name"`
	TokenServiceURL string `yaml:"token_service_url"`

	// AppTokenURL and AppTokenScope are used to obtain the bot's own access token
	// for the connector and the token service.
	AppTokenURL   string `yaml:"app_token_url"`
	AppTokenScope string `yaml:"app_token_scope"`

	Auth BotAuthConfig `yaml:"auth"`
}

// BotAuthConfig configures verification of inbound activities.
type BotAuthConfig struct {
	// Disabled skips verification (local emulator only).
	Disabled bool   `yaml:"disabled"`
	KeysURL  string `yaml:"keys_url"`
	Issuer   string `yaml:"issuer"`
}

type RosterConfig struct {
	TTL      time.Duration `yaml:"ttl"`
	PageSize int           `yaml:"page_size"`
}

type StateConfig struct {
	Type string `yaml:"type"` // e.g., "memory", "bolt"
	Path string `yaml:"path"`
}

// AuditConfig holds configuration for auditing.
type AuditConfig struct {
	Enabled bool   `yaml:"enabled"`
	Path    string `yaml:"path"`
	Type    string `yaml:"type"` // e.g., "file", "memory"
}

// AwardPolicyConfig decides who may award badges.
// The expression sees `role`, `email` and `recipients` and must return a bool.
type AwardPolicyConfig struct {
	Expr string `yaml:"expr"`
}

// TasksConfig configures the background maintenance tasks.
type TasksConfig struct {
	Timeout time.Duration `yaml:"timeout"`

	// BackendCheckInterval is the interval of the owner token and issuer check.
	// A negative value disables the schedule, the task can still be triggered.
	BackendCheckInterval time.Duration `yaml:"backend_check_interval"`
}

// Load reads and parses the configuration file at the given path.
// It returns a Config struct or an error if loading/parsing/validation fails.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}
	return Parse(data)
}

// Parse parses, defaults and validates a YAML configuration.
func Parse(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config file: %w", err)
	}
	return &cfg, nil
}

func (c *Config) ApplyDefaults() {
	c.AppBaseURL = strings.TrimRight(c.AppBaseURL, "/")
	if c.Listen == "" {
		c.Listen = DefaultListen
	}
	if c.Token.Expiry <= 0 {
		c.Token.Expiry = DefaultTokenExpiry
	}
	if c.Badgr.Timeout <= 0 {
		c.Badgr.Timeout = DefaultRequestTimeout
	}
	if c.Badgr.RetryAttempts <= 0 {
		c.Badgr.RetryAttempts = 3
	}
	if c.Bot.TokenServiceURL == "" {
		c.Bot.TokenServiceURL = DefaultTokenServiceURL
	}
	if c.Bot.AppTokenURL == "" {
		c.Bot.AppTokenURL = DefaultAppTokenURL
	}
	if c.Bot.AppTokenScope == "" {
		c.Bot.AppTokenScope = DefaultAppTokenScope
	}
	if c.Bot.Auth.KeysURL == "" {
		c.Bot.Auth.KeysURL = DefaultBotKeysURL
	}
	if c.Bot.Auth.Issuer == "" {
		c.Bot.Auth.Issuer = DefaultBotIssuer
	}
	if c.Roster.TTL <= 0 {
		c.Roster.TTL = DefaultRosterTTL
	}
	if c.Roster.PageSize <= 0 {
		c.Roster.PageSize = DefaultRosterPageSize
	}
	if c.State.Type == "" {
		c.State.Type = "memory"
	}
	if c.Secrets.Type == "" {
		c.Secrets.Type = "env"
	}
	if c.AwardPolicy.Expr == "" {
		c.AwardPolicy.Expr = DefaultAwardPolicy
	}
	if c.Tasks.Timeout <= 0 {
		c.Tasks.Timeout = DefaultTaskTimeout
	}
	if c.Tasks.BackendCheckInterval == 0 {
		c.Tasks.BackendCheckInterval = DefaultBackendCheck
	}
}

func (c *Config) Validate() error {
	if err := validateURL("app_base_url", c.AppBaseURL); err != nil {
		return err
	}
	if c.Token.SecurityKey == "" {
		return fmt.Errorf("token.security_key is required")
	}
	if err := validateURL("badgr.base_url", c.Badgr.BaseURL); err != nil {
		return err
	}
	if c.Badgr.IssuerName == "" {
		return fmt.Errorf("badgr.issuer_name is required")
	}
	if c.Badgr.RateLimit < 0 {
		return fmt.Errorf("badgr.rate_limit cannot be negative")
	}
	if c.Owner.UsernameKey == "" || c.Owner.PasswordKey == "" {
		return fmt.Errorf("owner.username_key and owner.password_key are required")
	}
	if c.Bot.AppID == "" {
		return fmt.Errorf("bot.app_id is required")
	}
	if c.Bot.ConnectionName == "" {
		return fmt.Errorf("bot.connection_name is required")
	}
	switch c.State.Type {
	case "memory":
	case "bolt":
		if c.State.Path == "" {
			return fmt.Errorf("state.path is required for bolt state")
		}
	default:
		return fmt.Errorf("unknown state type: %s", c.State.Type)
	}
	if c.Audit.Enabled {
		switch c.Audit.Type {
		case "", "file":
			if c.Audit.Path == "" {
				return fmt.Errorf("audit.path is required for file auditor")
			}
		case "memory":
		default:
			return fmt.Errorf("unknown audit type: %s", c.Audit.Type)
		}
	}
	if _, err := policy.Compile(c.AwardPolicy.Expr); err != nil {
		return fmt.Errorf("award_policy.expr: %w", err)
	}
	return nil
}

// Redacted returns a copy with secrets masked, for printing.
func (c *Config) Redacted() *Config {
	cp := *c
	cp.Token.SecurityKey = mask(cp.Token.SecurityKey)
	cp.Bot.AppPassword = mask(cp.Bot.AppPassword)
	return &cp
}

func mask(s string) string {
	if s == "" {
		return ""
	}
	return "********"
}

func validateURL(field, value string) error {
	if value == "" {
		return fmt.Errorf("%s is required", field)
	}
	u, err := url.Parse(value)
	if err != nil {
		return fmt.Errorf("%s: %w", field, err)
	}
	if u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("%s must be an absolute URL", field)
	}
	return nil
}
