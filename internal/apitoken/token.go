package apitoken

import (
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/darmiel/badgebot/internal/core"
)

const (
	DefaultExpiry = 60 * time.Minute
	Leeway        = 30 * time.Second
)

// RoleAdmin grants access to the admin API.
const RoleAdmin = "admin"

const adminAudienceSuffix = "/admin"

var (
	ErrInvalidToken           = errors.New("invalid api token")
	ErrInsufficientPrivileges = errors.New("insufficient privileges")
)

// Claims are the claims of an internal API token.
type Claims struct {
	FromID     string `json:"fromId"`
	ServiceURL string `json:"serviceURL"`
	jwt.RegisteredClaims
}

// AdminClaims are the claims of an admin session token.
type AdminClaims struct {
	Roles []string `json:"roles"`
	jwt.RegisteredClaims
}

// Issuer mints and validates the tokens the task module uses to call the internal API.
// Tokens are issued for and by the app base URL.
type Issuer struct {
	key     []byte
	baseURL string
	expiry  time.Duration
	now     func() time.Time
}

func NewIssuer(securityKey, appBaseURL string, expiry time.Duration) (*Issuer, error) {
	if securityKey == "" {
		return nil, fmt.Errorf("security key cannot be empty")
	}
	if expiry <= 0 {
		expiry = DefaultExpiry
	}
	return &Issuer{
		key:     []byte(securityKey),
		baseURL: appBaseURL,
		expiry:  expiry,
		now:     time.Now,
	}, nil
}

// Mint creates a signed token for caller.
func (i *Issuer) Mint(caller core.Caller) (string, time.Time, error) {
	now := i.now()
	exp := now.Add(i.expiry)
	claims := Claims{
		FromID:     caller.FromID,
		ServiceURL: caller.ServiceURL,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Issuer:    i.baseURL,
			Audience:  jwt.ClaimStrings{i.baseURL},
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(exp),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(i.key)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("signing api token: %w", err)
	}
	return signed, exp, nil
}

// Validate parses tokenStr and returns the caller it was issued for.
func (i *Issuer) Validate(tokenStr string) (*core.Caller, error) {
	var claims Claims
	parser := jwt.NewParser(
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(i.baseURL),
		jwt.WithAudience(i.baseURL),
		jwt.WithLeeway(Leeway),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(i.now),
	)
	token, err := parser.ParseWithClaims(tokenStr, &claims, func(*jwt.Token) (any, error) {
		return i.key, nil
	})
	if err != nil || !token.Valid {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if claims.FromID == "" || claims.ServiceURL == "" {
		return nil, fmt.Errorf("%w: missing fromId or serviceURL claim", ErrInvalidToken)
	}
	return &core.Caller{
		FromID:     claims.FromID,
		ServiceURL: claims.ServiceURL,
	}, nil
}

// MintAdmin creates an admin session token for subject. Admin tokens have their own audience
// so they cannot be used as caller tokens and vice versa.
func (i *Issuer) MintAdmin(subject string, expiry time.Duration) (string, time.Time, error) {
	if expiry <= 0 {
		expiry = i.expiry
	}
	now := i.now()
	exp := now.Add(expiry)
	claims := AdminClaims{
		Roles: []string{RoleAdmin},
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Subject:   subject,
			Issuer:    i.baseURL,
			Audience:  jwt.ClaimStrings{i.baseURL + adminAudienceSuffix},
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(exp),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(i.key)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("signing admin token: %w", err)
	}
	return signed, exp, nil
}

// ValidateAdmin parses an admin session token and returns its subject.
func (i *Issuer) ValidateAdmin(tokenStr string) (string, error) {
	var claims AdminClaims
	parser := jwt.NewParser(
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(i.baseURL),
		jwt.WithAudience(i.baseURL+adminAudienceSuffix),
		jwt.WithLeeway(Leeway),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(i.now),
	)
	token, err := parser.ParseWithClaims(tokenStr, &claims, func(*jwt.Token) (any, error) {
		return i.key, nil
	})
	if err != nil || !token.Valid {
		return "", fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if !slices.Contains(claims.Roles, RoleAdmin) {
		return "", ErrInsufficientPrivileges
	}
	return claims.Subject, nil
}
