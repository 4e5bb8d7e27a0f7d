package reconcile

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/darmiel/badgebot/internal/badgr"
)

// API is the subset of the credentialing client used for reconciliation.
type API interface {
	ListIssuers(ctx context.Context, token string) ([]badgr.Issuer, error)
	GetIssuer(ctx context.Context, token, issuerID string) (*badgr.Issuer, error)
	AddStaff(ctx context.Context, token, issuerID, email, role string) error
	GetProfile(ctx context.Context, token string) (*badgr.UserProfile, error)
	ListAccessTokens(ctx context.Context, token string) ([]badgr.AccessToken, error)
	RevokeAccessTokens(ctx context.Context, token string, tokens []badgr.AccessToken) (int, error)
}

var _ API = (*badgr.Client)(nil)

// OwnerTokenSource returns an access token of the issuer owner.
type OwnerTokenSource interface {
	GetOwnerToken(ctx context.Context) (string, error)
}

// Organization is the configured issuing organization.
type Organization struct {
	api   API
	owner OwnerTokenSource
	name  string

	mu       sync.Mutex
	entityID string
}

func NewOrganization(api API, owner OwnerTokenSource, issuerName string) *Organization {
	return &Organization{
		api:   api,
		owner: owner,
		name:  issuerName,
	}
}

// ResolveOrgIdentity returns the entity id of the issuer named like the configured issuer.
// The first successful lookup is remembered for the lifetime of o; failures are retried on the next call.
func (o *Organization) ResolveOrgIdentity(ctx context.Context) (string, error) {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.entityID != "" {
		return o.entityID, nil
	}

	token, err := o.owner.GetOwnerToken(ctx)
	if err != nil {
		return "", err
	}
	issuers, err := o.api.ListIssuers(ctx, token)
	if err != nil {
		return "", o.ownerCallError(err)
	}
	for _, issuer := range issuers {
		if issuer.Name == o.name && issuer.EntityID != "" {
			o.entityID = issuer.EntityID
			log.Ctx(ctx).Info().Str("issuer", o.name).Str("entity_id", o.entityID).Msg("resolved issuer")
			return o.entityID, nil
		}
	}
	return "", &badgr.Error{
		Kind: badgr.KindNotFound,
		Op:   "issuers.resolve",
		Msg:  fmt.Sprintf("entity id of issuer %q cannot be retrieved", o.name),
	}
}

// GetUserRole returns the staff role of email within the issuer, or "" if email is not staff.
func (o *Organization) GetUserRole(ctx context.Context, email string) (string, error) {
	entityID, err := o.ResolveOrgIdentity(ctx)
	if err != nil {
		return "", err
	}
	token, err := o.owner.GetOwnerToken(ctx)
	if err != nil {
		return "", err
	}
	issuer, err := o.api.GetIssuer(ctx, token, entityID)
	if err != nil {
		return "", o.ownerCallError(err)
	}
	for _, staff := range issuer.Staff {
		if staff.UserProfile.HasEmail(email) {
			return staff.Role, nil
		}
	}
	return "", nil
}

// AssignRole adds the profile's primary email to the issuer staff with role.
func (o *Organization) AssignRole(ctx context.Context, profile *badgr.UserProfile, role string) (string, error) {
	email, ok := profile.PrimaryEmail()
	if !ok {
		return "", badgr.ConfigurationError("issuers.staff.add",
			"user cannot be added to the issuer because no primary email exists")
	}
	entityID, err := o.ResolveOrgIdentity(ctx)
	if err != nil {
		return "", err
	}
	token, err := o.owner.GetOwnerToken(ctx)
	if err != nil {
		return "", err
	}
	if err := o.api.AddStaff(ctx, token, entityID, email, role); err != nil {
		return "", o.ownerCallError(err)
	}
	log.Ctx(ctx).Info().Str("role", role).Msg("assigned issuer role to user")
	return role, nil
}

// ownerCallError turns a rejected owner token into a configuration error and drops any cached owner token.
func (o *Organization) ownerCallError(err error) error {
	var e *badgr.Error
	if !errors.As(err, &e) || e.Kind != badgr.KindUnauthorized {
		return err
	}
	if inv, ok := o.owner.(interface{ Invalidate() }); ok {
		inv.Invalidate()
	}
	return &badgr.Error{
		Kind:       badgr.KindConfiguration,
		Op:         e.Op,
		StatusCode: e.StatusCode,
		Body:       e.Body,
		Msg:        "owner access token was rejected",
	}
}
