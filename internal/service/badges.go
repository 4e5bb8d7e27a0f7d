package service

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/darmiel/badgebot/internal/audit"
	"github.com/darmiel/badgebot/internal/badgr"
	"github.com/darmiel/badgebot/internal/core"
	"github.com/darmiel/badgebot/internal/obs"
	"github.com/darmiel/badgebot/internal/policy"
	"github.com/darmiel/badgebot/internal/reconcile"
)

type BadgeAPI interface {
	GetProfile(ctx context.Context, token string) (*badgr.UserProfile, error)
	ListBadgeClasses(ctx context.Context, token, issuerID string) ([]badgr.BadgeClass, error)
	ListEarnedBadges(ctx context.Context, token, issuerID string) ([]badgr.EarnedBadgeView, error)
	AwardBadge(ctx context.Context, token, issuerID string, detail badgr.AssertionDetail) error
}

type UserTokenSource interface {
	GetUserToken(ctx context.Context, userID string) (string, error)
}

type RoleEnsurer interface {
	EnsureRole(ctx context.Context, teamsEmail, userToken string) (string, error)
}

// Organization resolves the configured issuer and the roles of its staff.
type Organization interface {
	ResolveOrgIdentity(ctx context.Context) (string, error)
	GetUserRole(ctx context.Context, email string) (string, error)
}

type RosterSource interface {
	GetRoster(ctx context.Context, serviceURL, teamID string) ([]core.RosterEntry, error)
}

var (
	_ Organization = (*reconcile.Organization)(nil)
	_ RoleEnsurer  = (*reconcile.Reconciler)(nil)
	_ BadgeAPI     = (*badgr.Client)(nil)
)

// BadgeService backs the task module API. Every call acts on behalf of the caller's own credential.
type BadgeService struct {
	api     BadgeAPI
	users   UserTokenSource
	roles   RoleEnsurer
	org     Organization
	roster  RosterSource
	policy  *policy.Policy
	auditor core.Auditor
}

func NewBadgeService(
	api BadgeAPI,
	users UserTokenSource,
	roles RoleEnsurer,
	org Organization,
	roster RosterSource,
	awardPolicy *policy.Policy,
	auditor core.Auditor,
) *BadgeService {
	if auditor == nil {
		auditor = audit.NewNoopAuditor()
	}
	return &BadgeService{
		api:     api,
		users:   users,
		roles:   roles,
		org:     org,
		roster:  roster,
		policy:  awardPolicy,
		auditor: auditor,
	}
}

// TeamMembers lists the members of teamID for the people picker.
func (s *BadgeService) TeamMembers(ctx context.Context, caller *core.Caller, teamID string) ([]TeamMember, error) {
	if teamID == "" {
		return nil, httpErrorMsg(http.StatusBadRequest, "Team ID cannot be empty.", errors.New("missing team id"))
	}
	entries, err := s.roster.GetRoster(ctx, caller.ServiceURL, teamID)
	if err != nil {
		return nil, httpError(http.StatusInternalServerError, fmt.Errorf("fetching team members: %w", err))
	}
	members := make([]TeamMember, 0, len(entries))
	for _, e := range entries {
		members = append(members, TeamMember{
			Content: e.Email,
			Header:  e.Name,
		})
	}
	return members, nil
}

// AllBadges makes sure the caller is staff of the issuer and lists the issuer's badge classes.
func (s *BadgeService) AllBadges(ctx context.Context, caller *core.Caller, email string) (*AllBadgesResponse, error) {
	logger := log.Ctx(ctx)

	token, err := s.userToken(ctx, caller)
	if err != nil {
		return nil, err
	}

	role, err := s.roles.EnsureRole(ctx, email, token)
	if errors.Is(err, badgr.ErrUnauthorized) {
		return nil, upstreamError(err)
	}
	if err != nil || role == "" {
		logger.Error().Err(err).Msg("failed to fetch or add user to role")
		if err == nil {
			err = errors.New("empty role")
		}
		return nil, httpErrorMsg(http.StatusBadRequest, "Failed to fetch or add user to role.", err)
	}
	logger.UpdateContext(func(c zerolog.Context) zerolog.Context {
		return c.Str("role", role)
	})

	issuerID, err := s.org.ResolveOrgIdentity(ctx)
	if err != nil {
		return nil, upstreamError(err)
	}
	badges, err := s.api.ListBadgeClasses(ctx, token, issuerID)
	if err != nil {
		return nil, upstreamError(err)
	}
	logger.Debug().Int("badges", len(badges)).Msg("listed badge classes")

	return &AllBadgesResponse{
		AllBadges:     badges,
		UserBadgrRole: role,
	}, nil
}

// EarnedBadges lists the caller's badges that were issued by the configured issuer.
func (s *BadgeService) EarnedBadges(ctx context.Context, caller *core.Caller) ([]badgr.EarnedBadgeView, error) {
	token, err := s.userToken(ctx, caller)
	if err != nil {
		return nil, err
	}
	issuerID, err := s.org.ResolveOrgIdentity(ctx)
	if err != nil {
		return nil, upstreamError(err)
	}
	earned, err := s.api.ListEarnedBadges(ctx, token, issuerID)
	if err != nil {
		return nil, upstreamError(err)
	}
	if earned == nil {
		earned = []badgr.EarnedBadgeView{}
	}
	return earned, nil
}

// AwardBadge awards a badge class to the recipients in detail if the award policy allows it.
func (s *BadgeService) AwardBadge(ctx context.Context, caller *core.Caller, detail *badgr.AssertionDetail) (err error) {
	logger := log.Ctx(ctx)
	if detail == nil {
		return httpErrorMsg(http.StatusBadRequest, "Details for awarding badge cannot be empty.", errors.New("missing award"))
	}
	if detail.BadgeClassID == "" || len(detail.Assertions) == 0 {
		return httpErrorMsg(http.StatusBadRequest, "A badge class and at least one recipient are required.",
			errors.New("incomplete award"))
	}

	recipients := make([]string, 0, len(detail.Assertions))
	for _, a := range detail.Assertions {
		recipients = append(recipients, a.RecipientIdentifier)
	}

	entry := audit.Entry(core.CorrelationID(ctx), "badge.award")
	entry.Caller = caller.FromID
	entry.Metadata["badge_class"] = detail.BadgeClassID
	entry.Metadata["recipients"] = len(recipients)
	defer func() {
		entry.Success = err == nil
		if err != nil {
			entry.Error = err.Error()
		}
		if logErr := s.auditor.Log(entry); logErr != nil {
			logger.Error().Err(logErr).Msg("failed to write audit log entry for badge award")
		}
	}()

	token, err := s.userToken(ctx, caller)
	if err != nil {
		return err
	}
	profile, err := s.api.GetProfile(ctx, token)
	if err != nil {
		return upstreamError(err)
	}
	email, _ := profile.PrimaryEmail()
	entry.Email = email

	role := ""
	if email != "" {
		if role, err = s.org.GetUserRole(ctx, email); err != nil {
			return upstreamError(err)
		}
	}
	entry.Metadata["role"] = role

	err = s.policy.Evaluate(policy.Input{
		Role:       role,
		Email:      email,
		BadgeClass: detail.BadgeClassID,
		Recipients: recipients,
	})
	if err != nil {
		logger.Warn().Str("role", role).Msg("award denied by policy")
		return httpErrorMsg(http.StatusForbidden, "You are not allowed to award this badge.", err)
	}

	issuerID, err := s.org.ResolveOrgIdentity(ctx)
	if err != nil {
		return upstreamError(err)
	}
	entry.IssuerID = issuerID

	if err = s.api.AwardBadge(ctx, token, issuerID, *detail); err != nil {
		return upstreamError(err)
	}
	obs.BadgesAwarded.Add(float64(len(recipients)))
	logger.Info().
		Str("badge_class", detail.BadgeClassID).
		Int("recipients", len(recipients)).
		Msg("badge awarded")
	return nil
}

func (s *BadgeService) userToken(ctx context.Context, caller *core.Caller) (string, error) {
	if caller == nil {
		return "", httpError(http.StatusUnauthorized, errors.New("no caller"))
	}
	token, err := s.users.GetUserToken(ctx, caller.FromID)
	if err != nil {
		return "", httpError(http.StatusInternalServerError, err)
	}
	if token == "" {
		return "", upstreamError(reconcile.ErrNotSignedIn)
	}
	return token, nil
}
