package reconcile

import (
	"context"
	"errors"
	"slices"

	"github.com/rs/zerolog/log"

	"github.com/darmiel/badgebot/internal/audit"
	"github.com/darmiel/badgebot/internal/badgr"
	"github.com/darmiel/badgebot/internal/core"
)

// ErrNotSignedIn is returned if no credential is stored for the user.
var ErrNotSignedIn = errors.New("user is not signed in")

type State int

const (
	// StateValidated means the credential belongs to the Teams user.
	StateValidated State = iota + 1
	// StateSignedOut means the credential belonged to another account and was discarded.
	StateSignedOut
)

func (s State) String() string {
	switch s {
	case StateValidated:
		return "validated"
	case StateSignedOut:
		return "signed_out"
	default:
		return "unknown"
	}
}

// Result is the outcome of a reconciliation.
type Result struct {
	State State

	// Revoked is the number of access tokens revoked for a mismatching account.
	Revoked int
}

// SignOuter removes a user's credential from the token vault.
type SignOuter interface {
	SignOut(ctx context.Context, userID string) error
}

// Reconciler checks that the credentialing account a user signed in with matches their Teams identity.
type Reconciler struct {
	api     API
	org     *Organization
	users   SignOuter
	auditor core.Auditor
}

func NewReconciler(api API, org *Organization, users SignOuter, auditor core.Auditor) *Reconciler {
	if auditor == nil {
		auditor = audit.NewNoopAuditor()
	}
	return &Reconciler{
		api:     api,
		org:     org,
		users:   users,
		auditor: auditor,
	}
}

// Reconcile validates userToken against teamsEmail.
// If no email of the account matches, all tokens of that account are revoked and the user is signed out.
// Revocation failures are logged and audited but never abort the sign-out.
func (r *Reconciler) Reconcile(ctx context.Context, userID, teamsEmail, userToken string) (res Result, err error) {
	if userToken == "" {
		return Result{}, ErrNotSignedIn
	}
	logger := log.Ctx(ctx)

	profile, err := r.api.GetProfile(ctx, userToken)
	if err != nil {
		return Result{}, err
	}
	if profile.HasEmail(teamsEmail) {
		logger.Debug().Msg("credential matches teams identity")
		return Result{State: StateValidated}, nil
	}

	logger.Warn().Msg("credential belongs to a different account, signing out")
	entry := audit.Entry(core.CorrelationID(ctx), "identity.mismatch")
	entry.Caller = userID
	entry.Email = teamsEmail
	defer func() {
		entry.Success = err == nil
		if err != nil {
			entry.Error = err.Error()
		}
		entry.Metadata["revoked"] = res.Revoked
		if auditErr := r.auditor.Log(entry); auditErr != nil {
			logger.Warn().Err(auditErr).Msg("failed to write audit log entry")
		}
	}()

	res.State = StateSignedOut
	tokens, listErr := r.api.ListAccessTokens(ctx, userToken)
	switch {
	case listErr != nil:
		logger.Error().Err(listErr).Msg("failed to list access tokens of mismatching account")
		entry.Metadata["list_error"] = listErr.Error()
	case len(tokens) > 0:
		revoked, revokeErr := r.api.RevokeAccessTokens(ctx, userToken, revocationOrder(tokens))
		res.Revoked = revoked
		if revokeErr != nil {
			logger.Error().Err(revokeErr).
				Int("revoked", revoked).
				Int("tokens", len(tokens)).
				Msg("failed to revoke some access tokens of mismatching account")
			entry.Metadata["revoke_error"] = revokeErr.Error()
		}
	}

	if err := r.users.SignOut(ctx, userID); err != nil {
		return res, err
	}
	return res, nil
}

// EnsureRole returns the caller's issuer role, provisioning them as staff if they have none.
func (r *Reconciler) EnsureRole(ctx context.Context, teamsEmail, userToken string) (role string, err error) {
	if userToken == "" {
		return "", ErrNotSignedIn
	}
	role, err = r.org.GetUserRole(ctx, teamsEmail)
	if err != nil {
		return "", err
	}
	if role != "" {
		return role, nil
	}

	entry := audit.Entry(core.CorrelationID(ctx), "issuer.staff.add")
	entry.Email = teamsEmail
	defer func() {
		entry.Success = err == nil
		if err != nil {
			entry.Error = err.Error()
		}
		if auditErr := r.auditor.Log(entry); auditErr != nil {
			log.Ctx(ctx).Warn().Err(auditErr).Msg("failed to write audit log entry")
		}
	}()

	profile, err := r.api.GetProfile(ctx, userToken)
	if err != nil {
		return "", err
	}
	return r.org.AssignRole(ctx, profile, badgr.RoleStaff)
}

// revocationOrder returns tokens oldest first. The token the bot is calling with is normally
// the newest one, and once it is revoked every further request is rejected.
func revocationOrder(tokens []badgr.AccessToken) []badgr.AccessToken {
	ordered := slices.Clone(tokens)
	slices.SortStableFunc(ordered, func(a, b badgr.AccessToken) int {
		return a.Created.Compare(b.Created)
	})
	return ordered
}
