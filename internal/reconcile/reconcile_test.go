package reconcile

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/darmiel/badgebot/internal/audit"
	"github.com/darmiel/badgebot/internal/badgr"
	"github.com/darmiel/badgebot/internal/core"
)

type fakeAPI struct {
	mu sync.Mutex

	issuers    []badgr.Issuer
	issuersErr error
	issuer     *badgr.Issuer
	profile    *badgr.UserProfile
	profileErr error
	tokens     []badgr.AccessToken
	listErr    error
	revokeErr  map[string]error

	listIssuerCalls int
	addStaff        []string
	revokeCalls     int
	revoked         []string
	profileCalls    int
}

func (f *fakeAPI) ListIssuers(context.Context, string) ([]badgr.Issuer, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.listIssuerCalls++
	return f.issuers, f.issuersErr
}

func (f *fakeAPI) GetIssuer(_ context.Context, _ string, id string) (*badgr.Issuer, error) {
	if f.issuer == nil {
		return &badgr.Issuer{EntityID: id}, nil
	}
	return f.issuer, nil
}

func (f *fakeAPI) AddStaff(_ context.Context, _ string, _ string, email, role string) error {
	f.addStaff = append(f.addStaff, email+":"+role)
	return nil
}

func (f *fakeAPI) GetProfile(context.Context, string) (*badgr.UserProfile, error) {
	f.profileCalls++
	return f.profile, f.profileErr
}

func (f *fakeAPI) ListAccessTokens(context.Context, string) ([]badgr.AccessToken, error) {
	return f.tokens, f.listErr
}

func (f *fakeAPI) RevokeAccessTokens(_ context.Context, _ string, tokens []badgr.AccessToken) (int, error) {
	f.revokeCalls++
	var errs []error
	for _, t := range tokens {
		if err := f.revokeErr[t.EntityID]; err != nil {
			errs = append(errs, err)
			continue
		}
		f.revoked = append(f.revoked, t.EntityID)
	}
	return len(f.revoked), errors.Join(errs...)
}

type staticOwner struct{ err error }

func (s staticOwner) GetOwnerToken(context.Context) (string, error) {
	return "owner", s.err
}

type invalidatingOwner struct{ invalidated int }

func (o *invalidatingOwner) GetOwnerToken(context.Context) (string, error) {
	return "owner", nil
}

func (o *invalidatingOwner) Invalidate() {
	o.invalidated++
}

type fakeSignOut struct{ calls []string }

func (f *fakeSignOut) SignOut(_ context.Context, userID string) error {
	f.calls = append(f.calls, userID)
	return nil
}

func profile(emails ...badgr.UserEmail) *badgr.UserProfile {
	return &badgr.UserProfile{Emails: emails}
}

func TestReconcile(t *testing.T) {
	tests := []struct {
		name         string
		api          *fakeAPI
		teamsEmail   string
		wantState    State
		wantRevoked  int
		wantRevokes  int
		wantSignOuts int
	}{
		{
			name:       "matching primary email",
			api:        &fakeAPI{profile: profile(badgr.UserEmail{Email: "a@x.com", Primary: true})},
			teamsEmail: "a@x.com",
			wantState:  StateValidated,
		},
		{
			name:       "matching secondary email ignoring case",
			api:        &fakeAPI{profile: profile(badgr.UserEmail{Email: "p@y.com", Primary: true}, badgr.UserEmail{Email: "A@X.com"})},
			teamsEmail: "a@x.com",
			wantState:  StateValidated,
		},
		{
			name: "mismatch revokes tokens",
			api: &fakeAPI{
				profile: profile(badgr.UserEmail{Email: "other@y.com"}),
				tokens:  []badgr.AccessToken{{EntityID: "t1"}, {EntityID: "t2"}, {EntityID: "t3"}},
			},
			teamsEmail:   "a@x.com",
			wantState:    StateSignedOut,
			wantRevoked:  3,
			wantRevokes:  1,
			wantSignOuts: 1,
		},
		{
			name:         "mismatch without tokens",
			api:          &fakeAPI{profile: profile(badgr.UserEmail{Email: "other@y.com"})},
			teamsEmail:   "a@x.com",
			wantState:    StateSignedOut,
			wantSignOuts: 1,
		},
		{
			name: "revoke failure still signs out",
			api: &fakeAPI{
				profile:   profile(badgr.UserEmail{Email: "other@y.com"}),
				tokens:    []badgr.AccessToken{{EntityID: "t1"}},
				revokeErr: map[string]error{"t1": errors.New("boom")},
			},
			teamsEmail:   "a@x.com",
			wantState:    StateSignedOut,
			wantRevokes:  1,
			wantSignOuts: 1,
		},
		{
			name: "partial revoke failure counts the rest",
			api: &fakeAPI{
				profile:   profile(badgr.UserEmail{Email: "other@y.com"}),
				tokens:    []badgr.AccessToken{{EntityID: "t1"}, {EntityID: "t2"}, {EntityID: "t3"}},
				revokeErr: map[string]error{"t1": errors.New("boom")},
			},
			teamsEmail:   "a@x.com",
			wantState:    StateSignedOut,
			wantRevoked:  2,
			wantRevokes:  1,
			wantSignOuts: 1,
		},
		{
			name: "list failure still signs out",
			api: &fakeAPI{
				profile: profile(badgr.UserEmail{Email: "other@y.com"}),
				listErr: errors.New("boom"),
			},
			teamsEmail:   "a@x.com",
			wantState:    StateSignedOut,
			wantSignOuts: 1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			users := &fakeSignOut{}
			auditor := audit.NewInMemoryAuditor()
			org := NewOrganization(tt.api, staticOwner{}, "Contoso")
			r := NewReconciler(tt.api, org, users, auditor)

			res, err := r.Reconcile(context.Background(), "u1", tt.teamsEmail, "user-token")
			require.NoError(t, err)
			assert.Equal(t, tt.wantState, res.State)
			assert.Equal(t, tt.wantRevoked, res.Revoked)
			assert.Equal(t, tt.wantRevokes, tt.api.revokeCalls)
			assert.Len(t, users.calls, tt.wantSignOuts)

			entries, _ := auditor.Find(func(e core.AuditEntry) bool { return e.Action == "identity.mismatch" }, 10)
			if tt.wantState == StateSignedOut {
				require.Len(t, entries, 1)
				assert.Equal(t, "u1", entries[0].Caller)
				assert.Equal(t, tt.wantRevoked, entries[0].Metadata["revoked"])
			} else {
				assert.Empty(t, entries)
			}
		})
	}
}

func TestReconcile_UnauthorizedShortCircuits(t *testing.T) {
	api := &fakeAPI{profileErr: &badgr.Error{Kind: badgr.KindUnauthorized, StatusCode: 401}}
	users := &fakeSignOut{}
	r := NewReconciler(api, NewOrganization(api, staticOwner{}, "Contoso"), users, nil)

	_, err := r.Reconcile(context.Background(), "u1", "a@x.com", "expired")
	assert.ErrorIs(t, err, badgr.ErrUnauthorized)
	assert.Zero(t, api.revokeCalls)
	assert.Empty(t, users.calls)
}

func TestReconcile_NotSignedIn(t *testing.T) {
	api := &fakeAPI{}
	r := NewReconciler(api, NewOrganization(api, staticOwner{}, "Contoso"), &fakeSignOut{}, nil)

	_, err := r.Reconcile(context.Background(), "u1", "a@x.com", "")
	assert.ErrorIs(t, err, ErrNotSignedIn)
	assert.Zero(t, api.profileCalls)
}

func TestEnsureRole(t *testing.T) {
	issuers := []badgr.Issuer{{EntityID: "other", Name: "Fabrikam"}, {EntityID: "iss1", Name: "Contoso"}}

	t.Run("existing staff is not provisioned", func(t *testing.T) {
		api := &fakeAPI{
			issuers: issuers,
			issuer: &badgr.Issuer{EntityID: "iss1", Staff: []badgr.StaffEntry{
				{Role: "owner", UserProfile: profile(badgr.UserEmail{Email: "A@x.com"})},
			}},
		}
		r := NewReconciler(api, NewOrganization(api, staticOwner{}, "Contoso"), &fakeSignOut{}, nil)

		role, err := r.EnsureRole(context.Background(), "a@x.com", "user-token")
		require.NoError(t, err)
		assert.Equal(t, "owner", role)
		assert.Empty(t, api.addStaff)
		assert.Zero(t, api.profileCalls)
	})

	t.Run("provisions with primary email", func(t *testing.T) {
		api := &fakeAPI{
			issuers: issuers,
			profile: profile(badgr.UserEmail{Email: "a@x.com"}, badgr.UserEmail{Email: "p@x.com", Primary: true}),
		}
		auditor := audit.NewInMemoryAuditor()
		r := NewReconciler(api, NewOrganization(api, staticOwner{}, "Contoso"), &fakeSignOut{}, auditor)

		role, err := r.EnsureRole(context.Background(), "a@x.com", "user-token")
		require.NoError(t, err)
		assert.Equal(t, badgr.RoleStaff, role)
		assert.Equal(t, []string{"p@x.com:staff"}, api.addStaff)

		entries, _ := auditor.GetRecent(10)
		require.Len(t, entries, 1)
		assert.True(t, entries[0].Success)
	})

	t.Run("no primary email", func(t *testing.T) {
		api := &fakeAPI{
			issuers: issuers,
			profile: profile(badgr.UserEmail{Email: "a@x.com"}),
		}
		r := NewReconciler(api, NewOrganization(api, staticOwner{}, "Contoso"), &fakeSignOut{}, nil)

		_, err := r.EnsureRole(context.Background(), "a@x.com", "user-token")
		assert.ErrorIs(t, err, badgr.ErrConfiguration)
		assert.Empty(t, api.addStaff)
	})

	t.Run("unauthorized profile", func(t *testing.T) {
		api := &fakeAPI{
			issuers:    issuers,
			profileErr: &badgr.Error{Kind: badgr.KindUnauthorized},
		}
		r := NewReconciler(api, NewOrganization(api, staticOwner{}, "Contoso"), &fakeSignOut{}, nil)

		_, err := r.EnsureRole(context.Background(), "a@x.com", "user-token")
		assert.ErrorIs(t, err, badgr.ErrUnauthorized)
		assert.Empty(t, api.addStaff)
	})
}

func TestResolveOrgIdentity(t *testing.T) {
	t.Run("memoizes success", func(t *testing.T) {
		api := &fakeAPI{issuers: []badgr.Issuer{{EntityID: "iss1", Name: "Contoso"}, {EntityID: "iss2", Name: "Contoso"}}}
		org := NewOrganization(api, staticOwner{}, "Contoso")

		for range 3 {
			id, err := org.ResolveOrgIdentity(context.Background())
			require.NoError(t, err)
			assert.Equal(t, "iss1", id, "first match wins")
		}
		assert.Equal(t, 1, api.listIssuerCalls)
	})

	t.Run("concurrent callers share one lookup", func(t *testing.T) {
		api := &fakeAPI{issuers: []badgr.Issuer{{EntityID: "iss1", Name: "Contoso"}}}
		org := NewOrganization(api, staticOwner{}, "Contoso")

		var wg sync.WaitGroup
		for range 8 {
			wg.Add(1)
			go func() {
				defer wg.Done()
				id, err := org.ResolveOrgIdentity(context.Background())
				assert.NoError(t, err)
				assert.Equal(t, "iss1", id)
			}()
		}
		wg.Wait()
		assert.Equal(t, 1, api.listIssuerCalls)
	})

	t.Run("failure is not memoized", func(t *testing.T) {
		api := &fakeAPI{issuersErr: errors.New("unavailable")}
		org := NewOrganization(api, staticOwner{}, "Contoso")

		_, err := org.ResolveOrgIdentity(context.Background())
		require.Error(t, err)

		api.issuersErr = nil
		api.issuers = []badgr.Issuer{{EntityID: "iss1", Name: "Contoso"}}
		id, err := org.ResolveOrgIdentity(context.Background())
		require.NoError(t, err)
		assert.Equal(t, "iss1", id)
		assert.Equal(t, 2, api.listIssuerCalls)
	})

	t.Run("unknown issuer", func(t *testing.T) {
		api := &fakeAPI{issuers: []badgr.Issuer{{EntityID: "iss1", Name: "contoso"}}}
		org := NewOrganization(api, staticOwner{}, "Contoso")

		_, err := org.ResolveOrgIdentity(context.Background())
		assert.ErrorIs(t, err, badgr.ErrNotFound)
	})

	t.Run("rejected owner token is a configuration error", func(t *testing.T) {
		api := &fakeAPI{issuersErr: badgr.Classify("issuers.list", http.StatusUnauthorized, nil)}
		owner := &invalidatingOwner{}
		org := NewOrganization(api, owner, "Contoso")

		_, err := org.ResolveOrgIdentity(context.Background())
		assert.ErrorIs(t, err, badgr.ErrConfiguration)
		assert.NotErrorIs(t, err, badgr.ErrUnauthorized)
		assert.Equal(t, 1, owner.invalidated)

		_, err = org.GetUserRole(context.Background(), "a@x.com")
		assert.ErrorIs(t, err, badgr.ErrConfiguration)
	})

	t.Run("owner credential error", func(t *testing.T) {
		api := &fakeAPI{}
		org := NewOrganization(api, staticOwner{err: badgr.ConfigurationError("owner.token", "empty")}, "Contoso")

		_, err := org.ResolveOrgIdentity(context.Background())
		assert.ErrorIs(t, err, badgr.ErrConfiguration)
		assert.Zero(t, api.listIssuerCalls)
	})
}

func TestReconcile_RevokesNewestTokenLast(t *testing.T) {
	now := time.Now()
	api := &fakeAPI{
		profile: profile(badgr.UserEmail{Email: "other@y.com"}),
		tokens: []badgr.AccessToken{
			{EntityID: "current", Created: now},
			{EntityID: "old", Created: now.Add(-48 * time.Hour)},
			{EntityID: "older", Created: now.Add(-72 * time.Hour)},
		},
	}
	r := NewReconciler(api, NewOrganization(api, staticOwner{}, "Contoso"), &fakeSignOut{}, nil)

	res, err := r.Reconcile(context.Background(), "u1", "a@x.com", "user-token")
	require.NoError(t, err)
	assert.Equal(t, 3, res.Revoked)
	assert.Equal(t, []string{"older", "old", "current"}, api.revoked)
}
