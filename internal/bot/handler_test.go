package bot

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/darmiel/badgebot/internal/badgr"
	"github.com/darmiel/badgebot/internal/botframework"
	"github.com/darmiel/badgebot/internal/core"
	"github.com/darmiel/badgebot/internal/reconcile"
	"github.com/darmiel/badgebot/internal/state"
)

const (
	testTenant  = "tenant-1"
	testTeam    = "T1"
	testService = "https://smba.example.com/"
)

var testRoster = []core.RosterEntry{
	{AADObjectID: "aad-a", ID: "29:a", Email: "a@x.com", Name: "Alice"},
	{AADObjectID: "aad-b", ID: "29:b", Email: "b@x.com", Name: "Bob"},
}

type fakeSender struct {
	mu   sync.Mutex
	sent []*botframework.Activity
	err  error
}

func (f *fakeSender) SendActivity(_ context.Context, a *botframework.Activity) (*botframework.ResourceResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	f.sent = append(f.sent, a)
	return &botframework.ResourceResponse{ID: fmt.Sprintf("sent-%d", len(f.sent))}, nil
}

type fakeSignIn struct{}

func (fakeSignIn) GetSignInLink(context.Context, *botframework.Activity, string) (string, error) {
	return "https://signin.example.com", nil
}

type fakeUsers struct {
	token     string
	signedOut []string
}

func (f *fakeUsers) GetUserToken(context.Context, string) (string, error) {
	return f.token, nil
}

func (f *fakeUsers) SignOut(_ context.Context, userID string) error {
	f.signedOut = append(f.signedOut, userID)
	return nil
}

type fakeRoster struct {
	entries []core.RosterEntry
	err     error
}

func (f fakeRoster) GetRoster(context.Context, string, string) ([]core.RosterEntry, error) {
	return f.entries, f.err
}

type fakeReconciler struct {
	result reconcile.Result
	err    error
	email  string
}

func (f *fakeReconciler) Reconcile(_ context.Context, _, teamsEmail, _ string) (reconcile.Result, error) {
	f.email = teamsEmail
	return f.result, f.err
}

type staticOrg string

func (o staticOrg) ResolveOrgIdentity(context.Context) (string, error) {
	return string(o), nil
}

type fakeMinter struct{}

func (fakeMinter) Mint(c core.Caller) (string, time.Time, error) {
	return "jwt-for-" + c.FromID, time.Now().Add(time.Hour), nil
}

type fixture struct {
	handler    *Handler
	sender     *fakeSender
	users      *fakeUsers
	reconciler *fakeReconciler
	convs      *state.Conversations
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		sender:     &fakeSender{},
		users:      &fakeUsers{token: "user-token"},
		reconciler: &fakeReconciler{result: reconcile.Result{State: reconcile.StateValidated}},
		convs:      state.NewConversations(state.NewInMemoryStore()),
	}
	f.handler = NewHandler(Options{
		AppBaseURL:     "https://badges.example.com",
		TenantID:       testTenant,
		ConnectionName: "badgr",
		BadgrBaseURL:   "https://api.badgr.io",
	}, Deps{
		Sender:        f.sender,
		SignIn:        fakeSignIn{},
		Users:         f.users,
		Roster:        fakeRoster{entries: testRoster},
		Reconciler:    f.reconciler,
		Org:           staticOrg("entity-1"),
		Tokens:        fakeMinter{},
		Conversations: f.convs,
	})
	return f
}

func invoke(t *testing.T, name, teamID string, value any) *botframework.Activity {
	t.Helper()
	raw, err := json.Marshal(value)
	require.NoError(t, err)
	a := &botframework.Activity{
		Type:         botframework.ActivityInvoke,
		Name:         name,
		ID:           "activity-1",
		ServiceURL:   testService,
		From:         &botframework.ChannelAccount{ID: "29:b", AADObjectID: "aad-b"},
		Recipient:    &botframework.ChannelAccount{ID: "28:bot"},
		Conversation: &botframework.ConversationAccount{ID: "conv-1", TenantID: testTenant},
		Value:        raw,
	}
	if teamID != "" {
		a.ChannelData = json.RawMessage(`{"team":{"id":"` + teamID + `"}}`)
	}
	return a
}

func actionBody(t *testing.T, resp *botframework.InvokeResponse) *botframework.MessagingExtensionActionResponse {
	t.Helper()
	require.NotNil(t, resp)
	require.Equal(t, http.StatusOK, resp.Status)
	body, ok := resp.Body.(*botframework.MessagingExtensionActionResponse)
	require.True(t, ok, "unexpected body %T", resp.Body)
	return body
}

func TestBuildMention(t *testing.T) {
	s := NewStrings(nil)
	roster := []core.RosterEntry{
		{ID: "29:a", Email: "a@x.com", Name: "Alice"},
		{ID: "29:b", Email: "b@x.com", Name: "Bob"},
	}

	m, ok := BuildMention(s, roster, []string{"a@x.com"}, "b@x.com")
	require.True(t, ok)
	require.Len(t, m.Entities, 2)

	assert.Equal(t, "29:a", m.Entities[0].Mentioned.ID)
	assert.Equal(t, "<at>Alice</at>", m.Entities[0].Text)
	assert.Equal(t, "29:b", m.Entities[1].Mentioned.ID)
	assert.Equal(t, "<at>Alice</at>, got a badge from <at>Bob</at>", m.Text)

	recipientMentions := 0
	for _, e := range m.Entities[:len(m.Entities)-1] {
		assert.Equal(t, "mention", e.Type)
		recipientMentions++
	}
	assert.Equal(t, 1, recipientMentions)
}

func TestBuildMention_Edges(t *testing.T) {
	s := NewStrings(nil)

	_, ok := BuildMention(s, testRoster, []string{"a@x.com"}, "nobody@x.com")
	assert.False(t, ok, "awarder outside the roster")

	m, ok := BuildMention(s, testRoster, []string{"unknown@x.com"}, "b@x.com")
	require.True(t, ok)
	assert.Len(t, m.Entities, 1, "only the awarder is mentioned")

	roster := []core.RosterEntry{{ID: "29:c", Email: "c@x.com", Name: "Tom & <Jerry>"}}
	m, ok = BuildMention(s, roster, nil, "c@x.com")
	require.True(t, ok)
	assert.Equal(t, "<at>Tom &amp; &lt;Jerry&gt;</at>", m.Entities[0].Text)
	assert.Equal(t, "Tom & <Jerry>", m.Entities[0].Mentioned.Name)
}

func TestStrings_Overrides(t *testing.T) {
	s := NewStrings(map[string]string{KeyMentionText: "{awarder} -> {recipients}", "award": ""})
	assert.Equal(t, "B -> A,", s.mentionText("A,", "B"))
	assert.Equal(t, "Award", s.Get("award"))
	assert.Equal(t, "missing", s.Get("missing"))

	all := s.All()
	all["award"] = "changed"
	assert.Equal(t, "Award", s.Get("award"))
}

func TestHandle_InvalidTenant(t *testing.T) {
	f := newFixture(t)
	a := invoke(t, botframework.InvokeFetchTask, testTeam, map[string]any{})
	a.Conversation.TenantID = "other"

	resp := f.handler.Handle(context.Background(), a)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusOK, resp.Status)
	require.Len(t, f.sender.sent, 1)
	assert.Equal(t, f.handler.Strings.Get(KeyInvalidTenant), f.sender.sent[0].Text)
	assert.Empty(t, f.reconciler.email, "no processing for foreign tenants")
}

func TestHandle_WelcomeOnce(t *testing.T) {
	f := newFixture(t)
	a := &botframework.Activity{
		Type:         botframework.ActivityConversationUpdate,
		ServiceURL:   testService,
		Recipient:    &botframework.ChannelAccount{ID: "28:bot"},
		From:         &botframework.ChannelAccount{ID: "29:b"},
		Conversation: &botframework.ConversationAccount{ID: "conv-1", TenantID: testTenant},
		MembersAdded: []botframework.ChannelAccount{{ID: "28:bot"}},
	}

	assert.Nil(t, f.handler.Handle(context.Background(), a))
	assert.Nil(t, f.handler.Handle(context.Background(), a))

	require.Len(t, f.sender.sent, 1)
	require.Len(t, f.sender.sent[0].Attachments, 1)
	assert.Equal(t, botframework.ContentTypeAdaptiveCard, f.sender.sent[0].Attachments[0].ContentType)

	conv, err := f.convs.Load(context.Background(), "conv-1")
	require.NoError(t, err)
	assert.True(t, conv.WelcomeSent)

	other := *a
	other.MembersAdded = []botframework.ChannelAccount{{ID: "29:someone"}}
	other.Conversation = &botframework.ConversationAccount{ID: "conv-2", TenantID: testTenant}
	f.handler.Handle(context.Background(), &other)
	assert.Len(t, f.sender.sent, 1, "no welcome if the bot was not added")
}

func TestHandle_FetchTask(t *testing.T) {
	fetch := map[string]any{"commandId": "award", "commandContext": "compose", "context": map[string]any{"theme": "dark"}}

	t.Run("not signed in", func(t *testing.T) {
		f := newFixture(t)
		f.users.token = ""
		body := actionBody(t, f.handler.Handle(context.Background(), invoke(t, botframework.InvokeFetchTask, testTeam, fetch)))
		require.NotNil(t, body.ComposeExtension)
		assert.Equal(t, "auth", body.ComposeExtension.Type)
		action := body.ComposeExtension.SuggestedActions.Actions[0]
		assert.Equal(t, "openUrl", action.Type)
		assert.Equal(t, "https://signin.example.com", action.Value)
		assert.Equal(t, f.handler.Strings.Get(KeySignInButtonText), action.Title)
	})

	t.Run("outside of a team", func(t *testing.T) {
		f := newFixture(t)
		body := actionBody(t, f.handler.Handle(context.Background(), invoke(t, botframework.InvokeFetchTask, "", fetch)))
		require.NotNil(t, body.Task)
		assert.Equal(t, "small", body.Task.Value.Height)
		assert.NotNil(t, body.Task.Value.Card)
	})

	t.Run("validated", func(t *testing.T) {
		f := newFixture(t)
		body := actionBody(t, f.handler.Handle(context.Background(), invoke(t, botframework.InvokeFetchTask, testTeam, fetch)))
		assert.Equal(t, "b@x.com", f.reconciler.email, "email resolved by aad object id")

		require.NotNil(t, body.Task)
		info := body.Task.Value
		assert.Equal(t, 460, info.Height)
		assert.Equal(t, 600, info.Width)

		u, err := url.Parse(info.URL)
		require.NoError(t, err)
		assert.Equal(t, "/AllBadges", u.Path)
		q := u.Query()
		assert.Equal(t, "jwt-for-29:b", q.Get("token"))
		assert.Equal(t, "entity-1", q.Get("entityId"))
		assert.Equal(t, "dark", q.Get("theme"))
		assert.Equal(t, "https://badgr.io", q.Get("badgrUrl"))
		assert.Equal(t, "compose", q.Get("commandContext"))
	})

	t.Run("mismatching account", func(t *testing.T) {
		f := newFixture(t)
		f.reconciler.result = reconcile.Result{State: reconcile.StateSignedOut, Revoked: 2}
		body := actionBody(t, f.handler.Handle(context.Background(), invoke(t, botframework.InvokeFetchTask, testTeam, fetch)))
		require.NotNil(t, body.ComposeExtension)
		assert.Equal(t, f.handler.Strings.Get(KeyInvalidAccountText), body.ComposeExtension.SuggestedActions.Actions[0].Title)
	})

	t.Run("expired token signs out", func(t *testing.T) {
		f := newFixture(t)
		f.reconciler.err = fmt.Errorf("profile: %w", badgr.ErrUnauthorized)
		body := actionBody(t, f.handler.Handle(context.Background(), invoke(t, botframework.InvokeFetchTask, testTeam, fetch)))
		require.NotNil(t, body.ComposeExtension)
		assert.Equal(t, []string{"29:b"}, f.users.signedOut)
	})
}

func TestHandle_SubmitAction(t *testing.T) {
	for _, commandContext := range []string{"compose", "commandBox"} {
		t.Run(commandContext, func(t *testing.T) {
			f := newFixture(t)
			submit := map[string]any{
				"commandId": "award",
				"data": AwardData{
					AwardedBy:       "b@x.com",
					BadgeName:       "Team Player",
					ImageURI:        "https://img.example.com/b.png",
					Narrative:       "Thanks!",
					AwardRecipients: []string{"a@x.com"},
					CommandContext:  commandContext,
				},
			}

			resp := f.handler.Handle(context.Background(), invoke(t, botframework.InvokeSubmitAction, testTeam, submit))
			require.NotNil(t, resp)
			assert.Equal(t, http.StatusOK, resp.Status)
			assert.Nil(t, resp.Body)

			require.Len(t, f.sender.sent, 2)
			cardMsg, mentionMsg := f.sender.sent[0], f.sender.sent[1]
			require.Len(t, cardMsg.Attachments, 1)

			content, err := json.Marshal(cardMsg.Attachments[0].Content)
			require.NoError(t, err)
			assert.Contains(t, string(content), "Alice")
			assert.Contains(t, string(content), "Bob awarded this badge to")

			assert.Len(t, mentionMsg.Entities, 2)
			assert.True(t, strings.HasSuffix(mentionMsg.Text, "got a badge from <at>Bob</at>"))
			if commandContext == CommandContextCompose {
				assert.Equal(t, "conv-1;messageid=sent-1", mentionMsg.Conversation.ID)
				assert.Empty(t, mentionMsg.ReplyToID)
			} else {
				assert.Equal(t, "conv-1", mentionMsg.Conversation.ID)
			}

			conv, err := f.convs.Load(context.Background(), "conv-1")
			require.NoError(t, err)
			assert.Equal(t, 1, conv.Awards)
			assert.Equal(t, "sent-1", conv.LastAwardActivityID)
		})
	}
}

func TestHandle_TurnErrorResetsState(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	require.NoError(t, f.convs.Save(ctx, "conv-1", &state.Conversation{WelcomeSent: true, Awards: 3}))

	f.handler.Roster = fakeRoster{err: errors.New("connector down")}
	resp := f.handler.Handle(ctx, invoke(t, botframework.InvokeFetchTask, testTeam, map[string]any{}))
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusInternalServerError, resp.Status)

	require.Len(t, f.sender.sent, 1)
	assert.Equal(t, f.handler.Strings.Get(KeyExceptionResponse), f.sender.sent[0].Text)

	conv, err := f.convs.Load(ctx, "conv-1")
	require.NoError(t, err)
	assert.Equal(t, state.Conversation{}, *conv)
}

func TestHandle_UnsupportedInvoke(t *testing.T) {
	f := newFixture(t)
	resp := f.handler.Handle(context.Background(), invoke(t, "composeExtension/query", testTeam, map[string]any{}))
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusNotImplemented, resp.Status)
}
