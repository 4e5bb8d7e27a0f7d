package client

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/darmiel/badgebot/internal/api"
	"github.com/darmiel/badgebot/internal/badgr"
	"github.com/darmiel/badgebot/internal/core"
)

func TestURLBuilder(t *testing.T) {
	c := New("https://bot.example.com/")
	u := c.url().setPath(api.ListAuditsRoute).
		addQueryParam("limit", uint(5)).
		addQueryParam("action", "badge.award").
		build()
	assert.Equal(t, "https://bot.example.com/api/admin/audits?action=badge.award&limit=5", u)

	// builders are values, branches do not share query state
	base := c.url().setPath("/x")
	a := base.addQueryParam("a", 1)
	assert.Equal(t, "https://bot.example.com/x", base.build())
	assert.Equal(t, "https://bot.example.com/x?a=1", a.build())
}

func TestListAudits(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, api.ListAuditsRoute, r.URL.Path)
		assert.Equal(t, "Bearer admin-token", r.Header.Get("Authorization"))
		assert.Equal(t, "corr-1", r.URL.Query().Get("correlation_id"))
		assert.Equal(t, "1", r.URL.Query().Get("limit"))

		w.Header().Set("X-Correlation-ID", "resp-corr")
		_ = json.NewEncoder(w).Encode([]core.AuditEntry{{ID: "corr-1", Action: "badge.award", Success: true}})
	}))
	defer srv.Close()

	cli := New(srv.URL, WithAuthToken("admin-token"))
	entries, correlation, err := cli.ListAudits(context.Background(), ListAuditsOpts{
		Limit:         1,
		CorrelationID: "corr-1",
	})
	require.NoError(t, err)
	assert.Equal(t, "resp-corr", correlation)
	require.Len(t, entries, 1)
	assert.Equal(t, "badge.award", entries[0].Action)
}

func TestErrorResponses(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Header().Set("X-Correlation-ID", "c-1")
		switch r.URL.Path {
		case api.EarnedBadgesRoute:
			w.WriteHeader(http.StatusUnauthorized)
			_, _ = w.Write([]byte(`{"code":"signinRequired","message":"Badgr access token for user is found empty.","correlation_id":"c-1"}`))
		case api.AllBadgesRoute:
			w.WriteHeader(http.StatusBadRequest)
			_, _ = w.Write([]byte(`{"code":"badRequest","message":"Failed to fetch or add user to role.","correlation_id":"c-1"}`))
		default:
			w.WriteHeader(http.StatusBadGateway)
			_, _ = w.Write([]byte(`upstream down`))
		}
	}))
	defer srv.Close()

	cli := New(srv.URL)
	ctx := context.Background()

	_, correlation, err := cli.EarnedBadges(ctx)
	assert.ErrorIs(t, err, ErrUnauthorized)
	assert.Equal(t, "c-1", correlation)

	_, _, err = cli.AllBadges(ctx, "a@example.com")
	var apiErr APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusBadRequest, apiErr.StatusCode)
	assert.Equal(t, "badRequest", apiErr.Code)
	assert.Equal(t, "Failed to fetch or add user to role.", apiErr.Message)

	_, _, err = cli.Info(ctx)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "upstream down")
}

func TestAwardBadge(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))

		var detail badgr.AssertionDetail
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&detail))
		assert.Equal(t, "bc-1", detail.BadgeClassID)
		assert.Len(t, detail.Assertions, 2)
		_, _ = w.Write([]byte("true"))
	}))
	defer srv.Close()

	_, err := New(srv.URL, WithAuthToken("t")).AwardBadge(context.Background(), &badgr.AssertionDetail{
		IssuerID:     "iss-1",
		BadgeClassID: "bc-1",
		Assertions: []badgr.Assertion{
			{RecipientIdentifier: "a@example.com"},
			{RecipientIdentifier: "b@example.com"},
		},
	})
	assert.NoError(t, err)
}

func TestTasks(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.Method == http.MethodPost && r.URL.Path == "/api/admin/tasks/roster-flush/trigger":
			w.WriteHeader(http.StatusAccepted)
			_, _ = w.Write([]byte(`{"status":"triggered"}`))
		case r.URL.Path == "/api/admin/tasks/roster-flush/logs":
			_, _ = w.Write([]byte(`[{"level":"info","message":"flushed 2 cached rosters"}]`))
		case r.URL.Path == api.ListTasksRoute:
			_, _ = w.Write([]byte(`[{"name":"roster-flush","last_result":"success"}]`))
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	cli := New(srv.URL)
	ctx := context.Background()

	_, err := cli.TriggerTask(ctx, "roster-flush")
	require.NoError(t, err)

	logs, _, err := cli.GetTaskLogs(ctx, "roster-flush")
	require.NoError(t, err)
	require.Len(t, logs, 1)
	assert.Equal(t, "flushed 2 cached rosters", logs[0].Message)

	list, _, err := cli.ListTasks(ctx)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "success", list[0].LastResult)
}
