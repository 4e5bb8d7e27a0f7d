package botframework

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"golang.org/x/oauth2/clientcredentials"

	"github.com/darmiel/badgebot/internal/config"
	"github.com/darmiel/badgebot/internal/core"
)

var _ core.RosterSource = (*Connector)(nil)

// NewAppClient returns an http.Client that authenticates as the bot application.
// Without an app password (local emulator) the default client is returned.
func NewAppClient(ctx context.Context, cfg config.BotConfig) *http.Client {
	if cfg.AppPassword == "" {
		return http.DefaultClient
	}
	cc := &clientcredentials.Config{
		ClientID:     cfg.AppID,
		ClientSecret: cfg.AppPassword,
		TokenURL:     cfg.AppTokenURL,
		Scopes:       []string{cfg.AppTokenScope},
	}
	return cc.Client(context.WithoutCancel(ctx))
}

// Connector calls the Bot Connector REST API of a channel service URL.
type Connector struct {
	httpClient *http.Client
}

func NewConnector(httpClient *http.Client) *Connector {
	return &Connector{httpClient: httpClient}
}

type pagedMembersResult struct {
	ContinuationToken string `json:"continuationToken"`
	Members           []struct {
		ID                string `json:"id"`
		Name              string `json:"name"`
		AADObjectID       string `json:"aadObjectId"`
		Email             string `json:"email"`
		UserPrincipalName string `json:"userPrincipalName"`
	} `json:"members"`
}

// GetPagedMembers returns one page of the members of a team.
func (c *Connector) GetPagedMembers(
	ctx context.Context,
	serviceURL, teamID string,
	pageSize int,
	continuationToken string,
) (*core.RosterPage, error) {
	q := url.Values{}
	if pageSize > 0 {
		q.Set("pageSize", strconv.Itoa(pageSize))
	}
	if continuationToken != "" {
		q.Set("continuationToken", continuationToken)
	}
	u := fmt.Sprintf("%s/v3/conversations/%s/pagedmembers?%s",
		strings.TrimRight(serviceURL, "/"), url.PathEscape(teamID), q.Encode())

	var result pagedMembersResult
	if err := c.do(ctx, http.MethodGet, u, nil, &result); err != nil {
		return nil, fmt.Errorf("getting paged members: %w", err)
	}

	page := &core.RosterPage{
		ContinuationToken: result.ContinuationToken,
		Members:           make([]core.RosterEntry, 0, len(result.Members)),
	}
	for _, m := range result.Members {
		email := m.Email
		if email == "" {
			email = m.UserPrincipalName
		}
		page.Members = append(page.Members, core.RosterEntry{
			AADObjectID: m.AADObjectID,
			ID:          m.ID,
			Email:       email,
			Name:        m.Name,
		})
	}
	return page, nil
}

// SendActivity posts activity to its conversation.
// If activity.ReplyToID is set, it is sent as a reply to that activity.
func (c *Connector) SendActivity(ctx context.Context, activity *Activity) (*ResourceResponse, error) {
	if activity.Conversation == nil || activity.Conversation.ID == "" {
		return nil, fmt.Errorf("activity has no conversation")
	}
	base := fmt.Sprintf("%s/v3/conversations/%s/activities",
		strings.TrimRight(activity.ServiceURL, "/"), url.PathEscape(activity.Conversation.ID))
	if activity.ReplyToID != "" {
		base += "/" + url.PathEscape(activity.ReplyToID)
	}

	var resp ResourceResponse
	if err := c.do(ctx, http.MethodPost, base, activity, &resp); err != nil {
		return nil, fmt.Errorf("sending activity: %w", err)
	}
	return &resp, nil
}

func (c *Connector) do(ctx context.Context, method, u string, payload, out any) error {
	return doJSON(ctx, c.httpClient, method, u, payload, out)
}

func doJSON(ctx context.Context, client *http.Client, method, u string, payload, out any) error {
	var body io.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("marshalling payload: %w", err)
		}
		body = bytes.NewReader(data)
	}
	req, err := http.NewRequestWithContext(ctx, method, u, body)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")

	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("performing request: %w", err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		data, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return &StatusError{StatusCode: resp.StatusCode, Body: string(data)}
	}
	if out == nil {
		return nil
	}
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("reading response: %w", err)
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("decoding response: %w", err)
	}
	return nil
}

// StatusError is returned for non-success responses of the Bot Framework services.
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("unexpected status code %d: %s", e.StatusCode, e.Body)
}
