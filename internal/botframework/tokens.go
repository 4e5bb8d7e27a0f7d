package botframework

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/darmiel/badgebot/internal/core"
)

const ChannelTeams = "msteams"

var _ core.TokenVault = (*TokenService)(nil)

// TokenService stores user OAuth tokens on behalf of the bot.
type TokenService struct {
	baseURL    string
	appID      string
	channelID  string
	httpClient *http.Client
}

func NewTokenService(baseURL, appID string, httpClient *http.Client) *TokenService {
	return &TokenService{
		baseURL:    strings.TrimRight(baseURL, "/"),
		appID:      appID,
		channelID:  ChannelTeams,
		httpClient: httpClient,
	}
}

type tokenResponse struct {
	ChannelID      string `json:"channelId"`
	ConnectionName string `json:"connectionName"`
	Token          string `json:"token"`
	Expiration     string `json:"expiration"`
}

// GetToken returns ("", nil) if the service holds no token for the user.
func (t *TokenService) GetToken(ctx context.Context, userID, connectionName string) (string, error) {
	q := url.Values{}
	q.Set("userId", userID)
	q.Set("connectionName", connectionName)
	q.Set("channelId", t.channelID)

	var resp tokenResponse
	err := doJSON(ctx, t.httpClient, http.MethodGet, t.baseURL+"/api/usertoken/GetToken?"+q.Encode(), nil, &resp)
	if err != nil {
		var se *StatusError
		if errors.As(err, &se) && se.StatusCode == http.StatusNotFound {
			return "", nil
		}
		return "", fmt.Errorf("getting user token: %w", err)
	}
	return resp.Token, nil
}

func (t *TokenService) SignOut(ctx context.Context, userID, connectionName string) error {
	q := url.Values{}
	q.Set("userId", userID)
	q.Set("connectionName", connectionName)
	q.Set("channelId", t.channelID)

	if err := doJSON(ctx, t.httpClient, http.MethodDelete, t.baseURL+"/api/usertoken/SignOut?"+q.Encode(), nil, nil); err != nil {
		return fmt.Errorf("signing out user: %w", err)
	}
	return nil
}

type signInState struct {
	ConnectionName string                `json:"ConnectionName"`
	Conversation   conversationReference `json:"Conversation"`
	MsAppID        string                `json:"MsAppId"`
}

type conversationReference struct {
	ActivityID   string               `json:"activityId,omitempty"`
	User         *ChannelAccount      `json:"user,omitempty"`
	Bot          *ChannelAccount      `json:"bot,omitempty"`
	Conversation *ConversationAccount `json:"conversation,omitempty"`
	ChannelID    string               `json:"channelId"`
	ServiceURL   string               `json:"serviceUrl"`
}

// GetSignInLink returns the URL the user opens to sign in to connectionName.
func (t *TokenService) GetSignInLink(ctx context.Context, activity *Activity, connectionName string) (string, error) {
	state := signInState{
		ConnectionName: connectionName,
		MsAppID:        t.appID,
		Conversation: conversationReference{
			ActivityID:   activity.ID,
			User:         activity.From,
			Bot:          activity.Recipient,
			Conversation: activity.Conversation,
			ChannelID:    activity.ChannelID,
			ServiceURL:   activity.ServiceURL,
		},
	}
	data, err := json.Marshal(state)
	if err != nil {
		return "", fmt.Errorf("marshalling sign-in state: %w", err)
	}

	q := url.Values{}
	q.Set("state", base64.StdEncoding.EncodeToString(data))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, t.baseURL+"/api/botsignin/GetSignInUrl?"+q.Encode(), nil)
	if err != nil {
		return "", fmt.Errorf("creating request: %w", err)
	}
	resp, err := t.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("performing request: %w", err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("reading response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return "", &StatusError{StatusCode: resp.StatusCode, Body: string(body)}
	}
	return strings.Trim(strings.TrimSpace(string(body)), `"`), nil
}
