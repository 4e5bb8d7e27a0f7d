package botframework

import (
	"encoding/json"
	"fmt"
)

// Activity types and invoke names handled by the bot.
const (
	ActivityMessage            = "message"
	ActivityConversationUpdate = "conversationUpdate"
	ActivityInvoke             = "invoke"
	ActivityInvokeResponse     = "invokeResponse"

	InvokeFetchTask    = "composeExtension/fetchTask"
	InvokeSubmitAction = "composeExtension/submitAction"

	ContentTypeAdaptiveCard = "application/vnd.microsoft.card.adaptive"
)

// Activity is the subset of the Bot Framework activity schema used by the bot.
type Activity struct {
	Type         string               `json:"type"`
	ID           string               `json:"id,omitempty"`
	ServiceURL   string               `json:"serviceUrl,omitempty"`
	ChannelID    string               `json:"channelId,omitempty"`
	From         *ChannelAccount      `json:"from,omitempty"`
	Recipient    *ChannelAccount      `json:"recipient,omitempty"`
	Conversation *ConversationAccount `json:"conversation,omitempty"`
	ReplyToID    string               `json:"replyToId,omitempty"`
	Name         string               `json:"name,omitempty"`
	Locale       string               `json:"locale,omitempty"`

	Text        string `json:"text,omitempty"`
	TextFormat  string `json:"textFormat,omitempty"`
	Summary     string `json:"summary,omitempty"`
	InputHint   string `json:"inputHint,omitempty"`

	MembersAdded []ChannelAccount `json:"membersAdded,omitempty"`
	Attachments  []Attachment     `json:"attachments,omitempty"`
	Entities     []Entity         `json:"entities,omitempty"`

	ChannelData json.RawMessage `json:"channelData,omitempty"`
	Value       json.RawMessage `json:"value,omitempty"`
}

type ChannelAccount struct {
	ID          string `json:"id"`
	Name        string `json:"name,omitempty"`
	AADObjectID string `json:"aadObjectId,omitempty"`
	Role        string `json:"role,omitempty"`
}

type ConversationAccount struct {
	ID               string `json:"id"`
	Name             string `json:"name,omitempty"`
	ConversationType string `json:"conversationType,omitempty"`
	TenantID         string `json:"tenantId,omitempty"`
	IsGroup          bool   `json:"isGroup,omitempty"`
}

type Attachment struct {
	ContentType string `json:"contentType"`
	Content     any    `json:"content,omitempty"`
	ContentURL  string `json:"contentUrl,omitempty"`
	Name        string `json:"name,omitempty"`
}

// Entity is an activity entity. Only mentions are produced by the bot.
type Entity struct {
	Type      string          `json:"type"`
	Mentioned *ChannelAccount `json:"mentioned,omitempty"`
	Text      string          `json:"text,omitempty"`
}

type CardAction struct {
	Type  string `json:"type"`
	Title string `json:"title,omitempty"`
	Value any    `json:"value,omitempty"`
}

// TeamsChannelData is the Teams specific part of an activity.
type TeamsChannelData struct {
	Tenant *struct {
		ID string `json:"id"`
	} `json:"tenant,omitempty"`
	Team    *TeamInfo `json:"team,omitempty"`
	Channel *TeamInfo `json:"channel,omitempty"`
}

type TeamInfo struct {
	ID   string `json:"id"`
	Name string `json:"name,omitempty"`
}

// TeamsData decodes the activity's channel data.
func (a *Activity) TeamsData() (*TeamsChannelData, error) {
	var data TeamsChannelData
	if len(a.ChannelData) == 0 {
		return &data, nil
	}
	if err := json.Unmarshal(a.ChannelData, &data); err != nil {
		return nil, fmt.Errorf("decoding channel data: %w", err)
	}
	return &data, nil
}

// TeamID returns the id of the team the activity was sent in, or "".
func (a *Activity) TeamID() string {
	data, err := a.TeamsData()
	if err != nil || data.Team == nil {
		return ""
	}
	return data.Team.ID
}

// TenantID returns the tenant of the conversation, falling back to channel data.
func (a *Activity) TenantID() string {
	if a.Conversation != nil && a.Conversation.TenantID != "" {
		return a.Conversation.TenantID
	}
	data, err := a.TeamsData()
	if err != nil || data.Tenant == nil {
		return ""
	}
	return data.Tenant.ID
}

// Reply creates a message activity addressed to the sender of a.
func (a *Activity) Reply() *Activity {
	return &Activity{
		Type:         ActivityMessage,
		ServiceURL:   a.ServiceURL,
		ChannelID:    a.ChannelID,
		From:         a.Recipient,
		Recipient:    a.From,
		Conversation: a.Conversation,
		ReplyToID:    a.ID,
		Locale:       a.Locale,
	}
}

// MessagingExtensionAction is the value of fetchTask and submitAction invokes.
type MessagingExtensionAction struct {
	CommandID      string          `json:"commandId"`
	CommandContext string          `json:"commandContext"`
	Data           json.RawMessage `json:"data,omitempty"`
	State          string          `json:"state,omitempty"`
	Context        *struct {
		Theme string `json:"theme"`
	} `json:"context,omitempty"`
}

// Theme returns the Teams client theme, "default" if unknown.
func (m *MessagingExtensionAction) Theme() string {
	if m.Context == nil || m.Context.Theme == "" {
		return "default"
	}
	return m.Context.Theme
}

type MessagingExtensionActionResponse struct {
	Task             *TaskModuleResponse       `json:"task,omitempty"`
	ComposeExtension *MessagingExtensionResult `json:"composeExtension,omitempty"`
}

type TaskModuleResponse struct {
	Type  string              `json:"type"`
	Value *TaskModuleTaskInfo `json:"value,omitempty"`
}

type TaskModuleTaskInfo struct {
	Title  string      `json:"title,omitempty"`
	Height any         `json:"height,omitempty"`
	Width  any         `json:"width,omitempty"`
	URL    string      `json:"url,omitempty"`
	Card   *Attachment `json:"card,omitempty"`
}

type MessagingExtensionResult struct {
	Type             string                             `json:"type"`
	SuggestedActions *MessagingExtensionSuggestedAction `json:"suggestedActions,omitempty"`
	Text             string                             `json:"text,omitempty"`
}

type MessagingExtensionSuggestedAction struct {
	Actions []CardAction `json:"actions"`
}

// InvokeResponse is the synchronous HTTP answer to an invoke activity.
type InvokeResponse struct {
	Status int `json:"status"`
	Body   any `json:"body,omitempty"`
}

type ResourceResponse struct {
	ID string `json:"id"`
}
