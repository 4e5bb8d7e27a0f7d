package bot

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/darmiel/badgebot/internal/badgr"
	"github.com/darmiel/badgebot/internal/botframework"
	"github.com/darmiel/badgebot/internal/core"
	"github.com/darmiel/badgebot/internal/reconcile"
	"github.com/darmiel/badgebot/internal/state"
)

const (
	taskModuleHeight = 460
	taskModuleWidth  = 600
	smallTaskModule  = "small"

	composeExtensionAuth = "auth"
	taskContinue         = "continue"
	actionOpenURL        = "openUrl"

	// CommandContextCompose is the command context of a messaging extension opened from the compose box.
	CommandContextCompose = "compose"
)

type Sender interface {
	SendActivity(ctx context.Context, activity *botframework.Activity) (*botframework.ResourceResponse, error)
}

type SignInLinker interface {
	GetSignInLink(ctx context.Context, activity *botframework.Activity, connectionName string) (string, error)
}

type UserTokens interface {
	GetUserToken(ctx context.Context, userID string) (string, error)
	SignOut(ctx context.Context, userID string) error
}

type Roster interface {
	GetRoster(ctx context.Context, serviceURL, teamID string) ([]core.RosterEntry, error)
}

type Reconciler interface {
	Reconcile(ctx context.Context, userID, teamsEmail, userToken string) (reconcile.Result, error)
}

type OrgIdentity interface {
	ResolveOrgIdentity(ctx context.Context) (string, error)
}

type TokenMinter interface {
	Mint(caller core.Caller) (string, time.Time, error)
}

// Options are the static settings of the Handler.
type Options struct {
	AppBaseURL     string
	TenantID       string
	ConnectionName string
	BadgrBaseURL   string
}

// Deps are the collaborators of the Handler.
type Deps struct {
	Sender        Sender
	SignIn        SignInLinker
	Users         UserTokens
	Roster        Roster
	Reconciler    Reconciler
	Org           OrgIdentity
	Tokens        TokenMinter
	Conversations *state.Conversations
	Strings       *Strings
}

// AwardData is the submit payload of the award task module.
type AwardData struct {
	AwardedBy       string   `json:"awardedBy"`
	BadgeName       string   `json:"badgeName"`
	ImageURI        string   `json:"imageUri"`
	Narrative       string   `json:"narrative"`
	AwardRecipients []string `json:"awardRecipients"`
	CommandContext  string   `json:"commandContext"`
}

// Handler processes the activities Teams sends to the bot.
type Handler struct {
	opts Options
	Deps
}

func NewHandler(opts Options, deps Deps) *Handler {
	if deps.Strings == nil {
		deps.Strings = NewStrings(nil)
	}
	return &Handler{
		opts: opts,
		Deps: deps,
	}
}

// Handle runs a single turn. For invoke activities the returned response is the synchronous answer.
// A failing turn is answered with an apology and the conversation state is cleared.
func (h *Handler) Handle(ctx context.Context, activity *botframework.Activity) *botframework.InvokeResponse {
	logger := log.Ctx(ctx).With().
		Str("activity_type", activity.Type).
		Str("activity_name", activity.Name).
		Logger()
	ctx = logger.WithContext(ctx)

	resp, err := h.turn(ctx, activity)
	if err != nil {
		h.onTurnError(ctx, activity, err)
		if activity.Type == botframework.ActivityInvoke {
			return &botframework.InvokeResponse{Status: http.StatusInternalServerError}
		}
		return nil
	}
	return resp
}

func (h *Handler) turn(ctx context.Context, activity *botframework.Activity) (*botframework.InvokeResponse, error) {
	if !h.fromExpectedTenant(activity) {
		log.Ctx(ctx).Warn().Str("tenant_id", activity.TenantID()).Msg("activity from unexpected tenant")
		if err := h.sendText(ctx, activity, h.Strings.Get(KeyInvalidTenant)); err != nil {
			return nil, err
		}
		return invokeOK(activity, nil), nil
	}

	switch activity.Type {
	case botframework.ActivityConversationUpdate:
		return nil, h.onMembersAdded(ctx, activity)
	case botframework.ActivityInvoke:
		return h.onInvoke(ctx, activity)
	default:
		log.Ctx(ctx).Debug().Msg("ignoring activity")
		return nil, nil
	}
}

func (h *Handler) fromExpectedTenant(activity *botframework.Activity) bool {
	if h.opts.TenantID == "" {
		return true
	}
	return strings.EqualFold(activity.TenantID(), h.opts.TenantID)
}

func (h *Handler) onInvoke(ctx context.Context, activity *botframework.Activity) (*botframework.InvokeResponse, error) {
	var action botframework.MessagingExtensionAction
	if len(activity.Value) > 0 {
		if err := json.Unmarshal(activity.Value, &action); err != nil {
			return nil, fmt.Errorf("decoding messaging extension action: %w", err)
		}
	}

	var (
		body *botframework.MessagingExtensionActionResponse
		err  error
	)
	switch activity.Name {
	case botframework.InvokeFetchTask:
		body, err = h.onFetchTask(ctx, activity, &action)
	case botframework.InvokeSubmitAction:
		body, err = h.onSubmitAction(ctx, activity, &action)
	default:
		log.Ctx(ctx).Debug().Msg("unsupported invoke")
		return &botframework.InvokeResponse{Status: http.StatusNotImplemented}, nil
	}
	if err != nil {
		return nil, err
	}
	if body == nil {
		return &botframework.InvokeResponse{Status: http.StatusOK}, nil
	}
	return &botframework.InvokeResponse{Status: http.StatusOK, Body: body}, nil
}

func (h *Handler) onMembersAdded(ctx context.Context, activity *botframework.Activity) error {
	if activity.Recipient == nil || activity.Conversation == nil {
		return nil
	}
	botAdded := false
	for _, m := range activity.MembersAdded {
		if m.ID == activity.Recipient.ID {
			botAdded = true
			break
		}
	}
	if !botAdded {
		return nil
	}

	conv, err := h.Conversations.Load(ctx, activity.Conversation.ID)
	if err != nil {
		return err
	}
	if conv.WelcomeSent {
		return nil
	}

	log.Ctx(ctx).Info().
		Str("conversation_id", activity.Conversation.ID).
		Str("conversation_type", activity.Conversation.ConversationType).
		Msg("bot added to conversation")

	reply := activity.Reply()
	reply.Attachments = []botframework.Attachment{*WelcomeCard(h.Strings, h.opts.AppBaseURL+"/images/welcome.png")}
	if _, err := h.Sender.SendActivity(ctx, reply); err != nil {
		return fmt.Errorf("sending welcome card: %w", err)
	}

	conv.WelcomeSent = true
	return h.Conversations.Save(ctx, activity.Conversation.ID, conv)
}

func (h *Handler) onFetchTask(
	ctx context.Context,
	activity *botframework.Activity,
	action *botframework.MessagingExtensionAction,
) (*botframework.MessagingExtensionActionResponse, error) {
	if activity.From == nil {
		return nil, fmt.Errorf("activity has no sender")
	}
	logger := log.Ctx(ctx)

	token, err := h.Users.GetUserToken(ctx, activity.From.ID)
	if err != nil {
		return nil, err
	}
	if token == "" {
		return h.signInResponse(ctx, activity, h.Strings.Get(KeySignInButtonText))
	}

	teamID := activity.TeamID()
	if teamID == "" {
		logger.Warn().Str("aad_object_id", activity.From.AADObjectID).Msg("task module opened outside of a team")
		return teamNotFoundResponse(h.Strings), nil
	}

	members, err := h.Roster.GetRoster(ctx, activity.ServiceURL, teamID)
	if err != nil {
		return nil, err
	}
	me, ok := core.FindByAADObjectID(members, activity.From.AADObjectID)
	if !ok {
		return nil, fmt.Errorf("sender %s is not a member of team %s", activity.From.AADObjectID, teamID)
	}

	res, err := h.Reconciler.Reconcile(ctx, activity.From.ID, me.Email, token)
	switch {
	case errors.Is(err, badgr.ErrUnauthorized):
		logger.Info().Err(err).Msg("user token rejected, signing out")
		return h.signOut(ctx, activity)
	case errors.Is(err, reconcile.ErrNotSignedIn):
		return h.signInResponse(ctx, activity, h.Strings.Get(KeySignInButtonText))
	case err != nil:
		return nil, err
	}
	if res.State == reconcile.StateSignedOut {
		return h.signInResponse(ctx, activity, h.Strings.Get(KeyInvalidAccountText))
	}

	return h.taskModuleResponse(ctx, activity, action)
}

func (h *Handler) taskModuleResponse(
	ctx context.Context,
	activity *botframework.Activity,
	action *botframework.MessagingExtensionAction,
) (*botframework.MessagingExtensionActionResponse, error) {
	entityID, err := h.Org.ResolveOrgIdentity(ctx)
	if err != nil {
		return nil, err
	}
	token, _, err := h.Tokens.Mint(core.Caller{
		FromID:     activity.From.ID,
		ServiceURL: activity.ServiceURL,
	})
	if err != nil {
		return nil, err
	}

	q := url.Values{}
	q.Set("token", token)
	q.Set("entityId", entityID)
	q.Set("theme", action.Theme())
	q.Set("badgrUrl", strings.Replace(h.opts.BadgrBaseURL, "api.", "", 1))
	q.Set("commandContext", action.CommandContext)

	return &botframework.MessagingExtensionActionResponse{
		Task: &botframework.TaskModuleResponse{
			Type: taskContinue,
			Value: &botframework.TaskModuleTaskInfo{
				Title:  h.Strings.Get(KeyTaskModuleTitle),
				Height: taskModuleHeight,
				Width:  taskModuleWidth,
				URL:    h.opts.AppBaseURL + "/AllBadges?" + q.Encode(),
			},
		},
	}, nil
}

func (h *Handler) onSubmitAction(
	ctx context.Context,
	activity *botframework.Activity,
	action *botframework.MessagingExtensionAction,
) (*botframework.MessagingExtensionActionResponse, error) {
	var data AwardData
	if err := json.Unmarshal(action.Data, &data); err != nil {
		return nil, fmt.Errorf("decoding award: %w", err)
	}
	teamID := activity.TeamID()
	if teamID == "" {
		return nil, fmt.Errorf("award submitted outside of a team")
	}
	members, err := h.Roster.GetRoster(ctx, activity.ServiceURL, teamID)
	if err != nil {
		return nil, err
	}

	cardActivity := activity.Reply()
	cardActivity.Attachments = []botframework.Attachment{*AwardCard(h.Strings, awardView(members, data))}
	sent, err := h.Sender.SendActivity(ctx, cardActivity)
	if err != nil {
		return nil, fmt.Errorf("sending award card: %w", err)
	}

	if mention, ok := BuildMention(h.Strings, members, data.AwardRecipients, data.AwardedBy); ok {
		msg := activity.Reply()
		msg.Text = mention.Text
		msg.Entities = mention.Entities
		if data.CommandContext == CommandContextCompose && sent != nil && sent.ID != "" {
			conv := *activity.Conversation
			conv.ID = conv.ID + ";messageid=" + sent.ID
			msg.Conversation = &conv
			msg.ReplyToID = ""
		}
		if _, err := h.Sender.SendActivity(ctx, msg); err != nil {
			return nil, fmt.Errorf("sending mentions: %w", err)
		}
	} else {
		log.Ctx(ctx).Warn().Msg("awarding user not found in team, skipping mentions")
	}

	if err := h.recordAward(ctx, activity, sent); err != nil {
		log.Ctx(ctx).Warn().Err(err).Msg("failed to record award in conversation state")
	}
	return nil, nil
}

func (h *Handler) recordAward(ctx context.Context, activity *botframework.Activity, sent *botframework.ResourceResponse) error {
	if activity.Conversation == nil {
		return nil
	}
	conv, err := h.Conversations.Load(ctx, activity.Conversation.ID)
	if err != nil {
		return err
	}
	conv.Awards++
	if sent != nil {
		conv.LastAwardActivityID = sent.ID
	}
	return h.Conversations.Save(ctx, activity.Conversation.ID, conv)
}

func (h *Handler) signOut(ctx context.Context, activity *botframework.Activity) (*botframework.MessagingExtensionActionResponse, error) {
	if err := h.Users.SignOut(ctx, activity.From.ID); err != nil {
		return nil, err
	}
	return h.signInResponse(ctx, activity, h.Strings.Get(KeyInvalidAccountText))
}

func (h *Handler) signInResponse(
	ctx context.Context,
	activity *botframework.Activity,
	title string,
) (*botframework.MessagingExtensionActionResponse, error) {
	link, err := h.SignIn.GetSignInLink(ctx, activity, h.opts.ConnectionName)
	if err != nil {
		return nil, fmt.Errorf("getting sign-in link: %w", err)
	}
	return &botframework.MessagingExtensionActionResponse{
		ComposeExtension: &botframework.MessagingExtensionResult{
			Type: composeExtensionAuth,
			SuggestedActions: &botframework.MessagingExtensionSuggestedAction{
				Actions: []botframework.CardAction{{
					Type:  actionOpenURL,
					Title: title,
					Value: link,
				}},
			},
		},
	}, nil
}

func teamNotFoundResponse(s *Strings) *botframework.MessagingExtensionActionResponse {
	return &botframework.MessagingExtensionActionResponse{
		Task: &botframework.TaskModuleResponse{
			Type: taskContinue,
			Value: &botframework.TaskModuleTaskInfo{
				Card:   TeamNotFoundCard(s),
				Height: smallTaskModule,
				Width:  smallTaskModule,
			},
		},
	}
}

func (h *Handler) sendText(ctx context.Context, activity *botframework.Activity, text string) error {
	reply := activity.Reply()
	reply.Text = text
	if _, err := h.Sender.SendActivity(ctx, reply); err != nil {
		return fmt.Errorf("sending message: %w", err)
	}
	return nil
}

// onTurnError apologizes and drops the conversation state so a corrupted state cannot fail every turn.
func (h *Handler) onTurnError(ctx context.Context, activity *botframework.Activity, err error) {
	logger := log.Ctx(ctx)
	logger.Error().
		Err(err).
		Str("kind", badgr.KindOf(err).String()).
		Msg("unhandled error in turn")

	if activity.Conversation == nil {
		return
	}
	if sendErr := h.sendText(ctx, activity, h.Strings.Get(KeyExceptionResponse)); sendErr != nil {
		logger.Warn().Err(sendErr).Msg("failed to send apology")
	}
	if clearErr := h.Conversations.Clear(ctx, activity.Conversation.ID); clearErr != nil {
		logger.Warn().Err(clearErr).Msg("failed to clear conversation state")
	}
}

func invokeOK(activity *botframework.Activity, body any) *botframework.InvokeResponse {
	if activity.Type != botframework.ActivityInvoke {
		return nil
	}
	return &botframework.InvokeResponse{Status: http.StatusOK, Body: body}
}
