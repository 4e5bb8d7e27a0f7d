package state

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/darmiel/badgebot/internal/config"
	"github.com/darmiel/badgebot/internal/core"
)

// New creates the state store configured in cfg.
func New(cfg config.StateConfig) (core.StateStore, error) {
	switch cfg.Type {
	case "", "memory":
		return NewInMemoryStore(), nil
	case "bolt":
		return NewBoltStore(cfg.Path)
	default:
		return nil, fmt.Errorf("unknown state type: %s", cfg.Type)
	}
}

// Conversation is the bot's state for a single conversation.
type Conversation struct {
	// WelcomeSent is set once the welcome card was posted.
	WelcomeSent bool `json:"welcome_sent"`

	// LastAwardActivityID is the id of the last award card posted.
	LastAwardActivityID string `json:"last_award_activity_id,omitempty"`

	Awards    int       `json:"awards"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Conversations stores typed Conversation values in a StateStore.
type Conversations struct {
	store core.StateStore
}

func NewConversations(store core.StateStore) *Conversations {
	return &Conversations{store: store}
}

func conversationKey(conversationID string) string {
	return "conversation/" + conversationID
}

// Load returns the state of conversationID, or an empty state if none is stored.
func (c *Conversations) Load(ctx context.Context, conversationID string) (*Conversation, error) {
	data, err := c.store.Get(ctx, conversationKey(conversationID))
	if errors.Is(err, core.ErrStateNotFound) {
		return &Conversation{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("loading conversation state: %w", err)
	}
	var conv Conversation
	if err := json.Unmarshal(data, &conv); err != nil {
		return nil, fmt.Errorf("decoding conversation state: %w", err)
	}
	return &conv, nil
}

func (c *Conversations) Save(ctx context.Context, conversationID string, conv *Conversation) error {
	conv.UpdatedAt = time.Now()
	data, err := json.Marshal(conv)
	if err != nil {
		return fmt.Errorf("encoding conversation state: %w", err)
	}
	if err := c.store.Set(ctx, conversationKey(conversationID), data); err != nil {
		return fmt.Errorf("saving conversation state: %w", err)
	}
	return nil
}

// Clear deletes the state of conversationID.
func (c *Conversations) Clear(ctx context.Context, conversationID string) error {
	if err := c.store.Delete(ctx, conversationKey(conversationID)); err != nil {
		return fmt.Errorf("clearing conversation state: %w", err)
	}
	return nil
}
