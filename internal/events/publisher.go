package events

import (
	"context"
	"time"

	"github.com/fathima-sithara/presence-service/internal/domain"
)

// Publisher exports domain events to other services. Publishing is best
// effort: callers log failures and carry on.
type Publisher interface {
	MessageSent(ctx context.Context, m *domain.Message) error
	PresenceChanged(ctx context.Context, onlineUserIDs []string) error
	Close() error
}

type MessageSentEvent struct {
	Type    string          `json:"type"`
	Message *domain.Message `json:"message"`
	SentAt  time.Time       `json:"sent_at"`
}

type PresenceChangedEvent struct {
	Type          string    `json:"type"`
	OnlineUserIDs []string  `json:"online_user_ids"`
	At            time.Time `json:"at"`
}

func newMessageSent(m *domain.Message) MessageSentEvent {
	return MessageSentEvent{Type: "message.sent", Message: m, SentAt: time.Now().UTC()}
}

func newPresenceChanged(ids []string) PresenceChangedEvent {
	return PresenceChangedEvent{Type: "presence.changed", OnlineUserIDs: ids, At: time.Now().UTC()}
}

type Nop struct{}

func (Nop) MessageSent(context.Context, *domain.Message) error { return nil }
func (Nop) PresenceChanged(context.Context, []string) error    { return nil }
func (Nop) Close() error                                       { return nil }
