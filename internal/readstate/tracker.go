package readstate

import (
	"context"

	"github.com/fathima-sithara/presence-service/internal/domain"
)

type Store interface {
	CountUnread(ctx context.Context, receiverID, senderID string) (int, error)
	MarkAllRead(ctx context.Context, receiverID, senderID string) error
}

// Tracker flips unread messages to read when a reader opens a conversation.
// Both operations are blanket predicate queries, so concurrent calls for the
// same pair converge without coordination.
type Tracker struct {
	store Store
}

func NewTracker(store Store) *Tracker {
	return &Tracker{store: store}
}

// MarkRead marks every unread message from counterpartID to readerID as read.
func (t *Tracker) MarkRead(ctx context.Context, readerID, counterpartID string) error {
	if err := t.store.MarkAllRead(ctx, readerID, counterpartID); err != nil {
		return domain.NewStorageError("mark read", err)
	}
	return nil
}

func (t *Tracker) UnreadCount(ctx context.Context, readerID, counterpartID string) (int, error) {
	n, err := t.store.CountUnread(ctx, readerID, counterpartID)
	if err != nil {
		return 0, domain.NewStorageError("count unread", err)
	}
	return n, nil
}
