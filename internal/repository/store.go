package repository

import (
	"context"

	"github.com/fathima-sithara/presence-service/internal/domain"
)

// Store is the conversation store consumed by the realtime core. Every error
// returned by an implementation is a *domain.StorageError.
type Store interface {
	FindUsersExcept(ctx context.Context, id string) ([]domain.User, error)
	FindUsersByIDs(ctx context.Context, ids []string) ([]domain.User, error)
	// FindMessagesBetween returns both directions of a conversation, oldest first.
	FindMessagesBetween(ctx context.Context, a, b string) ([]*domain.Message, error)
	// LastMessageBetween returns nil, nil when a and b never exchanged a message.
	LastMessageBetween(ctx context.Context, a, b string) (*domain.Message, error)
	InsertMessage(ctx context.Context, m *domain.Message) (*domain.Message, error)
	CountUnread(ctx context.Context, receiverID, senderID string) (int, error)
	MarkAllRead(ctx context.Context, receiverID, senderID string) error
}
