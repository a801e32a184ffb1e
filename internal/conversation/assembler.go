package conversation

import (
	"context"

	"golang.org/x/sync/errgroup"

	"github.com/fathima-sithara/presence-service/internal/domain"
)

type Store interface {
	FindUsersExcept(ctx context.Context, id string) ([]domain.User, error)
	FindMessagesBetween(ctx context.Context, a, b string) ([]*domain.Message, error)
	LastMessageBetween(ctx context.Context, a, b string) (*domain.Message, error)
}

type UnreadCounter interface {
	UnreadCount(ctx context.Context, readerID, counterpartID string) (int, error)
}

type Presence interface {
	IsOnline(userID string) bool
}

// Assembler builds the conversation list and history for a user.
type Assembler struct {
	store    Store
	unread   UnreadCounter
	presence Presence
	parallel int
}

func NewAssembler(store Store, unread UnreadCounter, presence Presence) *Assembler {
	return &Assembler{store: store, unread: unread, presence: presence, parallel: 8}
}

// List returns one summary per other user, sorted online first, then by
// most recent message, then by name.
func (a *Assembler) List(ctx context.Context, userID string) ([]*domain.Summary, error) {
	users, err := a.store.FindUsersExcept(ctx, userID)
	if err != nil {
		return nil, domain.NewStorageError("find users", err)
	}

	out := make([]*domain.Summary, len(users))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(a.parallel)
	for i, u := range users {
		i, u := i, u
		g.Go(func() error {
			s, err := a.summarize(gctx, userID, u)
			if err != nil {
				return err
			}
			out[i] = s
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	domain.SortSummaries(out)
	return out, nil
}

func (a *Assembler) summarize(ctx context.Context, userID string, u domain.User) (*domain.Summary, error) {
	s := &domain.Summary{User: u}

	last, err := a.store.LastMessageBetween(ctx, userID, u.ID)
	if err != nil {
		return nil, domain.NewStorageError("last message", err)
	}
	if last != nil {
		at := last.CreatedAt
		s.LastMessageAt = &at
		s.LastMessage = last.Preview()
	}

	n, err := a.unread.UnreadCount(ctx, userID, u.ID)
	if err != nil {
		return nil, err
	}
	s.UnreadCount = n
	s.IsOnline = a.presence.IsOnline(u.ID)
	return s, nil
}

// History returns the full conversation between userID and counterpartID,
// oldest first.
func (a *Assembler) History(ctx context.Context, userID, counterpartID string) ([]*domain.Message, error) {
	msgs, err := a.store.FindMessagesBetween(ctx, userID, counterpartID)
	if err != nil {
		return nil, domain.NewStorageError("find messages", err)
	}
	return msgs, nil
}
