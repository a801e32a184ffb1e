package repository

import (
	"context"
	"errors"
	"time"

	"github.com/sony/gobreaker"
	"go.uber.org/zap"

	"github.com/fathima-sithara/presence-service/internal/domain"
)

type BreakerConfig struct {
	MaxFailures uint32
	Interval    time.Duration
	Timeout     time.Duration
}

// BreakerStore guards a Store with a circuit breaker. While the breaker is
// open calls fail fast with a StorageError instead of waiting on the backend.
type BreakerStore struct {
	next Store
	cb   *gobreaker.CircuitBreaker
}

func NewBreakerStore(next Store, cfg BreakerConfig, log *zap.Logger) *BreakerStore {
	if log == nil {
		log = zap.NewNop()
	}
	if cfg.MaxFailures == 0 {
		cfg.MaxFailures = 5
	}
	st := gobreaker.Settings{
		Name:        "conversation-store",
		MaxRequests: 1,
		Interval:    cfg.Interval,
		Timeout:     cfg.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= cfg.MaxFailures
		},
		// a caller giving up says nothing about the backend
		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, context.Canceled)
		},
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			log.Warn("circuit breaker state", zap.String("name", name), zap.String("from", from.String()), zap.String("to", to.String()))
		},
	}
	return &BreakerStore{next: next, cb: gobreaker.NewCircuitBreaker(st)}
}

func (b *BreakerStore) State() gobreaker.State { return b.cb.State() }

func run[T any](b *BreakerStore, op string, fn func() (T, error)) (T, error) {
	var zero T
	out, err := b.cb.Execute(func() (interface{}, error) {
		return fn()
	})
	if err != nil {
		return zero, domain.NewStorageError(op, err)
	}
	if out == nil {
		return zero, nil
	}
	return out.(T), nil
}

func (b *BreakerStore) FindUsersExcept(ctx context.Context, id string) ([]domain.User, error) {
	return run(b, "find users", func() ([]domain.User, error) { return b.next.FindUsersExcept(ctx, id) })
}

func (b *BreakerStore) FindUsersByIDs(ctx context.Context, ids []string) ([]domain.User, error) {
	return run(b, "find users by ids", func() ([]domain.User, error) { return b.next.FindUsersByIDs(ctx, ids) })
}

func (b *BreakerStore) FindMessagesBetween(ctx context.Context, a, c string) ([]*domain.Message, error) {
	return run(b, "find messages", func() ([]*domain.Message, error) { return b.next.FindMessagesBetween(ctx, a, c) })
}

func (b *BreakerStore) LastMessageBetween(ctx context.Context, a, c string) (*domain.Message, error) {
	return run(b, "last message", func() (*domain.Message, error) { return b.next.LastMessageBetween(ctx, a, c) })
}

func (b *BreakerStore) InsertMessage(ctx context.Context, m *domain.Message) (*domain.Message, error) {
	return run(b, "insert message", func() (*domain.Message, error) { return b.next.InsertMessage(ctx, m) })
}

func (b *BreakerStore) CountUnread(ctx context.Context, receiverID, senderID string) (int, error) {
	return run(b, "count unread", func() (int, error) { return b.next.CountUnread(ctx, receiverID, senderID) })
}

func (b *BreakerStore) MarkAllRead(ctx context.Context, receiverID, senderID string) error {
	_, err := run(b, "mark read", func() (struct{}, error) { return struct{}{}, b.next.MarkAllRead(ctx, receiverID, senderID) })
	return err
}
