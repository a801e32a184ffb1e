package delivery

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/fathima-sithara/presence-service/internal/domain"
	"github.com/fathima-sithara/presence-service/internal/events"
	"github.com/fathima-sithara/presence-service/internal/metrics"
	"github.com/fathima-sithara/presence-service/internal/registry"
)

type MessageWriter interface {
	InsertMessage(ctx context.Context, m *domain.Message) (*domain.Message, error)
}

type Locator interface {
	Lookup(userID string) (registry.Handle, bool)
}

// Service persists outgoing messages and pushes them to the receiver's live
// connection. The push is at-most-once; the stored record is the source of
// truth and is picked up on the receiver's next history fetch.
type Service struct {
	store   MessageWriter
	reg     Locator
	pub     events.Publisher
	metrics *metrics.Metrics
	log     *zap.Logger
	now     func() time.Time
}

func NewService(store MessageWriter, reg Locator, pub events.Publisher, m *metrics.Metrics, log *zap.Logger) *Service {
	if log == nil {
		log = zap.NewNop()
	}
	if pub == nil {
		pub = events.Nop{}
	}
	return &Service{store: store, reg: reg, pub: pub, metrics: m, log: log, now: time.Now}
}

// Send stores the message and returns it once storage succeeded, whatever
// happens to the push.
func (s *Service) Send(ctx context.Context, senderID, receiverID string, c domain.Content) (*domain.Message, error) {
	msg := domain.NewMessage(senderID, receiverID, c, s.now())

	stored, err := s.store.InsertMessage(ctx, msg)
	if err != nil {
		s.metrics.StoreError("insert message")
		return nil, domain.NewStorageError("insert message", err)
	}
	s.metrics.MessageSent()

	s.push(stored)

	if err := s.pub.MessageSent(ctx, stored); err != nil {
		s.log.Warn("message export failed", zap.String("message_id", stored.ID), zap.Error(err))
	}
	return stored, nil
}

func (s *Service) push(m *domain.Message) {
	h, ok := s.reg.Lookup(m.ReceiverID)
	if !ok {
		s.log.Debug("receiver offline, relying on pull",
			zap.String("receiver_id", m.ReceiverID), zap.String("message_id", m.ID), zap.Error(domain.ErrPushUnavailable))
		return
	}
	ev := domain.NewDeliveryEvent(m)
	err := h.Send(ev)
	s.metrics.Push(ev.Type, err)
	if err != nil {
		s.log.Info("message push failed",
			zap.String("receiver_id", m.ReceiverID), zap.String("conn_id", h.ID()), zap.String("message_id", m.ID), zap.Error(err))
	}
}
