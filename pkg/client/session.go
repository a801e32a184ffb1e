package client

import (
	"context"

	"go.uber.org/zap"

	"github.com/fathima-sithara/presence-service/internal/domain"
)

type API interface {
	Conversations(ctx context.Context) ([]*domain.Summary, error)
	History(ctx context.Context, counterpartID string) ([]*domain.Message, error)
	Send(ctx context.Context, counterpartID string, content domain.Content) (*domain.Message, error)
	MarkRead(ctx context.Context, counterpartID string) error
}

// Session drives State from user actions.
type Session struct {
	api   API
	state *State
	log   *zap.Logger
}

func NewSession(api API, st *State, log *zap.Logger) *Session {
	if log == nil {
		log = zap.NewNop()
	}
	return &Session{api: api, state: st, log: log}
}

func (s *Session) State() *State { return s.state }

// Refresh reloads the sidebar from the server.
func (s *Session) Refresh(ctx context.Context) error {
	list, err := s.api.Conversations(ctx)
	if err != nil {
		return err
	}
	s.state.SetUsers(list)
	return nil
}

// Open selects counterpartID, loads its history and marks it read. The
// local unread count is zeroed first and stays zero if marking fails; the
// next Refresh reconciles.
func (s *Session) Open(ctx context.Context, counterpartID string) error {
	s.state.Select(counterpartID)

	msgs, err := s.api.History(ctx, counterpartID)
	if err != nil {
		return err
	}
	s.state.SetHistory(counterpartID, msgs)

	if err := s.api.MarkRead(ctx, counterpartID); err != nil {
		s.log.Warn("mark read failed", zap.String("counterpart_id", counterpartID), zap.Error(err))
	}
	return nil
}

func (s *Session) Send(ctx context.Context, counterpartID string, content domain.Content) (*domain.Message, error) {
	m, err := s.api.Send(ctx, counterpartID, content)
	if err != nil {
		return nil, err
	}
	s.state.ApplySent(m)
	return m, nil
}
