package repository

import (
	"context"
	"sort"
	"strings"
	"sync"

	"github.com/fathima-sithara/presence-service/internal/domain"
)

// MemoryStore keeps users and messages in process. It backs the "memory"
// store driver and the tests.
type MemoryStore struct {
	mu       sync.RWMutex
	users    map[string]domain.User
	messages []*domain.Message
	seq      int64
}

func NewMemoryStore(users ...domain.User) *MemoryStore {
	s := &MemoryStore{users: make(map[string]domain.User)}
	for _, u := range users {
		s.users[u.ID] = u
	}
	return s
}

func (s *MemoryStore) PutUser(u domain.User) {
	s.mu.Lock()
	s.users[u.ID] = u
	s.mu.Unlock()
}

func (s *MemoryStore) FindUsersExcept(ctx context.Context, id string) ([]domain.User, error) {
	if err := ctx.Err(); err != nil {
		return nil, domain.NewStorageError("find users", err)
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.User, 0, len(s.users))
	for uid, u := range s.users {
		if uid == id {
			continue
		}
		out = append(out, u)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *MemoryStore) FindUsersByIDs(ctx context.Context, ids []string) ([]domain.User, error) {
	if err := ctx.Err(); err != nil {
		return nil, domain.NewStorageError("find users by ids", err)
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.User, 0, len(ids))
	for _, id := range ids {
		if u, ok := s.users[id]; ok {
			out = append(out, u)
		}
	}
	return out, nil
}

func between(m *domain.Message, a, b string) bool {
	return (m.SenderID == a && m.ReceiverID == b) || (m.SenderID == b && m.ReceiverID == a)
}

func (s *MemoryStore) FindMessagesBetween(ctx context.Context, a, b string) ([]*domain.Message, error) {
	if err := ctx.Err(); err != nil {
		return nil, domain.NewStorageError("find messages", err)
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := []*domain.Message{}
	for _, m := range s.messages {
		if between(m, a, b) {
			cp := *m
			out = append(out, &cp)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[j].Newer(out[i]) })
	return out, nil
}

func (s *MemoryStore) LastMessageBetween(ctx context.Context, a, b string) (*domain.Message, error) {
	if err := ctx.Err(); err != nil {
		return nil, domain.NewStorageError("last message", err)
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	var last *domain.Message
	for _, m := range s.messages {
		if between(m, a, b) && m.Newer(last) {
			last = m
		}
	}
	if last == nil {
		return nil, nil
	}
	cp := *last
	return &cp, nil
}

func (s *MemoryStore) InsertMessage(ctx context.Context, m *domain.Message) (*domain.Message, error) {
	if err := ctx.Err(); err != nil {
		return nil, domain.NewStorageError("insert message", err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.seq++
	stored := *m
	// callers may hand us strings backed by reused request buffers
	stored.ID = strings.Clone(m.ID)
	stored.SenderID = strings.Clone(m.SenderID)
	stored.ReceiverID = strings.Clone(m.ReceiverID)
	stored.Text = strings.Clone(m.Text)
	stored.Image = strings.Clone(m.Image)
	stored.Seq = s.seq
	s.messages = append(s.messages, &stored)
	out := stored
	return &out, nil
}

func (s *MemoryStore) CountUnread(ctx context.Context, receiverID, senderID string) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, domain.NewStorageError("count unread", err)
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	n := 0
	for _, m := range s.messages {
		if m.ReceiverID == receiverID && m.SenderID == senderID && !m.IsRead {
			n++
		}
	}
	return n, nil
}

func (s *MemoryStore) MarkAllRead(ctx context.Context, receiverID, senderID string) error {
	if err := ctx.Err(); err != nil {
		return domain.NewStorageError("mark read", err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, m := range s.messages {
		if m.ReceiverID == receiverID && m.SenderID == senderID && !m.IsRead {
			m.IsRead = true
		}
	}
	return nil
}
