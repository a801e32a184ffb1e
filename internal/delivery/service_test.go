package delivery

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fathima-sithara/presence-service/internal/domain"
	"github.com/fathima-sithara/presence-service/internal/registry"
	"github.com/fathima-sithara/presence-service/internal/repository"
)

type fakeHandle struct {
	id, user string
	err      error

	mu   sync.Mutex
	sent []domain.Event
}

func (h *fakeHandle) ID() string     { return h.id }
func (h *fakeHandle) UserID() string { return h.user }
func (h *fakeHandle) Send(ev domain.Event) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.sent = append(h.sent, ev)
	return h.err
}

type locator map[string]registry.Handle

func (l locator) Lookup(id string) (registry.Handle, bool) {
	h, ok := l[id]
	return h, ok
}

type brokenStore struct{}

func (brokenStore) InsertMessage(context.Context, *domain.Message) (*domain.Message, error) {
	return nil, errors.New("write concern timeout")
}

type countingPublisher struct {
	sent int
	err  error
}

func (p *countingPublisher) MessageSent(context.Context, *domain.Message) error {
	p.sent++
	return p.err
}
func (p *countingPublisher) PresenceChanged(context.Context, []string) error { return nil }
func (p *countingPublisher) Close() error                                    { return nil }

func newService(store MessageWriter, reg Locator) *Service {
	s := NewService(store, reg, nil, nil, nil)
	s.now = func() time.Time { return time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC) }
	return s
}

func TestSend_OnlineReceiverGetsPush(t *testing.T) {
	store := repository.NewMemoryStore()
	h := &fakeHandle{id: "c1", user: "bob"}
	svc := newService(store, locator{"bob": h})

	m, err := svc.Send(context.Background(), "alice", "bob", domain.Content{Text: "hi"})
	require.NoError(t, err)
	assert.False(t, m.IsRead)
	assert.Equal(t, "alice", m.SenderID)
	assert.Equal(t, int64(1), m.Seq)

	require.Len(t, h.sent, 1)
	assert.Equal(t, domain.EventMessageDelivered, h.sent[0].Type)
	pushed := h.sent[0].Payload.(*domain.Message)
	assert.Equal(t, m.ID, pushed.ID)
}

func TestSend_OfflineReceiverStillStored(t *testing.T) {
	store := repository.NewMemoryStore()
	svc := newService(store, locator{})

	m, err := svc.Send(context.Background(), "alice", "bob", domain.Content{Image: "http://img"})
	require.NoError(t, err)

	history, err := store.FindMessagesBetween(context.Background(), "bob", "alice")
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, m.ID, history[0].ID)
}

func TestSend_PushFailureSwallowed(t *testing.T) {
	store := repository.NewMemoryStore()
	h := &fakeHandle{id: "c1", user: "bob", err: domain.ErrPushUnavailable}
	svc := newService(store, locator{"bob": h})

	m, err := svc.Send(context.Background(), "alice", "bob", domain.Content{Text: "hi"})
	require.NoError(t, err)
	require.NotNil(t, m)
	assert.Len(t, h.sent, 1, "tried once, never retried")
}

func TestSend_StorageFailureAborts(t *testing.T) {
	h := &fakeHandle{id: "c1", user: "bob"}
	svc := newService(brokenStore{}, locator{"bob": h})

	m, err := svc.Send(context.Background(), "alice", "bob", domain.Content{Text: "hi"})
	assert.Nil(t, m)
	assert.ErrorIs(t, err, domain.ErrStorage)
	var se *domain.StorageError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, "insert message", se.Op)
	assert.Empty(t, h.sent, "nothing is pushed without a stored record")
}

func TestSend_ExportFailureIgnored(t *testing.T) {
	pub := &countingPublisher{err: errors.New("kafka down")}
	svc := NewService(repository.NewMemoryStore(), locator{}, pub, nil, nil)

	_, err := svc.Send(context.Background(), "alice", "bob", domain.Content{Text: "hi"})
	require.NoError(t, err)
	assert.Equal(t, 1, pub.sent)
}
