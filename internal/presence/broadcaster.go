package presence

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/fathima-sithara/presence-service/internal/domain"
	"github.com/fathima-sithara/presence-service/internal/events"
	"github.com/fathima-sithara/presence-service/internal/metrics"
	"github.com/fathima-sithara/presence-service/internal/registry"
)

// Source is the read side of the connection registry.
type Source interface {
	Snapshot() []string
	Handles() []registry.Handle
}

type UserResolver interface {
	FindUsersByIDs(ctx context.Context, ids []string) ([]domain.User, error)
}

type request struct {
	only registry.Handle
}

// Broadcaster pushes presence snapshots. Requests are processed one at a
// time by Run so pushes leave in the order membership changed.
type Broadcaster struct {
	src     Source
	users   UserResolver
	pub     events.Publisher
	metrics *metrics.Metrics
	log     *zap.Logger
	timeout time.Duration

	reqs chan request
	done chan struct{}
}

func NewBroadcaster(src Source, users UserResolver, pub events.Publisher, m *metrics.Metrics, log *zap.Logger) *Broadcaster {
	if log == nil {
		log = zap.NewNop()
	}
	if pub == nil {
		pub = events.Nop{}
	}
	return &Broadcaster{
		src:     src,
		users:   users,
		pub:     pub,
		metrics: m,
		log:     log,
		timeout: 3 * time.Second,
		reqs:    make(chan request, 256),
		done:    make(chan struct{}),
	}
}

// PresenceChanged implements registry.Notifier.
func (b *Broadcaster) PresenceChanged() { b.enqueue(request{}) }

// Welcome implements registry.Notifier.
func (b *Broadcaster) Welcome(h registry.Handle) { b.enqueue(request{only: h}) }

func (b *Broadcaster) enqueue(r request) {
	select {
	case b.reqs <- r:
	case <-b.done:
	}
}

// Run processes requests until ctx is cancelled.
func (b *Broadcaster) Run(ctx context.Context) {
	defer close(b.done)
	for {
		select {
		case <-ctx.Done():
			return
		case r := <-b.reqs:
			b.push(ctx, r)
		}
	}
}

// Snapshot resolves the current online set. Lookup failures are logged and
// leave Users empty; the ids are always present.
func (b *Broadcaster) Snapshot(ctx context.Context) domain.PresenceSnapshot {
	ids := b.src.Snapshot()
	snap := domain.PresenceSnapshot{OnlineUserIDs: ids, Users: []domain.User{}}
	if len(ids) == 0 || b.users == nil {
		return snap
	}
	ctx, cancel := context.WithTimeout(ctx, b.timeout)
	defer cancel()
	users, err := b.users.FindUsersByIDs(ctx, ids)
	if err != nil {
		b.metrics.StoreError("find users by ids")
		b.log.Warn("presence lookup failed", zap.Error(err), zap.Int("online", len(ids)))
		return snap
	}
	snap.Users = users
	return snap
}

func (b *Broadcaster) push(ctx context.Context, r request) {
	snap := b.Snapshot(ctx)
	ev := domain.NewPresenceEvent(snap)

	if r.only != nil {
		b.send(r.only, ev)
		return
	}
	for _, h := range b.src.Handles() {
		b.send(h, ev)
	}
	b.metrics.Broadcast()
	b.log.Debug("presence broadcast", zap.Int("online", len(snap.OnlineUserIDs)))
	if err := b.pub.PresenceChanged(ctx, snap.OnlineUserIDs); err != nil {
		b.log.Warn("presence export failed", zap.Error(err))
	}
}

func (b *Broadcaster) send(h registry.Handle, ev domain.Event) {
	err := h.Send(ev)
	b.metrics.Push(ev.Type, err)
	if err != nil {
		b.log.Info("presence push failed", zap.String("user_id", h.UserID()), zap.String("conn_id", h.ID()), zap.Error(err))
	}
}
