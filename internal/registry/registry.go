package registry

import (
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/fathima-sithara/presence-service/internal/domain"
)

// Handle is one live connection. ID must be unique per connection.
type Handle interface {
	ID() string
	UserID() string
	Send(ev domain.Event) error
}

// Notifier receives membership changes. Calls are made outside the registry
// lock, in the order the registry applied them.
type Notifier interface {
	// PresenceChanged asks for a snapshot push to every live connection.
	PresenceChanged()
	// Welcome asks for a snapshot push to h alone; visible membership did not change.
	Welcome(h Handle)
}

type pendingTimer struct {
	t *time.Timer
}

type nopNotifier struct{}

func (nopNotifier) PresenceChanged() {}
func (nopNotifier) Welcome(Handle)   {}

// Registry maps a user id to its single live connection. A newer connection
// for the same user replaces the older one. Disconnects are withdrawn from
// presence only after the debounce window passes without a reconnect.
type Registry struct {
	mu       sync.Mutex
	entries  map[string]Handle
	pending  map[string]*pendingTimer
	debounce time.Duration
	notifier Notifier
	log      *zap.Logger

	// notifyMu keeps notifications in the order the mutations were applied.
	notifyMu sync.Mutex
	onEvent  func(kind string)
}

func New(debounce time.Duration, log *zap.Logger) *Registry {
	if log == nil {
		log = zap.NewNop()
	}
	return &Registry{
		entries:  make(map[string]Handle),
		pending:  make(map[string]*pendingTimer),
		debounce: debounce,
		notifier: nopNotifier{},
		log:      log,
	}
}

// SetNotifier must be called before the registry is shared.
func (r *Registry) SetNotifier(n Notifier) {
	if n == nil {
		n = nopNotifier{}
	}
	r.notifier = n
}

// OnEvent installs a hook called with "connect", "disconnect", "stale",
// "suppressed" and "expired". Used for metrics.
func (r *Registry) OnEvent(fn func(kind string)) { r.onEvent = fn }

func (r *Registry) event(kind string) {
	if r.onEvent != nil {
		r.onEvent(kind)
	}
}

// Register installs h as the live connection for userID.
func (r *Registry) Register(userID string, h Handle) {
	r.notifyMu.Lock()
	defer r.notifyMu.Unlock()

	r.mu.Lock()
	_, wasLive := r.entries[userID]
	p, wasPending := r.pending[userID]
	if wasPending {
		p.t.Stop()
		delete(r.pending, userID)
	}
	r.entries[userID] = h
	r.mu.Unlock()

	r.event("connect")
	switch {
	case wasPending:
		r.event("suppressed")
		r.log.Debug("reconnect inside debounce window", zap.String("user_id", userID), zap.String("conn_id", h.ID()))
		r.notifier.Welcome(h)
	case wasLive:
		r.log.Debug("connection replaced", zap.String("user_id", userID), zap.String("conn_id", h.ID()))
		r.notifier.Welcome(h)
	default:
		r.notifier.PresenceChanged()
	}
}

// Unregister removes the entry for userID only while h is still the
// registered connection. It reports false for a stale disconnect.
func (r *Registry) Unregister(userID string, h Handle) bool {
	r.mu.Lock()
	cur, ok := r.entries[userID]
	if !ok || cur.ID() != h.ID() {
		r.mu.Unlock()
		r.event("stale")
		r.log.Debug("stale disconnect ignored", zap.String("user_id", userID), zap.String("conn_id", h.ID()))
		return false
	}
	delete(r.entries, userID)
	r.scheduleLocked(userID)
	r.mu.Unlock()

	r.event("disconnect")
	return true
}

// scheduleLocked (re)starts the single debounce timer for userID.
func (r *Registry) scheduleLocked(userID string) {
	if p, ok := r.pending[userID]; ok {
		p.t.Stop()
	}
	p := &pendingTimer{}
	p.t = time.AfterFunc(r.debounce, func() { r.expire(userID, p) })
	r.pending[userID] = p
}

func (r *Registry) expire(userID string, p *pendingTimer) {
	r.notifyMu.Lock()
	defer r.notifyMu.Unlock()

	r.mu.Lock()
	cur, ok := r.pending[userID]
	if !ok || cur != p {
		r.mu.Unlock()
		return
	}
	delete(r.pending, userID)
	_, live := r.entries[userID]
	r.mu.Unlock()

	if live {
		return
	}
	r.event("expired")
	r.log.Debug("presence withdrawn", zap.String("user_id", userID))
	r.notifier.PresenceChanged()
}

// Lookup returns the live connection for userID, if any.
func (r *Registry) Lookup(userID string) (Handle, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	h, ok := r.entries[userID]
	return h, ok
}

// IsOnline reports visible presence: live, or inside the debounce window.
func (r *Registry) IsOnline(userID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.entries[userID]; ok {
		return true
	}
	_, ok := r.pending[userID]
	return ok
}

// Snapshot returns the visible online set, sorted.
func (r *Registry) Snapshot() []string {
	r.mu.Lock()
	out := make([]string, 0, len(r.entries)+len(r.pending))
	for id := range r.entries {
		out = append(out, id)
	}
	for id := range r.pending {
		if _, ok := r.entries[id]; !ok {
			out = append(out, id)
		}
	}
	r.mu.Unlock()
	sort.Strings(out)
	return out
}

// Handles returns every live connection.
func (r *Registry) Handles() []Handle {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Handle, 0, len(r.entries))
	for _, h := range r.entries {
		out = append(out, h)
	}
	return out
}

func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.entries)
}

// Close stops every pending debounce timer without notifying.
func (r *Registry) Close() {
	r.mu.Lock()
	defer r.mu.Unlock()
	for id, p := range r.pending {
		p.t.Stop()
		delete(r.pending, id)
	}
}
