// Package client holds the client half of the realtime core: the merged
// conversation list, the REST calls that feed it and the live stream.
package client

import (
	"sort"
	"sync"

	"github.com/fathima-sithara/presence-service/internal/domain"
)

// State is the client's view of its sidebar and open conversation. It is
// safe for concurrent use by the UI and the stream listener.
type State struct {
	mu       sync.Mutex
	self     string
	list     []*domain.Summary
	online   map[string]struct{}
	selected string
	history  []*domain.Message
}

func NewState(self string) *State {
	return &State{self: self, online: make(map[string]struct{})}
}

func (s *State) find(id string) *domain.Summary {
	for _, e := range s.list {
		if e.ID == id {
			return e
		}
	}
	return nil
}

// SetUsers replaces the list with a fresh server snapshot.
func (s *State) SetUsers(list []*domain.Summary) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.list = s.list[:0]
	for _, e := range list {
		if e == nil || e.ID == s.self {
			continue
		}
		cp := *e
		if cp.ID == s.selected {
			cp.UnreadCount = 0
		}
		s.list = append(s.list, &cp)
	}
	domain.SortSummaries(s.list)
}

// MergePresence folds a presence push into the held list. Known users never
// disappear; unknown online users get a minimal entry.
func (s *State) MergePresence(snap domain.PresenceSnapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.online = make(map[string]struct{}, len(snap.OnlineUserIDs))
	for _, id := range snap.OnlineUserIDs {
		s.online[id] = struct{}{}
	}
	known := make(map[string]domain.User, len(snap.Users))
	for _, u := range snap.Users {
		known[u.ID] = u
	}

	for _, id := range snap.OnlineUserIDs {
		if id == s.self || s.find(id) != nil {
			continue
		}
		u, ok := known[id]
		if !ok {
			u = domain.User{ID: id}
		}
		s.list = append(s.list, &domain.Summary{User: u})
	}
	for _, e := range s.list {
		_, e.IsOnline = s.online[e.ID]
	}
	domain.SortSummaries(s.list)
}

// Select opens the conversation with userID and zeroes its unread count
// before any server round trip.
func (s *State) Select(userID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.selected = userID
	s.history = nil
	if e := s.find(userID); e != nil {
		e.UnreadCount = 0
	}
}

func (s *State) Selected() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.selected
}

// SetHistory installs the fetched history when userID is still selected.
// Pushes that landed while the fetch was in flight are kept, matched by id.
func (s *State) SetHistory(userID string, msgs []*domain.Message) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if userID != s.selected {
		return
	}
	merged := make([]*domain.Message, 0, len(msgs)+len(s.history))
	seen := make(map[string]struct{}, len(msgs))
	for _, m := range msgs {
		if m == nil {
			continue
		}
		seen[m.ID] = struct{}{}
		merged = append(merged, m)
	}
	for _, m := range s.history {
		if _, ok := seen[m.ID]; !ok {
			merged = append(merged, m)
		}
	}
	sort.SliceStable(merged, func(i, j int) bool { return merged[j].Newer(merged[i]) })
	s.history = merged
}

func (s *State) inHistory(id string) bool {
	for _, m := range s.history {
		if m.ID == id {
			return true
		}
	}
	return false
}

// HandleMessage applies a pushed delivery.
func (s *State) HandleMessage(m *domain.Message) {
	if m == nil {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	other := m.Counterpart(s.self)
	if other == "" {
		return
	}
	e := s.find(other)
	if e == nil {
		e = &domain.Summary{User: domain.User{ID: other}}
		_, e.IsOnline = s.online[other]
		s.list = append(s.list, e)
	}
	if other == s.selected {
		if !s.inHistory(m.ID) {
			s.history = append(s.history, m)
		}
	} else if m.ReceiverID == s.self {
		e.UnreadCount++
	}
	touch(e, m)
	domain.SortSummaries(s.list)
}

// ApplySent patches the sidebar after a successful send.
func (s *State) ApplySent(m *domain.Message) {
	if m == nil {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if m.ReceiverID == s.selected {
		s.history = append(s.history, m)
	}
	if e := s.find(m.ReceiverID); e != nil {
		touch(e, m)
		domain.SortSummaries(s.list)
	}
}

func touch(e *domain.Summary, m *domain.Message) {
	at := m.CreatedAt
	if e.LastMessageAt != nil && e.LastMessageAt.After(at) {
		return
	}
	e.LastMessageAt = &at
	e.LastMessage = m.Preview()
}

// Summaries returns a copy of the ordered list.
func (s *State) Summaries() []domain.Summary {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]domain.Summary, len(s.list))
	for i, e := range s.list {
		out[i] = *e
		if e.LastMessageAt != nil {
			t := *e.LastMessageAt
			out[i].LastMessageAt = &t
		}
	}
	return out
}

func (s *State) History() []*domain.Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]*domain.Message(nil), s.history...)
}

func (s *State) IsOnline(userID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.online[userID]
	return ok
}
