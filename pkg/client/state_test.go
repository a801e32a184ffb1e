package client

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fathima-sithara/presence-service/internal/domain"
)

func order(st *State) []string {
	var out []string
	for _, s := range st.Summaries() {
		out = append(out, s.ID)
	}
	return out
}

func ptime(t time.Time) *time.Time { return &t }

func seeded() *State {
	st := NewState("me")
	t0 := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	st.SetUsers([]*domain.Summary{
		{User: domain.User{ID: "ann", FullName: "Ann"}, LastMessageAt: ptime(t0), UnreadCount: 3},
		{User: domain.User{ID: "bob", FullName: "Bob"}, LastMessageAt: ptime(t0.Add(time.Hour))},
		{User: domain.User{ID: "cid", FullName: "Cid"}},
	})
	return st
}

func TestSetUsers_SortsAndSkipsSelf(t *testing.T) {
	st := NewState("me")
	st.SetUsers([]*domain.Summary{
		{User: domain.User{ID: "me"}},
		{User: domain.User{ID: "b", FullName: "B"}},
		{User: domain.User{ID: "a", FullName: "A"}, IsOnline: true},
	})
	assert.Equal(t, []string{"a", "b"}, order(st))
}

func TestMergePresence_KeepsKnownUsersAndCounts(t *testing.T) {
	st := seeded()
	st.MergePresence(domain.PresenceSnapshot{
		OnlineUserIDs: []string{"cid", "me", "zed"},
		Users:         []domain.User{{ID: "zed", FullName: "Zed"}},
	})

	got := st.Summaries()
	require.Len(t, got, 4, "self is never added; unknown online users are")
	assert.Equal(t, []string{"cid", "zed", "bob", "ann"}, order(st))
	assert.True(t, got[0].IsOnline)
	assert.Equal(t, "Zed", got[1].FullName)
	assert.Equal(t, 3, got[3].UnreadCount)

	st.MergePresence(domain.PresenceSnapshot{OnlineUserIDs: []string{}})
	assert.Len(t, st.Summaries(), 4, "presence never removes entries")
	for _, s := range st.Summaries() {
		assert.False(t, s.IsOnline)
	}
	assert.Equal(t, []string{"bob", "ann", "cid", "zed"}, order(st))
}

func TestSelect_ZeroesUnreadOptimistically(t *testing.T) {
	st := seeded()
	st.Select("ann")
	for _, s := range st.Summaries() {
		if s.ID == "ann" {
			assert.Zero(t, s.UnreadCount)
		}
	}
	assert.Equal(t, "ann", st.Selected())
}

func TestHandleMessage(t *testing.T) {
	st := seeded()
	st.Select("bob")
	st.SetHistory("bob", []*domain.Message{{ID: "old", SenderID: "me", ReceiverID: "bob"}})

	now := time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC)
	st.HandleMessage(&domain.Message{ID: "m1", SenderID: "bob", ReceiverID: "me", Text: "yo", CreatedAt: now})
	require.Len(t, st.History(), 2)
	assert.Equal(t, "m1", st.History()[1].ID)

	st.HandleMessage(&domain.Message{ID: "m2", SenderID: "cid", ReceiverID: "me", Image: "pic", CreatedAt: now.Add(time.Minute)})
	got := st.Summaries()
	assert.Equal(t, "cid", got[0].ID, "most recent conversation moves up")
	assert.Equal(t, 1, got[0].UnreadCount)
	assert.Equal(t, domain.PreviewImage, got[0].LastMessage.Type)
	assert.Equal(t, "bob", got[1].ID)
	assert.Zero(t, got[1].UnreadCount, "open conversation does not count unread")
	assert.Equal(t, "yo", got[1].LastMessage.Content)
	assert.Len(t, st.History(), 2)

	st.HandleMessage(&domain.Message{ID: "m3", SenderID: "new", ReceiverID: "me", Text: "hi", CreatedAt: now})
	assert.Len(t, st.Summaries(), 4)
}

func TestApplySent(t *testing.T) {
	st := seeded()
	st.Select("ann")
	m := &domain.Message{ID: "s1", SenderID: "me", ReceiverID: "ann", Text: "back", CreatedAt: time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)}
	st.ApplySent(m)

	got := st.Summaries()
	assert.Equal(t, "ann", got[0].ID)
	assert.Equal(t, "back", got[0].LastMessage.Content)
	assert.Len(t, st.History(), 1)
}

func TestSetHistory_IgnoresStaleSelection(t *testing.T) {
	st := seeded()
	st.Select("ann")
	st.Select("bob")
	st.SetHistory("ann", []*domain.Message{{ID: "x"}})
	assert.Empty(t, st.History())
}

func TestSetHistory_KeepsPushesThatRacedTheFetch(t *testing.T) {
	st := seeded()
	t0 := time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC)
	old1 := &domain.Message{ID: "m1", SenderID: "ann", ReceiverID: "me", CreatedAt: t0, Seq: 1}
	old2 := &domain.Message{ID: "m2", SenderID: "me", ReceiverID: "ann", CreatedAt: t0.Add(time.Minute), Seq: 2}
	pushed := &domain.Message{ID: "m3", SenderID: "ann", ReceiverID: "me", CreatedAt: t0.Add(2 * time.Minute), Seq: 3}

	st.Select("ann")
	st.HandleMessage(pushed)
	st.SetHistory("ann", []*domain.Message{old1, old2})

	var ids []string
	for _, m := range st.History() {
		ids = append(ids, m.ID)
	}
	assert.Equal(t, []string{"m1", "m2", "m3"}, ids)

	// the fetch already had it and the push arrives afterwards
	st.HandleMessage(old2)
	assert.Len(t, st.History(), 3)
}
