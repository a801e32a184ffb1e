package domain

import (
	"sort"
	"time"
)

type PreviewKind string

const (
	PreviewText  PreviewKind = "text"
	PreviewImage PreviewKind = "image"
)

type LastMessage struct {
	Type    PreviewKind `json:"type"`
	Content string      `json:"content"`
}

// Summary is one row of a user's conversation list, keyed by the counterpart.
type Summary struct {
	User
	LastMessageAt *time.Time   `json:"lastMessageAt"`
	LastMessage   *LastMessage `json:"lastMessage"`
	UnreadCount   int          `json:"unreadCount"`
	IsOnline      bool         `json:"isOnline"`
}

func (s *Summary) lastAt() int64 {
	if s.LastMessageAt == nil {
		return 0
	}
	return s.LastMessageAt.UnixNano()
}

// Less orders online before offline, then most recent conversation first,
// then by display name. Ids settle exact duplicates so the order is total.
func Less(a, b *Summary) bool {
	if a.IsOnline != b.IsOnline {
		return a.IsOnline
	}
	if at, bt := a.lastAt(), b.lastAt(); at != bt {
		return at > bt
	}
	if a.FullName != b.FullName {
		return a.FullName < b.FullName
	}
	return a.ID < b.ID
}

func SortSummaries(list []*Summary) {
	sort.SliceStable(list, func(i, j int) bool { return Less(list[i], list[j]) })
}
