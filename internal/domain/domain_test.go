package domain

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func at(sec int64) *time.Time {
	t := time.Unix(sec, 0).UTC()
	return &t
}

func ids(list []*Summary) []string {
	out := make([]string, len(list))
	for i, s := range list {
		out[i] = s.ID
	}
	return out
}

func TestSortSummaries_ThreeKeys(t *testing.T) {
	list := []*Summary{
		{User: User{ID: "a", FullName: "Zed"}},
		{User: User{ID: "b", FullName: "Amy"}, LastMessageAt: at(100)},
		{User: User{ID: "c", FullName: "Bob"}, IsOnline: true},
		{User: User{ID: "d", FullName: "Cat"}, IsOnline: true, LastMessageAt: at(50)},
		{User: User{ID: "e", FullName: "Abe"}},
		{User: User{ID: "f", FullName: "Dan"}, LastMessageAt: at(200)},
	}
	SortSummaries(list)
	assert.Equal(t, []string{"d", "c", "f", "b", "e", "a"}, ids(list))
}

func TestSortSummaries_Deterministic(t *testing.T) {
	mk := func() []*Summary {
		return []*Summary{
			{User: User{ID: "2", FullName: "Same"}},
			{User: User{ID: "1", FullName: "Same"}},
		}
	}
	a, b := mk(), mk()
	b[0], b[1] = b[1], b[0]
	SortSummaries(a)
	SortSummaries(b)
	assert.Equal(t, ids(a), ids(b))
	assert.Equal(t, []string{"1", "2"}, ids(a))
}

func TestSortSummaries_NameIsCaseRespecting(t *testing.T) {
	list := []*Summary{
		{User: User{ID: "1", FullName: "alice"}},
		{User: User{ID: "2", FullName: "Bob"}},
	}
	SortSummaries(list)
	assert.Equal(t, []string{"2", "1"}, ids(list))
}

func TestMessage_Preview(t *testing.T) {
	tests := []struct {
		name string
		msg  Message
		want *LastMessage
	}{
		{"text", Message{Text: "hi"}, &LastMessage{Type: PreviewText, Content: "hi"}},
		{"image wins", Message{Text: "hi", Image: "http://x/y.png"}, &LastMessage{Type: PreviewImage, Content: ""}},
		{"image only", Message{Image: "http://x/y.png"}, &LastMessage{Type: PreviewImage}},
		{"empty", Message{}, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.msg.Preview())
		})
	}
}

func TestMessage_NewerTiebreak(t *testing.T) {
	ts := time.Now()
	a := &Message{CreatedAt: ts, Seq: 1}
	b := &Message{CreatedAt: ts, Seq: 2}
	c := &Message{CreatedAt: ts.Add(time.Second), Seq: 0}

	assert.True(t, b.Newer(a))
	assert.False(t, a.Newer(b))
	assert.True(t, c.Newer(b))
	assert.True(t, a.Newer(nil))
}

func TestNewMessage(t *testing.T) {
	now := time.Date(2024, 1, 2, 3, 4, 5, 0, time.FixedZone("x", 3600))
	m := NewMessage("s", "r", Content{Text: "hello"}, now)

	assert.NotEmpty(t, m.ID)
	assert.False(t, m.IsRead)
	assert.Equal(t, time.UTC, m.CreatedAt.Location())
	assert.True(t, m.CreatedAt.Equal(now))
	assert.Equal(t, "r", m.Counterpart("s"))
	assert.Equal(t, "s", m.Counterpart("r"))
}

func TestStorageError(t *testing.T) {
	base := errors.New("dial tcp: refused")
	err := NewStorageError("insert message", base)

	require.Error(t, err)
	assert.ErrorIs(t, err, ErrStorage)
	assert.ErrorIs(t, err, base)
	assert.Contains(t, err.Error(), "insert message")

	wrapped := fmt.Errorf("send: %w", err)
	assert.ErrorIs(t, wrapped, ErrStorage)

	again := NewStorageError("other", err)
	var se *StorageError
	require.ErrorAs(t, again, &se)
	assert.Equal(t, "insert message", se.Op)

	assert.NoError(t, NewStorageError("noop", nil))
}
