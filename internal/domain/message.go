package domain

import (
	"time"

	"github.com/google/uuid"
)

type Message struct {
	ID         string    `bson:"_id" json:"_id"`
	SenderID   string    `bson:"senderId" json:"senderId"`
	ReceiverID string    `bson:"receiverId" json:"receiverId"`
	Text       string    `bson:"text,omitempty" json:"text,omitempty"`
	Image      string    `bson:"image,omitempty" json:"image,omitempty"`
	IsRead     bool      `bson:"isRead" json:"isRead"`
	CreatedAt  time.Time `bson:"createdAt" json:"createdAt"`
	// Seq is assigned by the store on insert and breaks ties between equal CreatedAt values.
	Seq int64 `bson:"seq" json:"seq"`
}

// Content is the caller-supplied body of an outgoing message.
type Content struct {
	Text  string `json:"text"`
	Image string `json:"image"`
}

func (c Content) Empty() bool { return c.Text == "" && c.Image == "" }

func NewMessage(senderID, receiverID string, c Content, now time.Time) *Message {
	return &Message{
		ID:         uuid.NewString(),
		SenderID:   senderID,
		ReceiverID: receiverID,
		Text:       c.Text,
		Image:      c.Image,
		IsRead:     false,
		CreatedAt:  now.UTC(),
	}
}

// Counterpart returns the other participant of m as seen from userID.
func (m *Message) Counterpart(userID string) string {
	if m.SenderID == userID {
		return m.ReceiverID
	}
	return m.SenderID
}

// Preview builds the sidebar preview for m. Images win over text.
func (m *Message) Preview() *LastMessage {
	switch {
	case m.Image != "":
		return &LastMessage{Type: PreviewImage, Content: ""}
	case m.Text != "":
		return &LastMessage{Type: PreviewText, Content: m.Text}
	default:
		return nil
	}
}

// Newer reports whether m sorts after other in conversation order.
func (m *Message) Newer(other *Message) bool {
	if other == nil {
		return true
	}
	if !m.CreatedAt.Equal(other.CreatedAt) {
		return m.CreatedAt.After(other.CreatedAt)
	}
	return m.Seq > other.Seq
}
