package domain

// Event kinds pushed over a live connection.
const (
	EventPresenceSnapshot = "presence_snapshot"
	EventMessageDelivered = "message_delivered"
	EventPong             = "pong"
)

// Event is the wire envelope for everything pushed over a live connection.
type Event struct {
	Type    string `json:"type"`
	Payload any    `json:"payload,omitempty"`
}

type PresenceSnapshot struct {
	OnlineUserIDs []string `json:"online_user_ids"`
	Users         []User   `json:"users"`
}

func NewPresenceEvent(s PresenceSnapshot) Event {
	return Event{Type: EventPresenceSnapshot, Payload: s}
}

func NewDeliveryEvent(m *Message) Event {
	return Event{Type: EventMessageDelivered, Payload: m}
}
