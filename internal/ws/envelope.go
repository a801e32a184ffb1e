package ws

import "encoding/json"

// Envelope is the inbound wire format. Clients only ever send pings; the
// server pushes domain.Event values.
type Envelope struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

const inboundPing = "ping"
