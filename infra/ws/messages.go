package ws

import "encoding/json"

// Envelope wraps all WebSocket messages with a type discriminator.
type Envelope struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// Server -> Client
const (
	TypeSnapshot   = "snapshot"
	TypeDaySummary = "day_summary"
	TypeError      = "error"
)

// Client -> Server
const (
	TypeCommand = "command"
)

// SnapshotPayload carries one tick of a session.
type SnapshotPayload struct {
	SessionID string `json:"sessionId"`
	Snapshot  any    `json:"snapshot"`
}

// DaySummaryPayload carries the totals of a completed day.
type DaySummaryPayload struct {
	SessionID string `json:"sessionId"`
	Summary   any    `json:"summary"`
}

type ErrorPayload struct {
	Message string `json:"message"`
}

// NewEnvelope marshals payload under msgType. A nil payload is omitted.
func NewEnvelope(msgType string, payload any) ([]byte, error) {
	var raw json.RawMessage
	if payload != nil {
		var err error
		raw, err = json.Marshal(payload)
		if err != nil {
			return nil, err
		}
	}
	return json.Marshal(Envelope{Type: msgType, Payload: raw})
}
