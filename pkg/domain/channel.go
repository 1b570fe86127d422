package domain

import (
	"time"

	json "github.com/goccy/go-json"
)

// Channel event names exchanged with the remote process.
const (
	EventMessage  = "message"
	EventContinue = "continue"
)

// ContinuePayload is the fixed payload of the outbound continue event.
var ContinuePayload = json.RawMessage(`"continue"`)

// ChannelEvent is one named frame on the message channel.
type ChannelEvent struct {
	Name string          `json:"event"`
	Data json.RawMessage `json:"data,omitempty"`
}

// JournalEntry is one inbound event recorded for later inspection or replay.
type JournalEntry struct {
	RunID      string          `json:"run_id"`
	Seq        uint64          `json:"seq"`
	Event      string          `json:"event"`
	Payload    json.RawMessage `json:"payload"`
	ReceivedAt time.Time       `json:"received_at"`
}
