package protocol

import "encoding/json"

// InputMessageType defines peer-to-source message types
type InputMessageType string

const (
	// Timeline announcement, sent once the peer knows its timeline
	InputTimeline InputMessageType = "source.timeline"

	// Peer-side preparation or I/O failure
	InputError InputMessageType = "source.error"
)

// InputMessage represents a message from a remote peer
type InputMessage struct {
	Type      InputMessageType `json:"type"`
	ID        string           `json:"id"`        // Peer-generated message ID
	SessionID string           `json:"sessionId"` // Session identifier
	Payload   json.RawMessage  `json:"payload"`
	Timestamp int64            `json:"timestamp"`
}

// TimelinePayload for source.timeline
type TimelinePayload struct {
	Periods  []PeriodPayload `json:"periods"`
	Manifest json.RawMessage `json:"manifest,omitempty"` // Passed through untouched
}

// PeriodPayload describes one period of an announced timeline
type PeriodPayload struct {
	ID         string `json:"id,omitempty"`
	DurationMs int64  `json:"durationMs"`
}
