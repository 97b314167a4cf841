package protocol

// OutputMessageType defines monitor-facing message types
type OutputMessageType string

const (
	// Status updates
	OutputStatus OutputMessageType = "status" // Status change notification

	// Preparation
	OutputSourceReady OutputMessageType = "merge.source_ready" // One source reported its timeline
	OutputMergeReady  OutputMessageType = "merge.ready"        // Every source reported
	OutputMergeFailed OutputMessageType = "merge.failed"       // Sources cannot be merged

	// Periods
	OutputPeriodCreated  OutputMessageType = "merge.period_created"
	OutputPeriodReleased OutputMessageType = "merge.period_released"

	// Lifecycle
	OutputReleased OutputMessageType = "merge.released"

	// Errors
	OutputError OutputMessageType = "error"
)

// OutputMessage represents a message to a monitor
type OutputMessage struct {
	Type      OutputMessageType `json:"type"`
	ID        string            `json:"id"`                // Server-generated message ID
	SessionID string            `json:"sessionId"`         // Session identifier
	ReplyTo   string            `json:"replyTo,omitempty"` // ID of input message
	Payload   any               `json:"payload"`
	Timestamp int64             `json:"timestamp"`
}

// SourceReadyPayload for merge.source_ready
type SourceReadyPayload struct {
	Index       int    `json:"index"`
	Name        string `json:"name,omitempty"`
	PeriodCount int    `json:"periodCount"`
	Pending     int    `json:"pending"` // Sources still to report
}

// MergeReadyPayload for merge.ready
type MergeReadyPayload struct {
	SourceCount int `json:"sourceCount"`
	PeriodCount int `json:"periodCount"`
}

// MergeFailedPayload for merge.failed
type MergeFailedPayload struct {
	Index   int    `json:"index"`
	Name    string `json:"name,omitempty"`
	Reason  string `json:"reason"`
	Message string `json:"message"`
}

// PeriodPayloadRef identifies a period in period lifecycle messages
type PeriodPayloadRef struct {
	PeriodIndex          int   `json:"periodIndex"`
	WindowSequenceNumber int64 `json:"windowSequenceNumber"`
	SourceCount          int   `json:"sourceCount,omitempty"`
}

// ReleasedPayload for merge.released
type ReleasedPayload struct {
	PreviousStatus StatusType `json:"previousStatus"`
}

// ErrorPayload for error messages, in both directions
type ErrorPayload struct {
	Code      string `json:"code"`
	Message   string `json:"message"`
	Retryable bool   `json:"retryable"`
	Details   any    `json:"details,omitempty"`
}
