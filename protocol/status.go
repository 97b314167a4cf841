package protocol

// StatusType defines the lifecycle status reported to monitors
type StatusType string

const (
	StatusUnprepared StatusType = "unprepared" // Not prepared yet
	StatusPreparing  StatusType = "preparing"  // Waiting for sources
	StatusMerged     StatusType = "merged"     // All sources reported compatible timelines
	StatusFailed     StatusType = "failed"     // Sources cannot be merged
	StatusReleased   StatusType = "released"   // Source released
)

// StatusPayload for status messages
type StatusPayload struct {
	Status  StatusType `json:"status"`
	Message string     `json:"message,omitempty"` // Human-readable description
	Details any        `json:"details,omitempty"` // Additional details
}
