package protocol

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/creastat/merging/core"
	"github.com/google/uuid"
)

// EventToMessage converts a lifecycle event to an output message
func EventToMessage(event core.Event, sessionID string) *OutputMessage {
	msg := &OutputMessage{
		ID:        generateMessageID(),
		SessionID: sessionID,
		Timestamp: time.Now().UnixMilli(),
	}

	switch e := event.(type) {
	case core.SourceReadyEvent:
		msg.Type = OutputSourceReady
		msg.Payload = SourceReadyPayload{
			Index:       e.Index,
			Name:        e.Name,
			PeriodCount: e.PeriodCount,
			Pending:     e.Pending,
		}

	case core.MergeReadyEvent:
		msg.Type = OutputMergeReady
		msg.Payload = MergeReadyPayload{
			SourceCount: e.SourceCount,
			PeriodCount: e.PeriodCount,
		}

	case core.MergeFailedEvent:
		msg.Type = OutputMergeFailed
		errMsg := ""
		if e.Err != nil {
			errMsg = e.Err.Error()
		}
		msg.Payload = MergeFailedPayload{
			Index:   e.Index,
			Name:    e.Name,
			Reason:  e.Reason,
			Message: errMsg,
		}

	case core.PeriodCreatedEvent:
		msg.Type = OutputPeriodCreated
		msg.Payload = PeriodPayloadRef{
			PeriodIndex:          e.ID.PeriodIndex,
			WindowSequenceNumber: e.ID.WindowSequenceNumber,
			SourceCount:          e.SourceCount,
		}

	case core.PeriodReleasedEvent:
		msg.Type = OutputPeriodReleased
		msg.Payload = PeriodPayloadRef{
			PeriodIndex:          e.ID.PeriodIndex,
			WindowSequenceNumber: e.ID.WindowSequenceNumber,
		}

	case core.ReleasedEvent:
		msg.Type = OutputReleased
		msg.Payload = ReleasedPayload{
			PreviousStatus: MapState(e.Previous),
		}

	default:
		// Unknown event type, skip
		return nil
	}

	return msg
}

// NewStatusMessage creates a status message
func NewStatusMessage(sessionID string, status StatusType, message string) *OutputMessage {
	return &OutputMessage{
		Type:      OutputStatus,
		ID:        generateMessageID(),
		SessionID: sessionID,
		Payload: StatusPayload{
			Status:  status,
			Message: message,
		},
		Timestamp: time.Now().UnixMilli(),
	}
}

// NewErrorMessage creates an error message
func NewErrorMessage(sessionID, replyTo, code, message string, retryable bool, details any) *OutputMessage {
	return &OutputMessage{
		Type:      OutputError,
		ID:        generateMessageID(),
		SessionID: sessionID,
		ReplyTo:   replyTo,
		Payload: ErrorPayload{
			Code:      code,
			Message:   message,
			Retryable: retryable,
			Details:   details,
		},
		Timestamp: time.Now().UnixMilli(),
	}
}

// NewTimelineMessage creates a source.timeline message announcing timeline.
// manifest is marshaled to JSON and may be nil.
func NewTimelineMessage(sessionID string, timeline core.StaticTimeline, manifest any) (*InputMessage, error) {
	payload := TimelinePayload{
		Periods: make([]PeriodPayload, len(timeline.Periods)),
	}
	for i, p := range timeline.Periods {
		payload.Periods[i] = PeriodPayload{
			ID:         p.ID,
			DurationMs: p.Duration.Milliseconds(),
		}
	}

	if manifest != nil {
		raw, err := json.Marshal(manifest)
		if err != nil {
			return nil, fmt.Errorf("marshal manifest: %w", err)
		}
		payload.Manifest = raw
	}

	return newInputMessage(InputTimeline, sessionID, payload)
}

// NewSourceErrorMessage creates a source.error message
func NewSourceErrorMessage(sessionID, code, message string, retryable bool) (*InputMessage, error) {
	return newInputMessage(InputError, sessionID, ErrorPayload{
		Code:      code,
		Message:   message,
		Retryable: retryable,
	})
}

func newInputMessage(msgType InputMessageType, sessionID string, payload any) (*InputMessage, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal %s payload: %w", msgType, err)
	}
	return &InputMessage{
		Type:      msgType,
		ID:        generateMessageID(),
		SessionID: sessionID,
		Payload:   raw,
		Timestamp: time.Now().UnixMilli(),
	}, nil
}

// ParseTimeline decodes a source.timeline payload. The manifest is returned
// as raw JSON.
func ParseTimeline(payload json.RawMessage) (core.StaticTimeline, json.RawMessage, error) {
	var tp TimelinePayload
	if err := json.Unmarshal(payload, &tp); err != nil {
		return core.StaticTimeline{}, nil, fmt.Errorf("decode timeline payload: %w", err)
	}

	timeline := core.StaticTimeline{
		Periods: make([]core.PeriodInfo, len(tp.Periods)),
	}
	for i, p := range tp.Periods {
		if p.DurationMs < 0 {
			return core.StaticTimeline{}, nil, fmt.Errorf("period %d has negative duration %d", i, p.DurationMs)
		}
		timeline.Periods[i] = core.PeriodInfo{
			ID:       p.ID,
			Duration: time.Duration(p.DurationMs) * time.Millisecond,
		}
	}

	return timeline, tp.Manifest, nil
}

// ParseError decodes a source.error payload
func ParseError(payload json.RawMessage) (ErrorPayload, error) {
	var ep ErrorPayload
	if err := json.Unmarshal(payload, &ep); err != nil {
		return ErrorPayload{}, fmt.Errorf("decode error payload: %w", err)
	}
	return ep, nil
}

// MapState maps core.State to protocol.StatusType
func MapState(s core.State) StatusType {
	switch s {
	case core.StateUnprepared:
		return StatusUnprepared
	case core.StatePreparing:
		return StatusPreparing
	case core.StateMerged:
		return StatusMerged
	case core.StateFailed:
		return StatusFailed
	case core.StateReleased:
		return StatusReleased
	default:
		return StatusPreparing
	}
}

// generateMessageID generates a unique message ID
func generateMessageID() string {
	return "msg-" + uuid.NewString()
}
