package sources

import (
	"errors"
	"fmt"
)

var (
	ErrSourcePrepared   = errors.New("sources: source already prepared")
	ErrSourceReleased   = errors.New("sources: source released")
	ErrNotPrepared      = errors.New("sources: timeline not known yet")
	ErrUnknownPeriod    = errors.New("sources: period not created by this source or already released")
	ErrPeriodOutOfRange = errors.New("sources: period index out of range")
)

// PeerError is a failure reported by the remote peer of a WebSocketSource
type PeerError struct {
	Code      string
	Message   string
	Retryable bool
}

func (e *PeerError) Error() string {
	return fmt.Sprintf("peer error %s: %s", e.Code, e.Message)
}
