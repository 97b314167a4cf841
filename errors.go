package merging

import (
	"errors"
	"fmt"
)

var (
	// ErrMergeIncompatible matches every *MergeError through errors.Is
	ErrMergeIncompatible = errors.New("merging: sources cannot be merged")

	ErrAlreadyPrepared = errors.New("merging: source already prepared")
	ErrReleased        = errors.New("merging: source released")
	ErrNilListener     = errors.New("merging: nil listener")
	ErrForeignPeriod   = errors.New("merging: period was not created by this source")
	ErrPeriodReleased  = errors.New("merging: period already released")
)

// Reason is the reason a merge failed
type Reason int

const (
	// ReasonPeriodCountMismatch means the sources have different period counts
	ReasonPeriodCountMismatch Reason = iota
)

func (r Reason) String() string {
	switch r {
	case ReasonPeriodCountMismatch:
		return "period count mismatch"
	default:
		return "unknown"
	}
}

// MergeError is the structural incompatibility latched by a MergingSource
type MergeError struct {
	Reason Reason

	// Index is the child whose report exposed the incompatibility
	Index int

	// Expected is the period count established by the first report
	Expected int

	// Actual is the period count reported by Index
	Actual int
}

func (e *MergeError) Error() string {
	return fmt.Sprintf("merging: %s: source %d has %d periods, expected %d", e.Reason, e.Index, e.Actual, e.Expected)
}

func (e *MergeError) Unwrap() error {
	return ErrMergeIncompatible
}

// IsMergeError reports whether err is a latched merge incompatibility and
// returns it
func IsMergeError(err error) (*MergeError, bool) {
	var mergeErr *MergeError
	if errors.As(err, &mergeErr) {
		return mergeErr, true
	}
	return nil, false
}
