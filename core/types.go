package core

import "time"

// Timeline describes the structure of a playable item
type Timeline interface {
	PeriodCount() int
}

// PeriodInfo describes one period of a StaticTimeline
type PeriodInfo struct {
	ID       string
	Duration time.Duration
}

// StaticTimeline is a Timeline with a fixed list of periods
type StaticTimeline struct {
	Periods []PeriodInfo
}

// NewStaticTimeline creates a timeline of count periods with equal durations
func NewStaticTimeline(count int, duration time.Duration) StaticTimeline {
	periods := make([]PeriodInfo, count)
	for i := range periods {
		periods[i] = PeriodInfo{Duration: duration}
	}
	return StaticTimeline{Periods: periods}
}

// PeriodCount returns the number of periods
func (t StaticTimeline) PeriodCount() int {
	return len(t.Periods)
}

// Duration returns the summed duration of all periods
func (t StaticTimeline) Duration() time.Duration {
	var total time.Duration
	for _, p := range t.Periods {
		total += p.Duration
	}
	return total
}

// State is the lifecycle state of a merging source
type State int

const (
	StateUnprepared State = iota
	StatePreparing
	StateMerged
	StateFailed
	StateReleased
)

func (s State) String() string {
	switch s {
	case StateUnprepared:
		return "unprepared"
	case StatePreparing:
		return "preparing"
	case StateMerged:
		return "merged"
	case StateFailed:
		return "failed"
	case StateReleased:
		return "released"
	default:
		return "unknown"
	}
}

// Terminal reports whether no further preparation progress is possible
func (s State) Terminal() bool {
	return s == StateMerged || s == StateFailed || s == StateReleased
}

// EventType categorizes lifecycle events
type EventType string

const (
	EventTypeSourceReady    EventType = "source_ready"
	EventTypeMergeReady     EventType = "merge_ready"
	EventTypeMergeFailed    EventType = "merge_failed"
	EventTypePeriodCreated  EventType = "period_created"
	EventTypePeriodReleased EventType = "period_released"
	EventTypeReleased       EventType = "released"
)
