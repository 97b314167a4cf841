package core

// Event represents any merging source lifecycle event
type Event interface {
	EventType() EventType
}

// Observer receives lifecycle events. It is called synchronously and must
// not block.
type Observer func(Event)

// SourceReadyEvent is emitted when a child reports its timeline and the
// report is accepted
type SourceReadyEvent struct {
	Index       int
	Name        string
	PeriodCount int
	Pending     int
}

func (e SourceReadyEvent) EventType() EventType {
	return EventTypeSourceReady
}

// MergeReadyEvent is emitted once, when every child has reported
type MergeReadyEvent struct {
	SourceCount int
	PeriodCount int
}

func (e MergeReadyEvent) EventType() EventType {
	return EventTypeMergeReady
}

// MergeFailedEvent is emitted once, when the first incompatibility is latched
type MergeFailedEvent struct {
	Index  int
	Name   string
	Reason string
	Err    error
}

func (e MergeFailedEvent) EventType() EventType {
	return EventTypeMergeFailed
}

// PeriodCreatedEvent signals a composite period was created
type PeriodCreatedEvent struct {
	ID          PeriodID
	SourceCount int
}

func (e PeriodCreatedEvent) EventType() EventType {
	return EventTypePeriodCreated
}

// PeriodReleasedEvent signals a composite period was released
type PeriodReleasedEvent struct {
	ID PeriodID
}

func (e PeriodReleasedEvent) EventType() EventType {
	return EventTypePeriodReleased
}

// ReleasedEvent signals the merging source was released. Previous is the
// state the source was in when released.
type ReleasedEvent struct {
	Previous State
}

func (e ReleasedEvent) EventType() EventType {
	return EventTypeReleased
}
