package core

import "context"

// Source is one independently prepared source of timeline information and
// periods. A Source is prepared once, may create and release any number of
// periods, and is released once.
type Source interface {
	// Prepare starts asynchronous preparation. The listener is invoked exactly
	// once, from any goroutine, when the source knows its timeline.
	Prepare(ctx context.Context, listener Listener) error

	// PollError returns a pending preparation or I/O error without blocking.
	PollError() error

	// CreatePeriod returns a new period for the given identity.
	CreatePeriod(id PeriodID, allocator Allocator) (Period, error)

	// ReleasePeriod releases a period previously returned by CreatePeriod.
	ReleasePeriod(period Period) error

	// ReleaseSource releases all resources held by the source.
	ReleaseSource() error
}

// Listener receives the timeline and manifest of a prepared source
type Listener interface {
	OnSourceInfo(source Source, timeline Timeline, manifest any)
}

// ListenerFunc adapts a function to the Listener interface
type ListenerFunc func(source Source, timeline Timeline, manifest any)

// OnSourceInfo calls f(source, timeline, manifest)
func (f ListenerFunc) OnSourceInfo(source Source, timeline Timeline, manifest any) {
	f(source, timeline, manifest)
}

// PeriodID identifies a period within a timeline
type PeriodID struct {
	// PeriodIndex is the index of the period in the timeline
	PeriodIndex int

	// WindowSequenceNumber distinguishes repeated playback of the same period
	WindowSequenceNumber int64
}

// Period is a live handle used to pull content for one timeline period
type Period interface {
	ID() PeriodID
}

// Allocator hands out buffers to periods. Sources treat it as shared,
// read-only configuration.
type Allocator interface {
	Allocate(size int) []byte
	Release(buf []byte)
}

// PeriodFactory combines index-aligned child periods into one composite
// period that multiplexes their streams.
type PeriodFactory interface {
	Combine(id PeriodID, periods []Period) Period
}

// PeriodFactoryFunc adapts a function to the PeriodFactory interface
type PeriodFactoryFunc func(id PeriodID, periods []Period) Period

// Combine calls f(id, periods)
func (f PeriodFactoryFunc) Combine(id PeriodID, periods []Period) Period {
	return f(id, periods)
}
