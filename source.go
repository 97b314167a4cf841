package merging

import (
	"context"
	"fmt"
	"sync"

	"github.com/creastat/infra/telemetry"
	"github.com/creastat/merging/core"
)

const moduleName = "merging_source"

// Config holds MergingSource configuration
type Config struct {
	// Sources are merged in order. Index 0 is the primary source whose
	// timeline and manifest become the merged result.
	Sources []core.Source

	// Names label sources in logs and events. Optional; may be shorter
	// than Sources.
	Names []string

	// PeriodFactory combines child periods. Defaults to DefaultPeriodFactory.
	PeriodFactory core.PeriodFactory

	// FanOut configures period creation across sources
	FanOut core.FanOutConfig

	// Observer receives lifecycle events. Optional.
	Observer core.Observer

	Logger telemetry.Logger
}

// MergingSource merges several sources into one. The merged timeline is the
// primary source's, and it is only reported once every source has reported
// a timeline with the same period count.
type MergingSource struct {
	config Config
	router *FanOutRouter

	// mergeErr is read without holding mu
	mergeErr errorLatch

	mu              sync.Mutex
	state           core.State
	listener        core.Listener
	barrier         *readinessBarrier
	periodCount     periodCountCheck
	primaryTimeline core.Timeline
	primaryManifest any

	done     chan struct{}
	doneOnce sync.Once
}

// New creates a merging source over config.Sources. Nothing is validated;
// use Builder for validated construction.
func New(config Config) *MergingSource {
	if config.PeriodFactory == nil {
		config.PeriodFactory = DefaultPeriodFactory
	}
	return &MergingSource{
		config:      config,
		router:      NewFanOutRouter(config.FanOut, config.Sources),
		state:       core.StateUnprepared,
		barrier:     newReadinessBarrier(len(config.Sources)),
		periodCount: newPeriodCountCheck(),
		done:        make(chan struct{}),
	}
}

// SourceCount returns the number of merged sources
func (ms *MergingSource) SourceCount() int {
	return len(ms.config.Sources)
}

// State returns the current lifecycle state
func (ms *MergingSource) State() core.State {
	ms.mu.Lock()
	defer ms.mu.Unlock()
	return ms.state
}

// Done returns a channel closed when the source is merged, failed or released
func (ms *MergingSource) Done() <-chan struct{} {
	return ms.done
}

// Prepare starts preparing every source without waiting for any of them.
// listener is invoked at most once, after all sources reported compatible
// timelines.
func (ms *MergingSource) Prepare(ctx context.Context, listener core.Listener) error {
	if listener == nil {
		return ErrNilListener
	}

	ms.mu.Lock()
	switch ms.state {
	case core.StateUnprepared:
	case core.StateReleased:
		ms.mu.Unlock()
		return ErrReleased
	default:
		ms.mu.Unlock()
		return ErrAlreadyPrepared
	}
	ms.state = core.StatePreparing
	ms.listener = listener
	ms.mu.Unlock()

	logger := ms.config.Logger.WithModule(moduleName)
	logger.Debug("Preparing merged sources", telemetry.Int("source_count", len(ms.config.Sources)))

	for i, src := range ms.config.Sources {
		index := i
		childListener := core.ListenerFunc(func(_ core.Source, timeline core.Timeline, manifest any) {
			ms.onSourceInfo(index, timeline, manifest)
		})
		if err := src.Prepare(ctx, childListener); err != nil {
			logger.Error("Failed to start source preparation", telemetry.Err(err), telemetry.Int("index", index), telemetry.String("name", ms.name(index)))
			return fmt.Errorf("prepare source %d: %w", index, err)
		}
	}

	return nil
}

// onSourceInfo handles the single report of source index
func (ms *MergingSource) onSourceInfo(index int, timeline core.Timeline, manifest any) {
	logger := ms.config.Logger.WithModule(moduleName)

	ms.mu.Lock()
	if !ms.barrier.markReported(index) {
		ms.mu.Unlock()
		panic(fmt.Sprintf("merging: source %d reported source info more than once", index))
	}

	if ms.state == core.StateReleased {
		ms.mu.Unlock()
		logger.Debug("Ignoring source info after release", telemetry.Int("index", index))
		return
	}

	// A latched error suppresses all further progress
	if ms.mergeErr.get() != nil {
		ms.mu.Unlock()
		logger.Debug("Ignoring source info after merge failure", telemetry.Int("index", index))
		return
	}

	if mergeErr := ms.periodCount.check(index, timeline); mergeErr != nil {
		ms.mergeErr.set(mergeErr)
		ms.state = core.StateFailed
		ms.mu.Unlock()

		ms.closeDone()
		logger.Warn("Sources cannot be merged", telemetry.Err(mergeErr), telemetry.Int("index", index), telemetry.String("name", ms.name(index)))
		ms.emit(core.MergeFailedEvent{Index: index, Name: ms.name(index), Reason: mergeErr.Reason.String(), Err: mergeErr})
		return
	}

	complete := ms.barrier.arrive(index)
	if index == 0 {
		ms.primaryTimeline = timeline
		ms.primaryManifest = manifest
	}
	pending := ms.barrier.Pending()

	var (
		listener        core.Listener
		primaryTimeline core.Timeline
		primaryManifest any
	)
	if complete {
		ms.state = core.StateMerged
		listener = ms.listener
		primaryTimeline = ms.primaryTimeline
		primaryManifest = ms.primaryManifest
	}
	ms.mu.Unlock()

	logger.Debug("Source reported timeline",
		telemetry.Int("index", index),
		telemetry.String("name", ms.name(index)),
		telemetry.Int("period_count", timeline.PeriodCount()),
		telemetry.Int("pending", pending))
	ms.emit(core.SourceReadyEvent{
		Index:       index,
		Name:        ms.name(index),
		PeriodCount: timeline.PeriodCount(),
		Pending:     pending,
	})

	if !complete {
		return
	}

	ms.closeDone()
	logger.Info("All sources merged", telemetry.Int("source_count", len(ms.config.Sources)), telemetry.Int("period_count", primaryTimeline.PeriodCount()))
	ms.emit(core.MergeReadyEvent{SourceCount: len(ms.config.Sources), PeriodCount: primaryTimeline.PeriodCount()})
	listener.OnSourceInfo(ms, primaryTimeline, primaryManifest)
}

// PollError returns the latched merge error if there is one, otherwise the
// first error reported by any source. Source errors are returned unchanged.
// Every source is polled either way.
func (ms *MergingSource) PollError() error {
	childErr := ms.router.PollErrors()
	if err := ms.mergeErr.error(); err != nil {
		return err
	}
	return childErr
}

// CreatePeriod creates one period per source with the same identity and
// allocator and combines them with the configured PeriodFactory.
func (ms *MergingSource) CreatePeriod(id core.PeriodID, allocator core.Allocator) (core.Period, error) {
	if ms.State() == core.StateReleased {
		return nil, ErrReleased
	}

	periods, err := ms.router.CreatePeriods(id, allocator)
	if err != nil {
		ms.config.Logger.WithModule(moduleName).Error("Failed to create period", telemetry.Err(err), telemetry.Int("period_index", id.PeriodIndex))
		return nil, err
	}

	mp := &MergingPeriod{
		id:        id,
		owner:     ms,
		periods:   periods,
		composite: ms.config.PeriodFactory.Combine(id, periods),
	}
	ms.emit(core.PeriodCreatedEvent{ID: id, SourceCount: len(periods)})
	return mp, nil
}

// ReleasePeriod releases a period returned by CreatePeriod on this source.
// Each child period goes back to its source in source order.
func (ms *MergingSource) ReleasePeriod(period core.Period) error {
	mp, ok := period.(*MergingPeriod)
	if !ok || mp == nil || mp.owner != ms {
		return ErrForeignPeriod
	}
	if !mp.released.CompareAndSwap(false, true) {
		return ErrPeriodReleased
	}

	err := ms.router.ReleasePeriods(mp.periods)
	if err != nil {
		ms.config.Logger.WithModule(moduleName).Error("Failed to release period", telemetry.Err(err), telemetry.Int("period_index", mp.id.PeriodIndex))
	}
	ms.emit(core.PeriodReleasedEvent{ID: mp.id})
	return err
}

// ReleaseSource releases every source, whatever state preparation is in.
// Only the first call has an effect; later calls return ErrReleased.
func (ms *MergingSource) ReleaseSource() error {
	ms.mu.Lock()
	previous := ms.state
	if previous == core.StateReleased {
		ms.mu.Unlock()
		return ErrReleased
	}
	ms.state = core.StateReleased
	ms.mu.Unlock()

	ms.closeDone()

	err := ms.router.ReleaseSources()
	logger := ms.config.Logger.WithModule(moduleName)
	if err != nil {
		logger.Error("Failed to release sources", telemetry.Err(err))
	} else {
		logger.Debug("Released sources", telemetry.String("previous_state", previous.String()))
	}
	ms.emit(core.ReleasedEvent{Previous: previous})
	return err
}

// Wait blocks until the source is merged, fails or is released, or ctx is
// done. On success it returns the primary timeline and manifest.
func (ms *MergingSource) Wait(ctx context.Context) (core.Timeline, any, error) {
	select {
	case <-ctx.Done():
		return nil, nil, ctx.Err()
	case <-ms.done:
	}

	if err := ms.mergeErr.error(); err != nil {
		return nil, nil, err
	}

	ms.mu.Lock()
	defer ms.mu.Unlock()
	if ms.state != core.StateMerged && !ms.barrier.Completed() {
		return nil, nil, ErrReleased
	}
	return ms.primaryTimeline, ms.primaryManifest, nil
}

func (ms *MergingSource) closeDone() {
	ms.doneOnce.Do(func() {
		close(ms.done)
	})
}

func (ms *MergingSource) emit(event core.Event) {
	if ms.config.Observer != nil {
		ms.config.Observer(event)
	}
}

func (ms *MergingSource) name(index int) string {
	if index < len(ms.config.Names) && ms.config.Names[index] != "" {
		return ms.config.Names[index]
	}
	return fmt.Sprintf("source-%d", index)
}
