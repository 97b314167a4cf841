package merging

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/creastat/infra/telemetry"
	"github.com/creastat/merging/core"
)

func testLogger() telemetry.Logger {
	return telemetry.New(telemetry.Config{Level: "error"})
}

// callLog records calls across sources in the order they happen
type callLog struct {
	mu      sync.Mutex
	entries []string
}

func (l *callLog) add(format string, args ...any) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.entries = append(l.entries, fmt.Sprintf(format, args...))
}

func (l *callLog) snapshot() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]string(nil), l.entries...)
}

// fakeSource is a controllable core.Source. Tests decide when it reports.
type fakeSource struct {
	index int
	log   *callLog

	prepareErr error
	pollErr    error
	createErr  error
	releaseErr error

	mu              sync.Mutex
	listener        core.Listener
	prepared        int
	polled          int
	released        int
	periodsCreated  int
	periodsReleased int
}

type fakePeriod struct {
	id     core.PeriodID
	source *fakeSource
}

func (p *fakePeriod) ID() core.PeriodID {
	return p.id
}

func newFakeSources(n int) ([]*fakeSource, *callLog) {
	log := &callLog{}
	fakes := make([]*fakeSource, n)
	for i := range fakes {
		fakes[i] = &fakeSource{index: i, log: log}
	}
	return fakes, log
}

func asSources(fakes []*fakeSource) []core.Source {
	sources := make([]core.Source, len(fakes))
	for i, f := range fakes {
		sources[i] = f
	}
	return sources
}

func (f *fakeSource) Prepare(ctx context.Context, listener core.Listener) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.prepared++
	if f.prepareErr != nil {
		return f.prepareErr
	}
	f.listener = listener
	return nil
}

// report invokes the listener handed to Prepare
func (f *fakeSource) report(periodCount int, manifest any) {
	f.mu.Lock()
	listener := f.listener
	f.mu.Unlock()
	listener.OnSourceInfo(f, core.NewStaticTimeline(periodCount, time.Second), manifest)
}

func (f *fakeSource) PollError() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.polled++
	return f.pollErr
}

func (f *fakeSource) CreatePeriod(id core.PeriodID, allocator core.Allocator) (core.Period, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.createErr != nil {
		return nil, f.createErr
	}
	f.periodsCreated++
	f.log.add("create:%d", f.index)
	return &fakePeriod{id: id, source: f}, nil
}

func (f *fakeSource) ReleasePeriod(period core.Period) error {
	p, ok := period.(*fakePeriod)
	if !ok || p.source != f {
		return errors.New("fake: foreign period")
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.periodsReleased++
	f.log.add("release:%d", f.index)
	return nil
}

func (f *fakeSource) ReleaseSource() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.released++
	f.log.add("release_source:%d", f.index)
	return f.releaseErr
}

func (f *fakeSource) counts() (prepared, released, created, periodsReleased int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.prepared, f.released, f.periodsCreated, f.periodsReleased
}

// recordingListener counts notifications and keeps the last one
type recordingListener struct {
	calls atomic.Int32

	mu       sync.Mutex
	source   core.Source
	timeline core.Timeline
	manifest any
}

func (l *recordingListener) OnSourceInfo(source core.Source, timeline core.Timeline, manifest any) {
	l.mu.Lock()
	l.source = source
	l.timeline = timeline
	l.manifest = manifest
	l.mu.Unlock()
	l.calls.Add(1)
}

func (l *recordingListener) last() (core.Source, core.Timeline, any) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.source, l.timeline, l.manifest
}

// newPrepared creates and prepares a merging source over n fake sources
func newPrepared(n int) (*MergingSource, []*fakeSource, *recordingListener, *callLog) {
	fakes, log := newFakeSources(n)
	ms := New(Config{Sources: asSources(fakes), Logger: testLogger()})
	listener := &recordingListener{}
	if err := ms.Prepare(context.Background(), listener); err != nil {
		panic(err)
	}
	return ms, fakes, listener, log
}
