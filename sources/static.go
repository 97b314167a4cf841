package sources

import (
	"context"
	"sync"
	"time"

	"github.com/creastat/infra/telemetry"
	"github.com/creastat/merging/core"
)

// StaticSourceConfig holds StaticSource configuration
type StaticSourceConfig struct {
	Name     string
	Timeline core.Timeline
	Manifest any

	// Delay before the timeline is reported
	Delay time.Duration

	// Err is surfaced by PollError once preparation starts, and the
	// timeline is never reported
	Err error

	Logger telemetry.Logger
}

// StaticSource reports a fixed timeline asynchronously after a delay
type StaticSource struct {
	config StaticSourceConfig

	mu       sync.Mutex
	prepared bool
	released bool
	stop     chan struct{}
	pollErr  error
	live     map[*StaticPeriod]struct{}
	created  int
}

// StaticPeriod is a period created by a StaticSource
type StaticPeriod struct {
	id     core.PeriodID
	info   core.PeriodInfo
	source *StaticSource
}

// ID returns the period identity
func (p *StaticPeriod) ID() core.PeriodID {
	return p.id
}

// Info returns the timeline entry the period belongs to, if the timeline
// is a core.StaticTimeline
func (p *StaticPeriod) Info() core.PeriodInfo {
	return p.info
}

// NewStaticSource creates a new static source
func NewStaticSource(config StaticSourceConfig) *StaticSource {
	return &StaticSource{
		config: config,
		stop:   make(chan struct{}),
		live:   make(map[*StaticPeriod]struct{}),
	}
}

// Name returns the source name
func (s *StaticSource) Name() string {
	return s.config.Name
}

// Prepare schedules the timeline report. The report is abandoned if ctx is
// done or the source is released first.
func (s *StaticSource) Prepare(ctx context.Context, listener core.Listener) error {
	s.mu.Lock()
	if s.released {
		s.mu.Unlock()
		return ErrSourceReleased
	}
	if s.prepared {
		s.mu.Unlock()
		return ErrSourcePrepared
	}
	s.prepared = true
	if s.config.Err != nil {
		s.pollErr = s.config.Err
		s.mu.Unlock()
		return nil
	}
	s.mu.Unlock()

	logger := s.config.Logger.WithModule("static_source")

	go func() {
		timer := time.NewTimer(s.config.Delay)
		defer timer.Stop()

		select {
		case <-s.stop:
			return
		case <-ctx.Done():
			s.mu.Lock()
			s.pollErr = ctx.Err()
			s.mu.Unlock()
			logger.Warn("Preparation abandoned", telemetry.String("name", s.config.Name), telemetry.Err(ctx.Err()))
			return
		case <-timer.C:
		}

		logger.Debug("Reporting timeline", telemetry.String("name", s.config.Name), telemetry.Int("period_count", s.config.Timeline.PeriodCount()))
		listener.OnSourceInfo(s, s.config.Timeline, s.config.Manifest)
	}()

	return nil
}

// PollError returns the configured or context error, if any
func (s *StaticSource) PollError() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pollErr
}

// CreatePeriod creates a period for a timeline index
func (s *StaticSource) CreatePeriod(id core.PeriodID, allocator core.Allocator) (core.Period, error) {
	if id.PeriodIndex < 0 || id.PeriodIndex >= s.config.Timeline.PeriodCount() {
		return nil, ErrPeriodOutOfRange
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.released {
		return nil, ErrSourceReleased
	}

	p := &StaticPeriod{id: id, source: s}
	if tl, ok := s.config.Timeline.(core.StaticTimeline); ok {
		p.info = tl.Periods[id.PeriodIndex]
	}
	s.live[p] = struct{}{}
	s.created++
	return p, nil
}

// ReleasePeriod releases a period created by this source
func (s *StaticSource) ReleasePeriod(period core.Period) error {
	p, ok := period.(*StaticPeriod)
	if !ok || p == nil || p.source != s {
		return ErrUnknownPeriod
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.live[p]; !exists {
		return ErrUnknownPeriod
	}
	delete(s.live, p)
	return nil
}

// ReleaseSource stops a pending report. It may be called once.
func (s *StaticSource) ReleaseSource() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.released {
		return ErrSourceReleased
	}
	s.released = true
	close(s.stop)
	return nil
}

// LivePeriods returns the number of created periods not yet released
func (s *StaticSource) LivePeriods() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.live)
}

// CreatedPeriods returns the number of periods ever created
func (s *StaticSource) CreatedPeriods() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.created
}

// Released reports whether ReleaseSource was called
func (s *StaticSource) Released() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.released
}
