package merging

import (
	"errors"
	"fmt"

	"github.com/creastat/merging/core"
	"golang.org/x/sync/errgroup"
)

// FanOutRouter dispatches lifecycle operations to every child source and
// keeps per-child results aligned with the child index.
type FanOutRouter struct {
	config  core.FanOutConfig
	sources []core.Source
}

// NewFanOutRouter creates a router over sources with the given configuration
func NewFanOutRouter(config core.FanOutConfig, sources []core.Source) *FanOutRouter {
	if config.Mode == "" {
		config.Mode = core.FanOutSequential
	}
	return &FanOutRouter{
		config:  config,
		sources: sources,
	}
}

// CreatePeriods asks every source for a period with the same identity and
// allocator. The result is index-aligned with the sources. If any source
// fails, periods already created are released in index order and the first
// error is returned.
func (fr *FanOutRouter) CreatePeriods(id core.PeriodID, allocator core.Allocator) ([]core.Period, error) {
	periods := make([]core.Period, len(fr.sources))

	var err error
	if fr.config.Mode == core.FanOutParallel {
		err = fr.createParallel(id, allocator, periods)
	} else {
		err = fr.createSequential(id, allocator, periods)
	}
	if err == nil {
		return periods, nil
	}

	// Roll back whatever was created
	for i, period := range periods {
		if period == nil {
			continue
		}
		if releaseErr := fr.sources[i].ReleasePeriod(period); releaseErr != nil {
			err = errors.Join(err, fmt.Errorf("release period on source %d: %w", i, releaseErr))
		}
	}
	return nil, err
}

func (fr *FanOutRouter) createSequential(id core.PeriodID, allocator core.Allocator, periods []core.Period) error {
	for i, src := range fr.sources {
		period, err := src.CreatePeriod(id, allocator)
		if err != nil {
			return fmt.Errorf("create period on source %d: %w", i, err)
		}
		periods[i] = period
	}
	return nil
}

// createParallel writes into distinct slots of periods, one goroutine per source
func (fr *FanOutRouter) createParallel(id core.PeriodID, allocator core.Allocator, periods []core.Period) error {
	var g errgroup.Group
	if fr.config.MaxConcurrency > 0 {
		g.SetLimit(fr.config.MaxConcurrency)
	}

	for i, src := range fr.sources {
		g.Go(func() error {
			period, err := src.CreatePeriod(id, allocator)
			if err != nil {
				return fmt.Errorf("create period on source %d: %w", i, err)
			}
			periods[i] = period
			return nil
		})
	}

	return g.Wait()
}

// ReleasePeriods releases index-aligned periods in index order. Every
// release is attempted; failures are joined.
func (fr *FanOutRouter) ReleasePeriods(periods []core.Period) error {
	var errs []error
	for i, src := range fr.sources {
		if err := src.ReleasePeriod(periods[i]); err != nil {
			errs = append(errs, fmt.Errorf("release period on source %d: %w", i, err))
		}
	}
	return errors.Join(errs...)
}

// ReleaseSources releases every source once, in index order. Every release
// is attempted; failures are joined.
func (fr *FanOutRouter) ReleaseSources() error {
	var errs []error
	for i, src := range fr.sources {
		if err := src.ReleaseSource(); err != nil {
			errs = append(errs, fmt.Errorf("release source %d: %w", i, err))
		}
	}
	return errors.Join(errs...)
}

// PollErrors polls every source and returns the first error verbatim
func (fr *FanOutRouter) PollErrors() error {
	var first error
	for _, src := range fr.sources {
		if err := src.PollError(); err != nil && first == nil {
			first = err
		}
	}
	return first
}
