package merging

import (
	"sync/atomic"

	"github.com/creastat/merging/core"
)

// MergingPeriod is the period returned by MergingSource.CreatePeriod. It owns
// one child period per source, in source order, until it is released.
type MergingPeriod struct {
	id        core.PeriodID
	owner     *MergingSource
	periods   []core.Period
	composite core.Period
	released  atomic.Bool
}

// ID returns the identity the period was created with
func (mp *MergingPeriod) ID() core.PeriodID {
	return mp.id
}

// Periods returns the child periods in source order
func (mp *MergingPeriod) Periods() []core.Period {
	return mp.periods
}

// Composite returns the period built by the configured PeriodFactory
func (mp *MergingPeriod) Composite() core.Period {
	return mp.composite
}

// Released reports whether the period was handed back to its source
func (mp *MergingPeriod) Released() bool {
	return mp.released.Load()
}

// PeriodGroup is the composite built by DefaultPeriodFactory. It only groups
// the child periods; stream multiplexing belongs to the caller's factory.
type PeriodGroup struct {
	id      core.PeriodID
	periods []core.Period
}

// ID returns the group's period identity
func (g *PeriodGroup) ID() core.PeriodID {
	return g.id
}

// Periods returns the grouped periods in source order
func (g *PeriodGroup) Periods() []core.Period {
	return g.periods
}

// DefaultPeriodFactory combines child periods into a PeriodGroup
var DefaultPeriodFactory core.PeriodFactory = core.PeriodFactoryFunc(func(id core.PeriodID, periods []core.Period) core.Period {
	return &PeriodGroup{id: id, periods: periods}
})
