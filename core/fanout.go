package core

// FanOutMode defines how per-child period operations are dispatched
type FanOutMode string

const (
	// FanOutSequential calls children one after another in index order (default)
	FanOutSequential FanOutMode = "sequential"

	// FanOutParallel calls children concurrently
	FanOutParallel FanOutMode = "parallel"
)

// FanOutConfig configures period creation across children
type FanOutConfig struct {
	// Mode selects sequential or parallel dispatch
	Mode FanOutMode

	// MaxConcurrency bounds parallel dispatch. Zero means unbounded.
	MaxConcurrency int
}
