package merging

// readinessBarrier tracks which children have not reported yet and completes
// exactly once, when the last one does. It is not safe for concurrent use;
// MergingSource guards it with its mutex.
type readinessBarrier struct {
	// reported marks children whose listener fired, accepted or not
	reported []bool

	// pending marks children not yet removed from the pending set
	pending []bool

	remaining int
	completed bool
}

// newReadinessBarrier creates a barrier waiting on count children
func newReadinessBarrier(count int) *readinessBarrier {
	pending := make([]bool, count)
	for i := range pending {
		pending[i] = true
	}
	return &readinessBarrier{
		reported:  make([]bool, count),
		pending:   pending,
		remaining: count,
	}
}

// markReported records that child i invoked its listener. It returns false
// if child i already reported, which violates the Source contract.
func (b *readinessBarrier) markReported(i int) bool {
	if b.reported[i] {
		return false
	}
	b.reported[i] = true
	return true
}

// arrive removes child i from the pending set and reports whether this call
// completed the barrier. It returns true at most once per barrier.
func (b *readinessBarrier) arrive(i int) bool {
	if !b.pending[i] {
		return false
	}
	b.pending[i] = false
	b.remaining--

	if b.remaining == 0 && !b.completed {
		b.completed = true
		return true
	}
	return false
}

// Pending returns the number of children that have not arrived
func (b *readinessBarrier) Pending() int {
	return b.remaining
}

// Completed reports whether every child arrived
func (b *readinessBarrier) Completed() bool {
	return b.completed
}
