package merging

import "sync/atomic"

// errorLatch holds the first MergeError. It is written at most once and may
// be read concurrently with writes.
type errorLatch struct {
	err atomic.Pointer[MergeError]
}

// set stores err if nothing is latched yet and reports whether it did
func (l *errorLatch) set(err *MergeError) bool {
	return l.err.CompareAndSwap(nil, err)
}

// get returns the latched error, or nil
func (l *errorLatch) get() *MergeError {
	return l.err.Load()
}

// error returns the latched error as an error value. A nil *MergeError is
// never returned as a non-nil interface.
func (l *errorLatch) error() error {
	if err := l.get(); err != nil {
		return err
	}
	return nil
}
