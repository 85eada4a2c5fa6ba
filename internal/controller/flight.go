package controller

import "sync/atomic"

// flight admits one holder at a time. Callers that lose the race are
// turned away, not queued.
type flight struct {
	n atomic.Int32
}

// tryAcquire reports whether the caller became the holder.
func (f *flight) tryAcquire() bool {
	return f.n.CompareAndSwap(0, 1)
}

func (f *flight) release() {
	f.n.Store(0)
}

func (f *flight) active() bool {
	return f.n.Load() != 0
}
