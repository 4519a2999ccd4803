// Package ringchan provides a bounded channel whose producers never block:
// when the buffer is full the oldest element is discarded.
package ringchan

import "sync/atomic"

// Ring is a buffered channel with overwrite-oldest semantics.
//
// Readers receive from C() like a normal channel. Writers use Push, which
// always succeeds.
type Ring[T any] struct {
	ch    chan T
	stats Stats
}

// Stats counts ring traffic. Fields are updated atomically.
type Stats struct {
	Pushed      int64
	Overwritten int64
}

// New creates a ring holding at most capacity elements.
func New[T any](capacity int) *Ring[T] {
	if capacity <= 0 {
		panic("ringchan: capacity must be > 0")
	}
	return &Ring[T]{ch: make(chan T, capacity)}
}

// C returns the receive side of the ring.
func (r *Ring[T]) C() <-chan T {
	return r.ch
}

// Push inserts v, discarding the oldest element if the ring is full.
// It reports whether an element was discarded.
func (r *Ring[T]) Push(v T) (overwritten bool) {
	for {
		select {
		case r.ch <- v:
			atomic.AddInt64(&r.stats.Pushed, 1)
			return overwritten
		default:
		}
		// a concurrent reader may drain the ring between the two selects
		select {
		case <-r.ch:
			atomic.AddInt64(&r.stats.Overwritten, 1)
			overwritten = true
		default:
		}
	}
}

// TryPop returns the oldest element without blocking.
func (r *Ring[T]) TryPop() (T, bool) {
	select {
	case v, ok := <-r.ch:
		return v, ok
	default:
		var zero T
		return zero, false
	}
}

// Stats returns a snapshot of the counters.
func (r *Ring[T]) Stats() Stats {
	return Stats{
		Pushed:      atomic.LoadInt64(&r.stats.Pushed),
		Overwritten: atomic.LoadInt64(&r.stats.Overwritten),
	}
}
