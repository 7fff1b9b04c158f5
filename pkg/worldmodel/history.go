package worldmodel

import (
	"sync"
	"sync/atomic"
	"time"
)

// Sample is one timestamped observation.
type Sample[T any] struct {
	At    time.Time
	Value T
}

// History is a bounded, most-recent-first buffer of samples.
//
// Writers build a new slice and publish it with a single atomic store, so a
// reader always sees a complete buffer and never a half-written sample.
// Published slices are never modified after the store.
type History[T any] struct {
	capacity int
	mu       sync.Mutex // serialises writers
	samples  atomic.Pointer[[]Sample[T]]
}

// NewHistory creates an empty history holding at most capacity samples.
func NewHistory[T any](capacity int) *History[T] {
	if capacity < 1 {
		capacity = 1
	}
	return &History[T]{capacity: capacity}
}

// Push inserts a sample at the front, evicting the oldest sample when full.
func (h *History[T]) Push(at time.Time, v T) {
	h.mu.Lock()
	defer h.mu.Unlock()

	old := h.load()
	n := min(len(old)+1, h.capacity)
	next := make([]Sample[T], n)
	next[0] = Sample[T]{At: at, Value: v}
	copy(next[1:], old)
	h.samples.Store(&next)
}

// Latest returns the most recent sample.
func (h *History[T]) Latest() (Sample[T], bool) {
	s := h.load()
	if len(s) == 0 {
		return Sample[T]{}, false
	}
	return s[0], true
}

// Samples returns a copy of the buffer, most recent first.
func (h *History[T]) Samples() []Sample[T] {
	s := h.load()
	out := make([]Sample[T], len(s))
	copy(out, s)
	return out
}

// Len returns the number of samples held.
func (h *History[T]) Len() int {
	return len(h.load())
}

// Cap returns the fixed capacity.
func (h *History[T]) Cap() int {
	return h.capacity
}

func (h *History[T]) load() []Sample[T] {
	p := h.samples.Load()
	if p == nil {
		return nil
	}
	return *p
}
