// Package history provides a bounded, newest-first record of recent items.
package history

import (
	"sync"
)

// Ring is a thread-safe fixed-capacity buffer. When full, each Push evicts
// the oldest item. Items are returned newest first.
type Ring[T any] struct {
	mu       sync.Mutex
	buf      []T
	head     int // next write position
	count    int
	capacity int

	// Stats
	totalPushed int64
	evicted     int64
}

// NewRing creates a ring holding at most capacity items.
func NewRing[T any](capacity int) *Ring[T] {
	if capacity < 1 {
		capacity = 1
	}
	return &Ring[T]{
		buf:      make([]T, capacity),
		capacity: capacity,
	}
}

// Push records item as the newest entry.
func (r *Ring[T]) Push(item T) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.count == r.capacity {
		r.evicted++
	} else {
		r.count++
	}
	r.buf[r.head] = item
	r.head = (r.head + 1) % r.capacity
	r.totalPushed++
}

// Items returns a copy of the contents, newest first.
func (r *Ring[T]) Items() []T {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]T, r.count)
	for i := 0; i < r.count; i++ {
		idx := (r.head - 1 - i + r.capacity) % r.capacity
		out[i] = r.buf[idx]
	}
	return out
}

// Newest returns the most recent item, if any.
func (r *Ring[T]) Newest() (T, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.count == 0 {
		var zero T
		return zero, false
	}
	return r.buf[(r.head-1+r.capacity)%r.capacity], true
}

// Reset discards all items.
func (r *Ring[T]) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()

	var zero T
	for i := range r.buf {
		r.buf[i] = zero // Clear references for GC
	}
	r.head = 0
	r.count = 0
}

// Len returns the number of items held.
func (r *Ring[T]) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.count
}

// Cap returns the maximum number of items held.
func (r *Ring[T]) Cap() int {
	return r.capacity
}

// Stats returns ring statistics.
func (r *Ring[T]) Stats() Stats {
	r.mu.Lock()
	defer r.mu.Unlock()
	return Stats{
		Count:       r.count,
		Capacity:    r.capacity,
		TotalPushed: r.totalPushed,
		Evicted:     r.evicted,
	}
}

// Stats contains ring statistics.
type Stats struct {
	Count       int
	Capacity    int
	TotalPushed int64
	Evicted     int64
}
