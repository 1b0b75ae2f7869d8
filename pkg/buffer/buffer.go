// Package buffer provides a thread-safe drop-oldest ring used to decouple
// stream readers from the event loop. When the ring is full the oldest item
// is evicted so live data keeps flowing; drops are counted so the owner can
// surface a single overflow notice per episode.
package buffer

import (
	"sync"
	"sync/atomic"
)

// Ring is a fixed-capacity circular buffer with drop-oldest overflow.
type Ring[T any] struct {
	mu       sync.Mutex
	items    []T
	capacity int
	size     int
	head     int // next write position
	tail     int // next read position

	writes atomic.Int64
	reads  atomic.Int64
	drops  atomic.Int64

	dropCallback func(T)
}

// Option configures a Ring.
type Option[T any] func(*Ring[T])

// WithDropCallback invokes fn for every item evicted by overflow. The
// callback runs outside the ring lock.
func WithDropCallback[T any](fn func(T)) Option[T] {
	return func(r *Ring[T]) { r.dropCallback = fn }
}

// NewRing creates a ring with the given capacity. Capacities below one are
// clamped to one.
func NewRing[T any](capacity int, opts ...Option[T]) *Ring[T] {
	if capacity < 1 {
		capacity = 1
	}
	r := &Ring[T]{
		items:    make([]T, capacity),
		capacity: capacity,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Write adds an item, evicting the oldest when full. It reports whether an
// eviction happened.
func (r *Ring[T]) Write(item T) bool {
	var dropped T
	evicted := false

	r.mu.Lock()
	if r.size == r.capacity {
		dropped = r.items[r.tail]
		r.tail = (r.tail + 1) % r.capacity
		r.size--
		r.drops.Add(1)
		evicted = true
	}
	r.items[r.head] = item
	r.head = (r.head + 1) % r.capacity
	r.size++
	r.writes.Add(1)
	r.mu.Unlock()

	if evicted && r.dropCallback != nil {
		r.dropCallback(dropped)
	}
	return evicted
}

// Read removes and returns the oldest item.
func (r *Ring[T]) Read() (T, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var zero T
	if r.size == 0 {
		return zero, false
	}

	item := r.items[r.tail]
	r.items[r.tail] = zero // release for GC
	r.tail = (r.tail + 1) % r.capacity
	r.size--
	r.reads.Add(1)
	return item, true
}

// Peek returns the oldest item without removing it.
func (r *Ring[T]) Peek() (T, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var zero T
	if r.size == 0 {
		return zero, false
	}
	return r.items[r.tail], true
}

// Drain removes and returns every buffered item in arrival order.
func (r *Ring[T]) Drain() []T {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.size == 0 {
		return nil
	}

	var zero T
	out := make([]T, r.size)
	for i := range out {
		out[i] = r.items[r.tail]
		r.items[r.tail] = zero
		r.tail = (r.tail + 1) % r.capacity
	}
	r.reads.Add(int64(len(out)))
	r.size = 0
	return out
}

// Len returns the number of buffered items.
func (r *Ring[T]) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.size
}

// Cap returns the fixed capacity.
func (r *Ring[T]) Cap() int { return r.capacity }

// Stats is a point-in-time snapshot of ring counters.
type Stats struct {
	Writes int64
	Reads  int64
	Drops  int64
}

// Stats returns cumulative counters for the ring.
func (r *Ring[T]) Stats() Stats {
	return Stats{
		Writes: r.writes.Load(),
		Reads:  r.reads.Load(),
		Drops:  r.drops.Load(),
	}
}
