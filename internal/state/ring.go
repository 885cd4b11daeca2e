package state

import "sync"

// Ring is a fixed-capacity FIFO buffer. Once full, each Push overwrites the
// oldest element. Safe for concurrent writers and readers.
type Ring[T any] struct {
	mu       sync.RWMutex
	data     []T
	capacity int
	head     int // index of the next write
	size     int
}

// NewRing creates a ring of the given capacity (minimum 1).
func NewRing[T any](capacity int) *Ring[T] {
	if capacity < 1 {
		capacity = 1
	}
	return &Ring[T]{
		data:     make([]T, capacity),
		capacity: capacity,
	}
}

// Push appends v, evicting the oldest element when full. O(1).
func (r *Ring[T]) Push(v T) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.data[r.head] = v
	r.head = (r.head + 1) % r.capacity
	if r.size < r.capacity {
		r.size++
	}
}

// Items returns a copy of the contents, oldest first. O(N).
func (r *Ring[T]) Items() []T {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]T, 0, r.size)
	if r.size < r.capacity {
		return append(out, r.data[:r.size]...)
	}
	// full: head points at the oldest element
	out = append(out, r.data[r.head:]...)
	return append(out, r.data[:r.head]...)
}

// Len returns the current number of elements.
func (r *Ring[T]) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.size
}

// Cap returns the fixed capacity.
func (r *Ring[T]) Cap() int { return r.capacity }
