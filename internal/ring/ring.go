// Package ring provides a fixed-capacity circular buffer.
package ring

// Ring is a FIFO of fixed capacity backed by a circular array.
// Push is O(1); once full, each push overwrites the oldest element.
// Ring is not safe for concurrent use.
type Ring[T any] struct {
	buf  []T
	head int // index of the oldest element
	size int
}

// New returns an empty ring. It panics if capacity < 1.
func New[T any](capacity int) *Ring[T] {
	if capacity < 1 {
		panic("ring: capacity must be >= 1")
	}
	return &Ring[T]{buf: make([]T, capacity)}
}

// Push appends v and reports the element it evicted, if any.
func (r *Ring[T]) Push(v T) (evicted T, ok bool) {
	if r.size < len(r.buf) {
		r.buf[(r.head+r.size)%len(r.buf)] = v
		r.size++
		return evicted, false
	}
	evicted = r.buf[r.head]
	r.buf[r.head] = v
	r.head = (r.head + 1) % len(r.buf)
	return evicted, true
}

// Len returns the number of stored elements.
func (r *Ring[T]) Len() int { return r.size }

// Oldest returns a copy of the contents, oldest first.
func (r *Ring[T]) Oldest() []T {
	out := make([]T, r.size)
	for i := 0; i < r.size; i++ {
		out[i] = r.buf[(r.head+i)%len(r.buf)]
	}
	return out
}

// Newest returns a copy of the contents, newest first.
func (r *Ring[T]) Newest() []T {
	out := make([]T, r.size)
	for i := 0; i < r.size; i++ {
		out[i] = r.buf[(r.head+r.size-1-i)%len(r.buf)]
	}
	return out
}
