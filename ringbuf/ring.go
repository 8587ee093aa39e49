// Package ringbuf provides the fixed-capacity ring buffer that backs every
// time-series in ttop. Storage is allocated once at construction; pushes past
// capacity overwrite the oldest element.
package ringbuf

import (
	"errors"
	"iter"
)

// ErrInvalidCapacity is returned by New when capacity is not positive.
var ErrInvalidCapacity = errors.New("ringbuf: capacity must be positive")

// Ring is a fixed-capacity FIFO that drops its oldest element on overflow.
// The zero value is not usable; construct with New or MustNew.
type Ring[T any] struct {
	buf  []T
	head int // next write position
	n    int
}

// New allocates a ring holding at most capacity elements.
func New[T any](capacity int) (*Ring[T], error) {
	if capacity <= 0 {
		return nil, ErrInvalidCapacity
	}
	return &Ring[T]{buf: make([]T, capacity)}, nil
}

// MustNew is like New but panics on an invalid capacity. It is meant for
// package-level capacities that are known constants.
func MustNew[T any](capacity int) *Ring[T] {
	r, err := New[T](capacity)
	if err != nil {
		panic(err)
	}
	return r
}

// Push appends v, overwriting the oldest element when the ring is full.
func (r *Ring[T]) Push(v T) {
	r.buf[r.head] = v
	r.head++
	if r.head == len(r.buf) {
		r.head = 0
	}
	if r.n < len(r.buf) {
		r.n++
	}
}

// Latest returns the most recently pushed element.
func (r *Ring[T]) Latest() (T, bool) {
	var zero T
	if r.n == 0 {
		return zero, false
	}
	i := r.head - 1
	if i < 0 {
		i = len(r.buf) - 1
	}
	return r.buf[i], true
}

// Len returns the number of stored elements.
func (r *Ring[T]) Len() int { return r.n }

// Cap returns the fixed capacity.
func (r *Ring[T]) Cap() int { return len(r.buf) }

// At returns the i-th element counting from the oldest (0) to the newest
// (Len()-1).
func (r *Ring[T]) At(i int) (T, bool) {
	var zero T
	if i < 0 || i >= r.n {
		return zero, false
	}
	return r.buf[(r.oldest()+i)%len(r.buf)], true
}

func (r *Ring[T]) oldest() int {
	return (r.head - r.n + len(r.buf)) % len(r.buf)
}

// All yields the stored elements from oldest to newest.
func (r *Ring[T]) All() iter.Seq[T] {
	return func(yield func(T) bool) {
		older, newer := r.Slices()
		for _, v := range older {
			if !yield(v) {
				return
			}
		}
		for _, v := range newer {
			if !yield(v) {
				return
			}
		}
	}
}

// Slices returns the contents as two contiguous views into the backing
// storage, older first. Concatenating them gives oldest-to-newest order.
// The views alias the ring and are invalidated by the next Push.
func (r *Ring[T]) Slices() (older, newer []T) {
	if r.n == 0 {
		return nil, nil
	}
	start := r.oldest()
	if start+r.n <= len(r.buf) {
		return r.buf[start : start+r.n], nil
	}
	return r.buf[start:], r.buf[:r.head]
}

// Values returns a copy of the contents, oldest first.
func (r *Ring[T]) Values() []T {
	out := make([]T, 0, r.n)
	older, newer := r.Slices()
	out = append(out, older...)
	return append(out, newer...)
}

// Clone returns an independent copy with the same capacity and contents.
func (r *Ring[T]) Clone() *Ring[T] {
	buf := make([]T, len(r.buf))
	copy(buf, r.buf)
	return &Ring[T]{buf: buf, head: r.head, n: r.n}
}

// Reset empties the ring without releasing storage.
func (r *Ring[T]) Reset() {
	var zero T
	for i := range r.buf {
		r.buf[i] = zero
	}
	r.head = 0
	r.n = 0
}
