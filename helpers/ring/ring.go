// Package ring is a FIFO circular buffer over a preallocated slice.
// Bounded ring evicts oldest element on overflow, growing ring doubles its storage instead.
package ring

import "fmt"

type Ring[T any] struct {
	buf  []T
	head int // index of oldest element
	n    int
	grow bool
}

func New[T any](capacity int) *Ring[T] {
	if capacity < 1 {
		panic(fmt.Sprintf("code error ring.New capacity=%d", capacity))
	}
	return &Ring[T]{buf: make([]T, capacity)}
}

// NewGrowing never evicts on Push, storage doubles when full.
func NewGrowing[T any](initial int) *Ring[T] {
	r := New[T](initial)
	r.grow = true
	return r
}

func (r *Ring[T]) Len() int    { return r.n }
func (r *Ring[T]) Cap() int    { return len(r.buf) }
func (r *Ring[T]) Full() bool { return r.n == len(r.buf) }

// Push appends v at back. Returns evicted oldest element when bounded ring was full.
func (r *Ring[T]) Push(v T) (evicted T, ok bool) {
	if r.n == len(r.buf) {
		if r.grow {
			r.resize(2 * len(r.buf))
		} else {
			evicted, ok = r.PopFront()
		}
	}
	r.buf[r.index(r.n)] = v
	r.n++
	return evicted, ok
}

func (r *Ring[T]) PopFront() (v T, ok bool) {
	if r.n == 0 {
		return v, false
	}
	var zero T
	v = r.buf[r.head]
	r.buf[r.head] = zero
	r.head = r.index(1)
	r.n--
	return v, true
}

func (r *Ring[T]) Front() (v T, ok bool) {
	if r.n == 0 {
		return v, false
	}
	return r.buf[r.head], true
}

func (r *Ring[T]) Back() (v T, ok bool) {
	if r.n == 0 {
		return v, false
	}
	return r.buf[r.index(r.n-1)], true
}

// At returns i-th element counting from oldest.
func (r *Ring[T]) At(i int) T {
	if i < 0 || i >= r.n {
		panic(fmt.Sprintf("code error ring.At index=%d len=%d", i, r.n))
	}
	return r.buf[r.index(i)]
}

func (r *Ring[T]) Clear() {
	clear(r.buf)
	r.head, r.n = 0, 0
}

// AppendTo appends elements oldest first, never aliases ring storage.
func (r *Ring[T]) AppendTo(dst []T) []T {
	if r.n == 0 {
		return dst
	}
	end := r.head + r.n
	if end <= len(r.buf) {
		return append(dst, r.buf[r.head:end]...)
	}
	dst = append(dst, r.buf[r.head:]...)
	return append(dst, r.buf[:end-len(r.buf)]...)
}

func (r *Ring[T]) Slice() []T { return r.AppendTo(make([]T, 0, r.n)) }

func (r *Ring[T]) index(i int) int { return (r.head + i) % len(r.buf) }

func (r *Ring[T]) resize(capacity int) {
	buf := r.AppendTo(make([]T, 0, capacity))
	r.buf = buf[:capacity]
	r.head = 0
}
