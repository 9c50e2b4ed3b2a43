package tone

// Ring is a fixed-capacity FIFO that evicts its oldest element on overflow
type Ring[T any] struct {
	buf   []T
	start int
	count int
}

// NewRing creates a ring holding at most capacity elements
func NewRing[T any](capacity int) *Ring[T] {
	if capacity < 1 {
		capacity = 1
	}
	return &Ring[T]{buf: make([]T, capacity)}
}

// Push appends v, evicting the oldest element when full
func (r *Ring[T]) Push(v T) {
	if r.count < len(r.buf) {
		r.buf[(r.start+r.count)%len(r.buf)] = v
		r.count++
		return
	}
	r.buf[r.start] = v
	r.start = (r.start + 1) % len(r.buf)
}

// Len returns the number of stored elements
func (r *Ring[T]) Len() int { return r.count }

// Cap returns the ring capacity
func (r *Ring[T]) Cap() int { return len(r.buf) }

// Snapshot returns a copy of the contents, oldest first
func (r *Ring[T]) Snapshot() []T {
	out := make([]T, r.count)
	for i := range out {
		out[i] = r.buf[(r.start+i)%len(r.buf)]
	}
	return out
}

// Reset empties the ring
func (r *Ring[T]) Reset() {
	clear(r.buf)
	r.start = 0
	r.count = 0
}
