package repository

// ring is a fixed-capacity FIFO that drops the oldest appended item when full.
// Not safe for concurrent use; MemoryStore guards it.
type ring[T any] struct {
	items []T
	head  int // next write position
	size  int
}

func newRing[T any](capacity int) *ring[T] {
	if capacity <= 0 {
		capacity = 1
	}
	return &ring[T]{items: make([]T, capacity)}
}

// push appends v and reports whether an item was evicted.
func (r *ring[T]) push(v T) bool {
	r.items[r.head] = v
	r.head = (r.head + 1) % len(r.items)
	if r.size < len(r.items) {
		r.size++
		return false
	}
	return true
}

func (r *ring[T]) len() int { return r.size }

// slice returns the items oldest first in a new slice.
func (r *ring[T]) slice() []T {
	out := make([]T, r.size)
	start := (r.head - r.size + len(r.items)) % len(r.items)
	for i := 0; i < r.size; i++ {
		out[i] = r.items[(start+i)%len(r.items)]
	}
	return out
}

// last returns up to n of the newest items, oldest first.
func (r *ring[T]) last(n int) []T {
	all := r.slice()
	if n <= 0 || n >= len(all) {
		return all
	}
	return all[len(all)-n:]
}
