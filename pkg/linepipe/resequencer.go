package linepipe

import (
	"sync"
)

// Resequencer restores stream order for results produced by concurrent consumers.
// Every sequence number from the first one onwards must be added exactly once; values are
// passed to emit strictly in sequence order, as soon as the next expected one is available.
type Resequencer[T any] struct {
	mu      sync.Mutex
	next    uint64
	pending map[uint64]T
	emit    func(seq uint64, v T)
}

// NewResequencer creates a resequencer expecting sequence numbers starting at zero.
func NewResequencer[T any](emit func(seq uint64, v T)) *Resequencer[T] {
	return &Resequencer[T]{
		pending: make(map[uint64]T),
		emit:    emit,
	}
}

// Add records the value for seq and emits every value that is now in order.
// Duplicate or already emitted sequence numbers are ignored.
func (r *Resequencer[T]) Add(seq uint64, v T) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if seq < r.next {
		return
	} else if _, dup := r.pending[seq]; dup {
		return
	}
	r.pending[seq] = v

	for {
		v, ok := r.pending[r.next]
		if !ok {
			return
		}
		delete(r.pending, r.next)
		r.emit(r.next, v)
		r.next++
	}
}

// Next returns the next sequence number the resequencer is waiting for.
func (r *Resequencer[T]) Next() uint64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.next
}

// Pending returns how many values are held back waiting for an earlier sequence number.
func (r *Resequencer[T]) Pending() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.pending)
}
