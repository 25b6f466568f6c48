package linepipe

import (
	"context"
	"sync"
)

// DispatchQueue is a FIFO hand-off of lines from one producer to many consumers.
// In bounded mode Push blocks while the queue is full; in unbounded mode it never blocks.
type DispatchQueue struct {
	mu sync.Mutex

	items []Line
	head  int

	// capacity is the maximum number of queued lines, or Unbounded
	capacity int

	// maxBytes is a hard ceiling on queued text, 0 for none
	maxBytes    int64
	queuedBytes int64

	closed bool
	err    error

	// changed is closed and replaced whenever the queue state changes
	changed chan struct{}
}

// NewDispatchQueue creates a queue holding at most capacity lines (or Unbounded) and at most
// maxBytes bytes of text (0 for no ceiling).
func NewDispatchQueue(capacity int, maxBytes int64) *DispatchQueue {
	initial := capacity
	if initial == Unbounded || initial > 1024 {
		initial = 1024
	}
	return &DispatchQueue{
		items:    make([]Line, 0, initial),
		capacity: capacity,
		maxBytes: maxBytes,
		changed:  make(chan struct{}),
	}
}

// notifyLocked wakes every goroutine waiting for a state change.
func (q *DispatchQueue) notifyLocked() {
	close(q.changed)
	q.changed = make(chan struct{})
}

// lenLocked returns the number of queued lines.
func (q *DispatchQueue) lenLocked() int {
	return len(q.items) - q.head
}

// Push appends a line. It returns ErrQueueClosed after Close, the abort cause after Abort,
// a *CapacityExceededError when the byte ceiling would be crossed, or ctx.Err() when the
// context ends while waiting for capacity.
func (q *DispatchQueue) Push(ctx context.Context, line Line) error {
	for {
		q.mu.Lock()
		if q.err != nil {
			err := q.err
			q.mu.Unlock()
			return err
		} else if q.closed {
			q.mu.Unlock()
			return ErrQueueClosed
		}

		size := int64(len(line.Text))
		if q.maxBytes > 0 && q.queuedBytes+size > q.maxBytes {
			queued := q.queuedBytes
			q.mu.Unlock()
			return &CapacityExceededError{
				Resource: "queue",
				Limit:    q.maxBytes,
				Size:     queued + size,
				Offset:   line.Offset,
			}
		}

		if q.capacity == Unbounded || q.lenLocked() < q.capacity {
			q.compactLocked()
			q.items = append(q.items, line)
			q.queuedBytes += size
			q.notifyLocked()
			q.mu.Unlock()
			return nil
		}

		wait := q.changed
		q.mu.Unlock()

		select {
		case <-wait:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// Pop removes the oldest line. Once the queue is closed and empty it returns ErrEndOfStream
// to every caller; it returns ctx.Err() if the context ends while waiting.
func (q *DispatchQueue) Pop(ctx context.Context) (Line, error) {
	for {
		if err := ctx.Err(); err != nil {
			return Line{}, err
		}

		q.mu.Lock()
		if q.lenLocked() > 0 {
			line := q.items[q.head]
			q.items[q.head] = Line{}
			q.head++
			q.queuedBytes -= int64(len(line.Text))
			q.notifyLocked()
			q.mu.Unlock()
			return line, nil
		} else if q.closed {
			q.mu.Unlock()
			return Line{}, ErrEndOfStream
		}

		wait := q.changed
		q.mu.Unlock()

		select {
		case <-wait:
		case <-ctx.Done():
			return Line{}, ctx.Err()
		}
	}
}

// Close marks the end of input. Queued lines are still delivered. Close is idempotent.
func (q *DispatchQueue) Close() {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return
	}
	q.closed = true
	q.notifyLocked()
}

// Abort closes the queue, discards queued lines and makes later pushes fail with cause.
// Only the first abort cause is kept. It returns the number of discarded lines.
func (q *DispatchQueue) Abort(cause error) int {
	q.mu.Lock()
	defer q.mu.Unlock()

	discarded := q.lenLocked()
	clear(q.items)
	q.items = q.items[:0]
	q.head = 0
	q.queuedBytes = 0

	if q.err == nil {
		q.err = cause
	}
	q.closed = true
	q.notifyLocked()
	return discarded
}

// Err returns the abort cause, if any.
func (q *DispatchQueue) Err() error {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.err
}

// Len returns the number of queued lines.
func (q *DispatchQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.lenLocked()
}

// compactLocked reclaims the space of popped lines once they make up half of the backing array.
func (q *DispatchQueue) compactLocked() {
	if q.head == 0 || q.head < len(q.items)/2 {
		return
	}
	n := copy(q.items, q.items[q.head:])
	clear(q.items[n:])
	q.items = q.items[:n]
	q.head = 0
}
