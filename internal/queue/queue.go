// Package queue provides an unbounded FIFO mailbox.
//
// Engines deliver frame events through Unbounded so the render loop never
// blocks on a slow consumer. The consumer takes the whole backlog at once
// and decides what to drop.
package queue

import "sync"

// Unbounded buffers values without limit. Push never blocks; TakeAll hands
// the consumer every pending value in push order. No goroutine is involved,
// so an abandoned queue is released with its last reference.
//
// Unbounded implements compositor.Events when T is compositor.FrameEvent.
type Unbounded[T any] struct {
	mu     sync.Mutex
	buf    []T
	closed bool
	ready  chan struct{}
}

// New creates an empty queue.
func New[T any]() *Unbounded[T] {
	return &Unbounded[T]{ready: make(chan struct{}, 1)}
}

// Push appends v and signals Ready. It reports false, dropping v, if the
// queue is closed.
func (q *Unbounded[T]) Push(v T) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return false
	}
	q.buf = append(q.buf, v)
	select {
	case q.ready <- struct{}{}:
	default:
	}
	return true
}

// TakeAll removes and returns every pending value. open is false once the
// queue is closed; values pushed before Close are still returned by the
// first TakeAll after it.
func (q *Unbounded[T]) TakeAll() (values []T, open bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	values, q.buf = q.buf, nil
	return values, !q.closed
}

// Ready receives a value after Push and is closed by Close. A receive from
// Ready may be spurious; callers re-check with TakeAll.
func (q *Unbounded[T]) Ready() <-chan struct{} {
	return q.ready
}

// Len returns the number of pending values.
func (q *Unbounded[T]) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.buf)
}

// Close stops accepting values and wakes every waiter. Close is idempotent.
func (q *Unbounded[T]) Close() {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return
	}
	q.closed = true
	close(q.ready)
}
