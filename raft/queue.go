package raft

import "context"

// BoundedQueue is a fixed-capacity FIFO built on a buffered channel: a
// non-blocking TryOffer, a context-aware blocking Take, and a non-blocking
// DrainTo for the worker's opportunistic bulk drain. It supports multiple
// producers and a single consumer.
type BoundedQueue[T any] struct {
	ch chan T
}

// NewBoundedQueue returns a BoundedQueue with a fixed capacity. A
// non-positive capacity is treated as 1.
func NewBoundedQueue[T any](capacity int) *BoundedQueue[T] {
	if capacity <= 0 {
		capacity = 1
	}
	return &BoundedQueue[T]{ch: make(chan T, capacity)}
}

// TryOffer attempts a non-blocking insert. It returns false if the queue is
// currently full; the item is not enqueued in that case.
func (q *BoundedQueue[T]) TryOffer(item T) bool {
	select {
	case q.ch <- item:
		return true
	default:
		return false
	}
}

// Take blocks until an item is available or ctx is done, in which case it
// returns ctx.Err().
func (q *BoundedQueue[T]) Take(ctx context.Context) (T, error) {
	select {
	case item := <-q.ch:
		return item, nil
	case <-ctx.Done():
		var zero T
		return zero, ctx.Err()
	}
}

// DrainTo moves every item currently available in the queue into *dst,
// without blocking, preserving FIFO order. It returns the number of items
// moved.
func (q *BoundedQueue[T]) DrainTo(dst *[]T) int {
	n := 0
	for {
		select {
		case item := <-q.ch:
			*dst = append(*dst, item)
			n++
		default:
			return n
		}
	}
}

// Len returns the number of items currently queued.
func (q *BoundedQueue[T]) Len() int { return len(q.ch) }

// Cap returns the queue's fixed capacity.
func (q *BoundedQueue[T]) Cap() int { return cap(q.ch) }
