// Package queue provides the bounded FIFO between discovery producers and
// the download worker.
package queue

import "context"

// Queue is a fixed-capacity FIFO. Put blocks while the queue is full and
// never drops; Get blocks while it is empty. Both return early with the
// context error once ctx is done.
type Queue[T any] struct {
	items chan T
}

// New creates a queue holding at most capacity items. capacity < 1 is
// treated as 1.
func New[T any](capacity int) *Queue[T] {
	if capacity < 1 {
		capacity = 1
	}
	return &Queue[T]{items: make(chan T, capacity)}
}

// Put appends item, waiting for space.
func (q *Queue[T]) Put(ctx context.Context, item T) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	select {
	case q.items <- item:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Get removes and returns the oldest item, waiting for one to arrive.
// Once ctx is done no further item is handed out.
func (q *Queue[T]) Get(ctx context.Context) (T, error) {
	var zero T
	if err := ctx.Err(); err != nil {
		return zero, err
	}
	select {
	case item := <-q.items:
		if err := ctx.Err(); err != nil {
			// lost the race with shutdown; the item is abandoned with the rest
			return zero, err
		}
		return item, nil
	case <-ctx.Done():
		return zero, ctx.Err()
	}
}

// Len returns the number of queued items.
func (q *Queue[T]) Len() int {
	return len(q.items)
}

// Cap returns the queue capacity.
func (q *Queue[T]) Cap() int {
	return cap(q.items)
}
