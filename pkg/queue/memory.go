package queue

import "fmt"

// InMemoryQueue implements a bounded in-memory queue over a buffered
// channel. Enqueue fails instead of blocking when the queue is full,
// which is what best-effort delivery paths want.
type InMemoryQueue struct {
	ch chan interface{}
}

// NewInMemoryQueue creates a new queue with the given capacity.
func NewInMemoryQueue(capacity int) *InMemoryQueue {
	return &InMemoryQueue{
		ch: make(chan interface{}, capacity),
	}
}

// Enqueue adds an item to the end of the queue.
// It returns an error if the queue is full.
func (q *InMemoryQueue) Enqueue(item interface{}) error {
	select {
	case q.ch <- item:
		return nil
	default:
		return fmt.Errorf("queue is full")
	}
}

// Wait returns a channel that receives queued items, for consumers
// that want to block until something is available.
func (q *InMemoryQueue) Wait() <-chan interface{} {
	return q.ch
}

// Size returns the current size of the queue.
func (q *InMemoryQueue) Size() int {
	return len(q.ch)
}

// ClearQueue drops all pending items.
func (q *InMemoryQueue) ClearQueue() {
	for {
		select {
		case <-q.ch:
		default:
			return
		}
	}
}
