package util

import (
	"container/heap"
	"context"
	"errors"
	"sync"
)

var (
	ErrPriorityQueueClosed = errors.New("priority queue closed")
	ErrPriorityQueueEmpty  = errors.New("priority queue empty")
)

// PriorityItem represents an item with priority
type PriorityItem[T any] struct {
	Value    T
	Priority int    // Higher number means higher priority
	Seq      uint64 // Insertion order, ties within a priority resolved FIFO
	Index    int    // Used by heap interface
}

// PriorityQueue implements a stable priority queue using heap.
// Items of equal priority are popped in insertion order.
type PriorityQueue[T any] struct {
	items  []*PriorityItem[T]
	seq    uint64
	mu     sync.Mutex
	wake   chan struct{}
	closed bool
}

// NewPriorityQueue creates a new priority queue
func NewPriorityQueue[T any]() *PriorityQueue[T] {
	pq := &PriorityQueue[T]{
		items: make([]*PriorityItem[T], 0),
		wake:  make(chan struct{}, 1),
	}
	heap.Init(pq)
	return pq
}

// Len implements heap.Interface
func (pq *PriorityQueue[T]) Len() int { return len(pq.items) }

// Less implements heap.Interface (higher priority first, FIFO within a priority)
func (pq *PriorityQueue[T]) Less(i, j int) bool {
	if pq.items[i].Priority != pq.items[j].Priority {
		return pq.items[i].Priority > pq.items[j].Priority
	}
	return pq.items[i].Seq < pq.items[j].Seq
}

// Swap implements heap.Interface
func (pq *PriorityQueue[T]) Swap(i, j int) {
	pq.items[i], pq.items[j] = pq.items[j], pq.items[i]
	pq.items[i].Index = i
	pq.items[j].Index = j
}

// Push implements heap.Interface
func (pq *PriorityQueue[T]) Push(x interface{}) {
	n := len(pq.items)
	item := x.(*PriorityItem[T])
	item.Index = n
	pq.items = append(pq.items, item)
}

// Pop implements heap.Interface
func (pq *PriorityQueue[T]) Pop() interface{} {
	old := pq.items
	n := len(old)
	item := old[n-1]
	old[n-1] = nil
	item.Index = -1
	pq.items = old[0 : n-1]
	return item
}

// PushItem adds an item to the priority queue
func (pq *PriorityQueue[T]) PushItem(value T, priority int) error {
	pq.mu.Lock()
	if pq.closed {
		pq.mu.Unlock()
		return ErrPriorityQueueClosed
	}

	pq.seq++
	item := &PriorityItem[T]{
		Value:    value,
		Priority: priority,
		Seq:      pq.seq,
	}
	heap.Push(pq, item)
	pq.mu.Unlock()

	select {
	case pq.wake <- struct{}{}:
	default:
	}
	return nil
}

// PopItem removes and returns the highest priority item, blocking until an
// item is available, the context is cancelled, or the queue is closed.
func (pq *PriorityQueue[T]) PopItem(ctx context.Context) (T, error) {
	var zero T

	for {
		pq.mu.Lock()
		if len(pq.items) > 0 {
			item := heap.Pop(pq).(*PriorityItem[T])
			pq.mu.Unlock()
			return item.Value, nil
		}
		closed := pq.closed
		pq.mu.Unlock()

		if closed {
			return zero, ErrPriorityQueueClosed
		}

		select {
		case <-pq.wake:
		case <-ctx.Done():
			return zero, ctx.Err()
		}
	}
}

// TryPopItem removes and returns the highest priority item without blocking.
func (pq *PriorityQueue[T]) TryPopItem() (T, error) {
	var zero T

	pq.mu.Lock()
	defer pq.mu.Unlock()

	if len(pq.items) > 0 {
		item := heap.Pop(pq).(*PriorityItem[T])
		return item.Value, nil
	}
	if pq.closed {
		return zero, ErrPriorityQueueClosed
	}
	return zero, ErrPriorityQueueEmpty
}

// Close closes the priority queue and wakes any blocked consumers.
func (pq *PriorityQueue[T]) Close() {
	pq.mu.Lock()
	pq.closed = true
	pq.mu.Unlock()

	select {
	case pq.wake <- struct{}{}:
	default:
	}
}

// IsEmpty checks if the queue is empty
func (pq *PriorityQueue[T]) IsEmpty() bool {
	pq.mu.Lock()
	defer pq.mu.Unlock()
	return len(pq.items) == 0
}
