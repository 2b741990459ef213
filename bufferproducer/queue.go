// Copyright The OpenTelemetry Authors
// SPDX-License-Identifier: Apache-2.0

package bufferproducer // import "go.opentelemetry.io/capture-producer/bufferproducer"

import (
	"sync"
	"sync/atomic"
)

type node[T any] struct {
	next  atomic.Pointer[node[T]]
	value T
}

// Queue is an unbounded multi-producer single-consumer FIFO. Enqueue never
// blocks and may be called from any goroutine. TryDequeue, DequeueBulk and
// Empty must only be called from one goroutine at a time.
//
// The queue is a linked list with a stub node: producers atomically swap
// themselves in as head and then link their predecessor to them, the
// consumer follows next pointers from the tail. Nodes released by the
// consumer are recycled.
type Queue[T any] struct {
	head atomic.Pointer[node[T]]
	tail *node[T]
	pool sync.Pool
}

// NewQueue returns an empty queue.
func NewQueue[T any]() *Queue[T] {
	stub := &node[T]{}
	q := &Queue[T]{tail: stub}
	q.head.Store(stub)
	q.pool.New = func() any { return new(node[T]) }
	return q
}

// Enqueue appends v to the queue.
func (q *Queue[T]) Enqueue(v T) {
	n := q.pool.Get().(*node[T])
	n.value = v
	prev := q.head.Swap(n)
	// Until this store, the consumer sees the queue end at prev.
	prev.next.Store(n)
}

// TryDequeue removes the oldest element, if any.
func (q *Queue[T]) TryDequeue() (T, bool) {
	var zero T

	tail := q.tail
	next := tail.next.Load()
	if next == nil {
		return zero, false
	}

	v := next.value
	next.value = zero
	q.tail = next

	// No producer references tail anymore: the only one that did has
	// already linked next.
	tail.next.Store(nil)
	q.pool.Put(tail)
	return v, true
}

// DequeueBulk moves up to len(dst) elements into dst and returns how many it moved.
func (q *Queue[T]) DequeueBulk(dst []T) int {
	n := 0
	for n < len(dst) {
		v, ok := q.TryDequeue()
		if !ok {
			break
		}
		dst[n] = v
		n++
	}
	return n
}

// Empty reports whether the queue holds no element, including elements
// whose Enqueue has not returned yet.
func (q *Queue[T]) Empty() bool {
	return q.head.Load() == q.tail
}
