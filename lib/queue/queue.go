// Package queue provides a lock-free multi-producer single-consumer queue.
//
// The transport uses it to funnel response frames produced by concurrent
// workers into the single goroutine that owns the write side of a connection.
//
// Features and Guarantees:
//
//   - Lock-Free Push: producers append with atomic operations only
//   - Unbounded Size: the queue grows as needed, limited only by available memory
//   - Single Consumer: values are delivered through the channel returned by Recv
//   - Per-Producer Order: values pushed by one goroutine are received in push order.
//     Values from different producers interleave in the order their Push completed.
//   - Drain on Close: values pushed before Close are still delivered, then the
//     Recv channel is closed
package queue

import (
	"runtime"
	"sync"
	"sync/atomic"
)

// node is a single element of the linked list
type node[T any] struct {
	value T
	next  atomic.Pointer[node[T]]
}

// Queue is a lock-free multi-producer single-consumer queue backed by a
// linked list with a sentinel head
type Queue[T any] struct {
	head   atomic.Pointer[node[T]]
	tail   atomic.Pointer[node[T]]
	out    chan T
	done   chan struct{}
	closed atomic.Bool

	// the consumer parks on cond when the list is empty
	mu   sync.Mutex
	cond *sync.Cond
}

// New creates a queue and starts its delivery goroutine
func New[T any]() *Queue[T] {
	sentinel := &node[T]{}

	q := &Queue[T]{
		out:  make(chan T),
		done: make(chan struct{}),
	}
	q.cond = sync.NewCond(&q.mu)
	q.head.Store(sentinel)
	q.tail.Store(sentinel)

	go q.consume()

	return q
}

// Push appends value to the queue. It returns false if the queue is closed.
//
// Thread-safety: Push can be called concurrently.
func (q *Queue[T]) Push(value T) bool {
	if q.closed.Load() {
		return false
	}

	newNode := &node[T]{value: value}

	var backoff uint8
	for {
		tailNode := q.tail.Load()
		next := tailNode.next.Load()

		if next == nil {
			if tailNode.next.CompareAndSwap(nil, newNode) {
				// another producer may already have moved the tail for us
				q.tail.CompareAndSwap(tailNode, newNode)
				q.wake()
				return true
			}
		} else {
			// help a producer that appended but did not move the tail yet
			q.tail.CompareAndSwap(tailNode, next)
		}

		// exponential backoff under contention
		if backoff < 10 {
			backoff++
			for i := 0; i < 1<<backoff; i++ {
				runtime.Gosched()
			}
		}
		runtime.Gosched()
	}
}

// Recv returns the channel values are delivered on. It is closed after Close
// once every queued value has been received.
func (q *Queue[T]) Recv() <-chan T {
	return q.out
}

// Close stops accepting new values. Queued values are still delivered; a
// Push racing with Close may be dropped.
func (q *Queue[T]) Close() {
	q.closed.Store(true)
	q.wake()
}

// Done is closed when the delivery goroutine has exited
func (q *Queue[T]) Done() <-chan struct{} {
	return q.done
}

// IsClosed reports whether Close was called
func (q *Queue[T]) IsClosed() bool {
	return q.closed.Load()
}

// Len returns the number of queued values not yet handed to the consumer.
// It walks the list and is meant for metrics and debugging.
func (q *Queue[T]) Len() int {
	count := 0
	for n := q.head.Load().next.Load(); n != nil; n = n.next.Load() {
		count++
	}
	return count
}

// wake signals the consumer while holding the lock, so the signal cannot fall
// between the consumer's emptiness check and its Wait
func (q *Queue[T]) wake() {
	q.mu.Lock()
	q.cond.Signal()
	q.mu.Unlock()
}

// consume moves values from the list to the out channel
func (q *Queue[T]) consume() {
	defer close(q.done)
	defer close(q.out)

	var zero T
	for {
		delivered := false

		for {
			head := q.head.Load()
			next := head.next.Load()
			if next == nil {
				break
			}
			delivered = true

			value := next.value
			q.head.Store(next)
			q.out <- value

			// next is the new sentinel, drop its reference for the gc
			next.value = zero
		}

		if delivered {
			continue
		}

		q.mu.Lock()
		if q.head.Load().next.Load() == nil {
			if q.closed.Load() {
				q.mu.Unlock()
				return
			}
			q.cond.Wait()
		}
		q.mu.Unlock()
	}
}
