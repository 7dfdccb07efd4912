/*
 * MIT License
 *
 * Copyright (c) 2026 ipsock contributors
 *
 * Permission is hereby granted, free of charge, to any person obtaining a copy
 * of this software and associated documentation files (the "Software"), to deal
 * in the Software without restriction, including without limitation the rights
 * to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
 * copies of the Software, and to permit persons to whom the Software is
 * furnished to do so, subject to the following conditions:
 *
 * The above copyright notice and this permission notice shall be included in all
 * copies or substantial portions of the Software.
 *
 * THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
 * IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
 * FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
 * AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
 * LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
 * OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN THE
 * SOFTWARE.
 *
 *
 */

// Package squeue is the bounded, thread-safe FIFO of §4.2: fixed
// capacity, blocking (Wait) and non-blocking (NoWait) enqueue/dequeue,
// with drop-oldest overwrite on a NoWait enqueue into a full queue (see
// spec.md §9 Open Questions — the "drop-oldest overwrite" reading is
// the one this module implements).
//
// Slot typing is carried by Go generics rather than an element-size
// parameter: Queue[T] is fixed to one T per slot for its lifetime,
// which is the same guarantee the original "fixed element size"
// contract gives, expressed the idiomatic way.
package squeue

import (
	"sync"
)

// Mode selects blocking (Wait) or non-blocking (NoWait) behavior for
// Enqueue and Dequeue.
type Mode uint8

const (
	Wait Mode = iota
	NoWait
)

// Queue is a bounded FIFO of capacity items of type T.
type Queue[T any] struct {
	mu       sync.Mutex
	notEmpty *sync.Cond
	notFull  *sync.Cond
	items    []T
	cap      int
	closed   bool
}

// New creates a queue able to hold capacity items. A non-positive
// capacity is treated as 1.
func New[T any](capacity int) *Queue[T] {
	if capacity <= 0 {
		capacity = 1
	}

	q := &Queue[T]{
		items: make([]T, 0, capacity),
		cap:   capacity,
	}
	q.notEmpty = sync.NewCond(&q.mu)
	q.notFull = sync.NewCond(&q.mu)

	return q
}

// Enqueue adds item to the tail of the queue.
//
// In Wait mode it blocks until a slot is free or the queue is
// discarded, in which case it returns false.
//
// In NoWait mode, a full queue does not block: the oldest item is
// dropped to make room for item, so the freshest message survives.
// Enqueue on a discarded queue always returns false.
func (q *Queue[T]) Enqueue(item T, mode Mode) bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return false
	}

	if len(q.items) >= q.cap {
		switch mode {
		case Wait:
			for len(q.items) >= q.cap && !q.closed {
				q.notFull.Wait()
			}
			if q.closed {
				return false
			}
		default: // NoWait
			q.items = append(q.items[:0], q.items[1:]...)
		}
	}

	q.items = append(q.items, item)
	q.notEmpty.Signal()

	return true
}

// Dequeue removes and returns the item at the head of the queue.
//
// In Wait mode it blocks until an item is available or the queue is
// discarded, in which case ok is false.
//
// In NoWait mode it returns immediately with ok false when the queue
// is empty.
func (q *Queue[T]) Dequeue(mode Mode) (item T, ok bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.items) == 0 {
		switch mode {
		case Wait:
			for len(q.items) == 0 && !q.closed {
				q.notEmpty.Wait()
			}
			if len(q.items) == 0 {
				return item, false
			}
		default: // NoWait
			return item, false
		}
	}

	item = q.items[0]
	q.items = q.items[1:]
	q.notFull.Signal()

	return item, true
}

// Count returns the number of items currently queued.
func (q *Queue[T]) Count() int {
	q.mu.Lock()
	defer q.mu.Unlock()

	return len(q.items)
}

// Discard empties the queue and wakes every blocked Enqueue/Dequeue
// caller. Further operations are no-ops returning false/empty.
func (q *Queue[T]) Discard() {
	q.mu.Lock()
	defer q.mu.Unlock()

	q.closed = true
	q.items = nil
	q.notEmpty.Broadcast()
	q.notFull.Broadcast()
}
