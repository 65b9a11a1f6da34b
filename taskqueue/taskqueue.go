// Copyright 2026 Joseph Cumines
//
// Permission to use, copy, modify, and distribute this software for any
// purpose with or without fee is hereby granted, provided that this copyright
// notice appears in all copies.

// Package taskqueue implements the scheduler's priority-bucket ready queue.
//
// A Queue[T] holds one ilist.List[T] per priority level plus a bitmask with
// one bit per non-empty bucket; the highest-set bit is found with
// math/bits.Len64, turning "find the highest-priority runnable task" into a
// single instruction on real hardware and a handful on a host. Within a
// bucket, FIFO order is preserved (round-robin among equal-priority tasks),
// matching the fixed-priority scheduler's tie-breaking rule.
//
// Queue[T] owns no per-item bookkeeping beyond the bucket lists themselves:
// callers are responsible for remembering which priority an enqueued item
// is filed under (the kernel stores this on the task's own control block),
// since an ilist.Node[T] carries no queue-back-reference by design.
package taskqueue

import (
	"math/bits"

	"github.com/joeycumines/go-rtkernel/ilist"
)

// Queue is a fixed-width array of FIFO buckets, one per priority level,
// selected by a find-highest-set-bit scan of the occupancy mask.
type Queue[T any] struct {
	buckets []ilist.List[T]
	mask    uint64
}

// New creates a Queue with prioCount priority levels, numbered 0 (lowest)
// through prioCount-1 (highest). prioCount must be in [1, 64].
func New[T any](prioCount int) *Queue[T] {
	if prioCount < 1 || prioCount > 64 {
		panic("taskqueue: prioCount must be in [1, 64]")
	}
	q := &Queue[T]{buckets: make([]ilist.List[T], prioCount)}
	for i := range q.buckets {
		q.buckets[i].Init()
	}
	return q
}

// PrioCount returns the number of priority levels the queue was built with.
func (q *Queue[T]) PrioCount() int {
	return len(q.buckets)
}

// Empty reports whether every bucket is empty.
func (q *Queue[T]) Empty() bool {
	return q.mask == 0
}

// HighestPrio returns the highest occupied priority level and true, or
// (0, false) if the queue is empty.
func (q *Queue[T]) HighestPrio() (int, bool) {
	if q.mask == 0 {
		return 0, false
	}
	return bits.Len64(q.mask) - 1, true
}

// Enqueue links node (whose Item must equal item) at the tail of the bucket
// for prio.
func (q *Queue[T]) Enqueue(node *ilist.Node[T], item *T, prio int) {
	node.Item = item
	q.buckets[prio].Append(node)
	q.mask |= 1 << uint(prio)
}

// EnqueueFront links node at the head of the bucket for prio, for a task
// resuming after a timeslice preemption that should not lose its place
// ahead of tasks that were already waiting at the same priority.
func (q *Queue[T]) EnqueueFront(node *ilist.Node[T], item *T, prio int) {
	node.Item = item
	q.buckets[prio].Prepend(node)
	q.mask |= 1 << uint(prio)
}

// Dequeue removes and returns the item at the front of the highest occupied
// bucket, or nil, false if the queue is empty.
func (q *Queue[T]) Dequeue() (*T, bool) {
	prio, ok := q.HighestPrio()
	if !ok {
		return nil, false
	}
	return q.DequeueFrom(prio)
}

// DequeueFrom removes and returns the item at the front of the bucket for
// prio, or nil, false if that bucket is empty.
func (q *Queue[T]) DequeueFrom(prio int) (*T, bool) {
	b := &q.buckets[prio]
	n := b.DetachFirst()
	if n == nil {
		return nil, false
	}
	if b.IsEmpty() {
		q.mask &^= 1 << uint(prio)
	}
	return n.Item, true
}

// DequeueIfPrioGE removes and returns the item at the front of the highest
// occupied bucket only if that bucket's priority is >= minPrio, or nil,
// false otherwise (including when the queue is empty). Used by the
// scheduler to implement "switch only if something at least this urgent
// is ready" (minPrio == current priority) versus "...strictly more urgent"
// (minPrio == current priority + 1).
func (q *Queue[T]) DequeueIfPrioGE(minPrio int) (*T, bool) {
	prio, ok := q.HighestPrio()
	if !ok || prio < minPrio {
		return nil, false
	}
	return q.DequeueFrom(prio)
}

// Peek returns the item at the front of the highest occupied bucket without
// removing it.
func (q *Queue[T]) Peek() (*T, bool) {
	prio, ok := q.HighestPrio()
	if !ok {
		return nil, false
	}
	n := q.buckets[prio].PeekFirst()
	if n == nil {
		return nil, false
	}
	return n.Item, true
}

// Unlink removes node from the bucket for prio. node must currently be
// linked there (e.g. via Enqueue at that same prio); a no-op on an
// already-unlinked node is not detected here, since prio is required to
// locate the right bucket's mask bit.
func (q *Queue[T]) Unlink(node *ilist.Node[T], prio int) {
	ilist.Unlink(node)
	if q.buckets[prio].IsEmpty() {
		q.mask &^= 1 << uint(prio)
	}
}

// Reprio moves node from bucket oldPrio to the tail of bucket newPrio,
// typically in response to priority inheritance or its unwind.
func (q *Queue[T]) Reprio(node *ilist.Node[T], item *T, oldPrio, newPrio int) {
	if oldPrio == newPrio {
		return
	}
	q.Unlink(node, oldPrio)
	q.Enqueue(node, item, newPrio)
}
