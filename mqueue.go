// Copyright 2026 Joseph Cumines
//
// Permission to use, copy, modify, and distribute this software for any
// purpose with or without fee is hereby granted, provided that this copyright
// notice appears in all copies.

package rtkernel

import (
	"unsafe"

	"github.com/joeycumines/go-rtkernel/ring"
)

// Discipline selects which producer/consumer safety an MQueue is built for.
// The choice binds the ring's enqueue and dequeue variants once, at
// construction; single-side variants skip the multi-side CAS and
// commit-order spin.
type Discipline uint8

const (
	// SPSC: one producer task, one consumer task.
	SPSC Discipline = iota
	// MPSC: many producers, one consumer.
	MPSC
	// SPMC: one producer, many consumers.
	SPMC
	// MPMC: many producers, many consumers.
	MPMC
)

// MQueue is a bounded message queue of opaque non-nil pointers layered over
// the lock-free ring and a wait-queue. Usable capacity is the ring capacity
// minus one. Post with a multi-producer discipline (and Pop with a
// multi-consumer one) must not be used from ISR context; the single-side
// variants are ISR-safe for the ring operation itself.
type MQueue struct {
	k  *Kernel
	wq WaitQueue
	r  *ring.Ring

	enq func([]unsafe.Pointer) int
	deq func([]unsafe.Pointer) int
}

// MQueueInit prepares q with the given power-of-two ring capacity and
// discipline.
func (k *Kernel) MQueueInit(q *MQueue, capacity int, d Discipline) error {
	if capacity <= 1 || capacity&(capacity-1) != 0 {
		return ErrCapacityNotPow2
	}
	q.k = k
	q.r = ring.New(capacity)
	switch d {
	case SPSC:
		q.enq, q.deq = q.r.EnqueueSP, q.r.DequeueSC
	case MPSC:
		q.enq, q.deq = q.r.EnqueueMP, q.r.DequeueSC
	case SPMC:
		q.enq, q.deq = q.r.EnqueueSP, q.r.DequeueMC
	case MPMC:
		q.enq, q.deq = q.r.EnqueueMP, q.r.DequeueMC
	default:
		return ErrInvalidState
	}
	k.WaitQueueInit(&q.wq)
	return nil
}

// Cap returns the usable capacity.
func (q *MQueue) Cap() int { return q.r.Cap() - 1 }

// Len returns the current occupancy. Diagnostic.
func (q *MQueue) Len() int { return q.r.Len() }

// Post enqueues as many of items as fit and wakes all waiters if any were
// committed. Returns the count committed (possibly partial, never
// negative); a shortfall is backpressure the caller handles.
func (q *MQueue) Post(items []unsafe.Pointer) int {
	n := q.enq(items)
	if n < len(items) {
		if m := q.k.met; m != nil {
			m.RingOverflows.Add(1)
		}
	}
	if n > 0 {
		q.wq.Wakeup(WakeAll)
	}
	return n
}

// Pop dequeues up to len(out) messages, blocking up to timeout ticks while
// the queue is empty. Returns the count retrieved and the wait outcome.
func (q *MQueue) Pop(out []unsafe.Pointer, timeout Timeout) (int, Result) {
	if len(out) == 0 {
		return 0, ResultOK
	}
	var wo WaitObj
	for {
		q.wq.Prepare(&wo, timeout)
		if n := q.deq(out); n > 0 {
			q.wq.Finish(&wo)
			return n, ResultOK
		}
		if timeout == DontWait {
			q.wq.Finish(&wo)
			return 0, ResultWouldBlock
		}
		rc := q.wq.Wait(&wo)
		if rc != ResultOK {
			return 0, rc
		}
	}
}
