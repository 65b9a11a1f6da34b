// Copyright 2026 Joseph Cumines
//
// Permission to use, copy, modify, and distribute this software for any
// purpose with or without fee is hereby granted, provided that this copyright
// notice appears in all copies.

package rtkernel

import (
	"github.com/joeycumines/go-rtkernel/klog"
	"github.com/joeycumines/go-rtkernel/taskqueue"
)

// scheduleLocked hands the CPU to the highest-priority ready task whose
// priority is at least the current task's (strictly greater when higherOnly).
// Must be called inside the critical section. A no-op while the scheduler
// lock is held; from ISR context it only records the decision for the
// deferred tick-exit reschedule.
func (k *Kernel) scheduleLocked(higherOnly bool) {
	if k.schedLock > 0 || k.current == nil {
		return
	}
	min := k.current.prioCurrent
	if higherOnly {
		min++
	}
	if k.isrNesting > 0 {
		if p, ok := k.ready.HighestPrio(); ok && p >= min {
			k.preemptPending = true
		}
		return
	}
	next, ok := k.ready.DequeueIfPrioGE(min)
	if !ok {
		return
	}
	next.queue = nil
	k.displaceLocked(k.current)
	k.dispatchLocked(next)
}

// displaceLocked moves the running task aside to make room for a switch.
// The idle task is never queued; a task preempted inside the prepared window
// of the wait-queue protocol is routed into the wait-queue it registered on,
// so a notifier always finds it.
func (k *Kernel) displaceLocked(old *Task) {
	if old == k.idle {
		old.state = StateReady
		return
	}
	if old.waitQueue != nil && old.waitQueue.q != nil {
		old.state = StateWait
		old.blockReason = blockWaitQueue
		q := old.waitQueue.q
		old.queue = q
		old.queuePrio = old.prioCurrent
		q.Enqueue(&old.node, old, old.prioCurrent)
		return
	}
	old.state = StateReady
	old.blockReason = blockNone
	old.queue = k.ready
	old.queuePrio = old.prioCurrent
	k.ready.Enqueue(&old.node, old, old.prioCurrent)
}

// pickNextLocked dequeues the highest-priority ready task, falling back to
// the idle task, which is always available.
func (k *Kernel) pickNextLocked() *Task {
	if t, ok := k.ready.Dequeue(); ok {
		t.queue = nil
		return t
	}
	return k.idle
}

// dispatchLocked transfers the CPU to next. For the displaced context this
// call returns only when the scheduler hands the CPU back, with the critical
// section re-held.
func (k *Kernel) dispatchLocked(next *Task) {
	if k.opts.selfCheck && next.state == StateDestroyed {
		k.halt("sched", "dispatch of destroyed task %q", next.name)
		return
	}
	next.state = StateRunning
	next.queue = nil
	k.current = next
	if k.met != nil {
		k.met.ContextSwitches.Add(1)
	}
	klog.Debugf(k.log, "sched", "switch to %q prio=%d", next.name, next.prioCurrent)
	k.port.ContextSwitch(next)
}

// blockAndSwitchLocked unconditionally moves the current task to StateWait
// in q and switches to whichever task the ready-queue yields (the idle task
// backstops, so this never fails). Never callable from ISR context.
func (k *Kernel) blockAndSwitchLocked(q *taskqueue.Queue[Task], reason blockReason) {
	cur := k.current
	if k.opts.selfCheck {
		if k.isrNesting > 0 {
			k.halt("sched", "block attempted from ISR context")
			return
		}
		if cur == k.idle {
			k.halt("sched", "idle task attempted to block")
			return
		}
		if reason != blockWaitQueue && cur.waitQueue != nil {
			k.halt("sched", "task %q blocked on %d while prepared on a wait-queue", cur.name, reason)
			return
		}
	}
	cur.state = StateWait
	cur.blockReason = reason
	cur.queue = q
	cur.queuePrio = cur.prioCurrent
	q.Enqueue(&cur.node, cur, cur.prioCurrent)
	k.dispatchLocked(k.pickNextLocked())
	// Resumed: the waker has already set blockCode and relinked nothing —
	// this task was dequeued from q before being made ready.
}

// makeReadyLocked marks t runnable and files it in the ready-queue. The
// context switch, if any, is the caller's decision.
func (k *Kernel) makeReadyLocked(t *Task) {
	t.state = StateReady
	t.blockReason = blockNone
	t.queue = k.ready
	t.queuePrio = t.prioCurrent
	k.ready.Enqueue(&t.node, t, t.prioCurrent)
}

// unlinkWaiterLocked detaches t from the wait-list it is filed in, as a
// waker or timeout does before making it ready.
func (k *Kernel) unlinkWaiterLocked(t *Task) {
	if t.queue != nil {
		t.queue.Unlink(&t.node, t.queuePrio)
		t.queue = nil
	}
}

// reprioLocked changes t's effective priority, repositioning it within
// whatever queue currently holds it so FIFO order at the new priority is
// preserved.
func (k *Kernel) reprioLocked(t *Task, newPrio int) {
	if t.queue != nil {
		t.queue.Reprio(&t.node, t, t.queuePrio, newPrio)
		t.queuePrio = newPrio
	}
	t.prioCurrent = newPrio
}

// destroyBlockTimerLocked disarms t's block-timeout timer, if armed.
func (k *Kernel) destroyBlockTimerLocked(t *Task) {
	if t.blockTimer != nil {
		t.blockTimer.Destroy(k.wheel)
		t.blockTimer = nil
	}
}
