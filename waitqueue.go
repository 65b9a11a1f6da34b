// Copyright 2026 Joseph Cumines
//
// Permission to use, copy, modify, and distribute this software for any
// purpose with or without fee is hereby granted, provided that this copyright
// notice appears in all copies.

package rtkernel

import (
	"github.com/joeycumines/go-rtkernel/klog"
	"github.com/joeycumines/go-rtkernel/taskqueue"
	"github.com/joeycumines/go-rtkernel/timer"
)

// WakeAll makes WaitQueue.Wakeup wake every waiter.
const WakeAll = -1

// WaitObj is the caller-supplied scratch a prepare/wait pair needs: storage
// for one timeout timer. It lives on the receiver's frame across the pair
// and must not be shared between concurrent waits.
type WaitObj struct {
	timer timer.Timer
}

// WaitQueue is the condition-variable-like primitive closing the lost-wakeup
// race through a three-step receiver protocol:
//
//	for {
//		wq.Prepare(&wo, timeout)
//		if condition() {
//			wq.Finish(&wo)
//			break
//		}
//		if rc := wq.Wait(&wo); rc != ResultOK {
//			break // ResultTimeout or ResultDestroyed
//		}
//	}
//
// A notifier sets the condition, then calls Wakeup. Between Prepare and Wait
// the receiver is registered on the queue even while still running, so a
// wakeup delivered in that window is never lost: an ISR-context Wakeup that
// finds the interrupted task itself prepared consumes one wakeup by clearing
// the registration, and a preemption in that window routes the task into
// this queue's wait-list rather than the ready-queue.
//
// A task may be prepared on at most one wait-queue at a time.
type WaitQueue struct {
	k *Kernel
	q *taskqueue.Queue[Task]
}

// WaitQueueInit prepares wq. Fatal if the kernel was built with the
// wait-queue module disabled.
func (k *Kernel) WaitQueueInit(wq *WaitQueue) {
	st := k.crit()
	if !k.opts.waitQueue {
		k.halt("waitqueue", "wait-queue module disabled")
		return
	}
	wq.k = k
	wq.q = taskqueue.New[Task](k.opts.prioCount)
	k.exit(st)
}

// Prepare registers the calling task on wq and optionally arms a timeout.
// The task keeps running; it enters WAIT only if a subsequent Wait finds the
// registration still standing. Every Prepare must be matched by exactly one
// Finish or Wait. Not callable from ISR context.
func (wq *WaitQueue) Prepare(wo *WaitObj, timeout Timeout) {
	k := wq.k
	st := k.crit()
	defer k.exit(st)
	cur := k.current
	if k.opts.apiCheck {
		if k.isrNesting > 0 {
			k.halt("waitqueue", "WaitQueue.Prepare called from ISR context")
			return
		}
		if cur.waitQueue != nil {
			k.halt("waitqueue", "task %q prepared on a second wait-queue", cur.name)
			return
		}
	}
	cur.blockCode = ResultOK
	cur.waitQueue = wq
	if timeout > 0 {
		k.armTimerLocked(&wo.timer, int64(timeout), 0, k.waitQueueTimeout, cur)
		cur.blockTimer = &wo.timer
	}
}

// Finish deregisters the calling task: the fast-path exit when the checked
// condition was already true.
func (wq *WaitQueue) Finish(wo *WaitObj) {
	k := wq.k
	st := k.crit()
	cur := k.current
	cur.waitQueue = nil
	k.destroyBlockTimerLocked(cur)
	k.exit(st)
}

// Wait suspends the calling task until a wakeup, timeout, or destroy. If a
// notifier (or the timeout) already consumed the registration since Prepare,
// it returns immediately with the delivered code.
func (wq *WaitQueue) Wait(wo *WaitObj) Result {
	k := wq.k
	st := k.crit()
	defer k.exit(st)
	cur := k.current
	if k.opts.apiCheck && k.isrNesting > 0 {
		k.halt("waitqueue", "WaitQueue.Wait called from ISR context")
		return ResultInvalid
	}
	if cur.waitQueue == nil {
		k.destroyBlockTimerLocked(cur)
		return cur.blockCode
	}
	if cur.waitQueue.q == nil {
		// Destroyed in the prepared window.
		cur.waitQueue = nil
		k.destroyBlockTimerLocked(cur)
		return ResultDestroyed
	}
	k.blockAndSwitchLocked(cur.waitQueue.q, blockWaitQueue)
	k.destroyBlockTimerLocked(cur)
	return cur.blockCode
}

// waitQueueTimeout is the timer callback for a timed prepare/wait. The timer
// may fire in the window between Prepare and Wait, while the task still
// runs (or sits preempted in the queue's wait-list); the mixed-state
// handling below covers both.
func (k *Kernel) waitQueueTimeout(p any) {
	t := p.(*Task)
	t.blockTimer = nil
	if t.waitQueue == nil {
		return
	}
	t.waitQueue = nil
	t.blockCode = ResultTimeout
	if t.state == StateWait {
		k.unlinkWaiterLocked(t)
		k.makeReadyLocked(t)
		k.scheduleLocked(true)
	}
	// Still running (prepared, not yet waiting): only the registration and
	// code change; Wait will observe them without blocking.
}

// Wakeup wakes up to nbr waiters (WakeAll for every waiter) with ResultOK.
// nbr == 0 is a no-op. ISR-safe: an ISR-context call that finds the
// interrupted task itself prepared on wq consumes one wakeup by clearing its
// registration — the race-closing case of the protocol.
func (wq *WaitQueue) Wakeup(nbr int) {
	if nbr == 0 {
		return
	}
	k := wq.k
	st := k.crit()
	defer k.exit(st)
	cur := k.current
	if k.isrNesting > 0 && cur != nil && cur.waitQueue == wq {
		cur.waitQueue = nil
		k.destroyBlockTimerLocked(cur)
		cur.blockCode = ResultOK
		if nbr > 0 {
			nbr--
		}
	}
	for nbr != 0 {
		t, ok := wq.q.Dequeue()
		if !ok {
			break
		}
		t.queue = nil
		t.waitQueue = nil
		k.destroyBlockTimerLocked(t)
		t.blockCode = ResultOK
		k.makeReadyLocked(t)
		k.scheduleLocked(true)
		if nbr > 0 {
			nbr--
		}
	}
}

// Destroy wakes every waiter with ResultDestroyed and scrubs wq.
func (wq *WaitQueue) Destroy() {
	k := wq.k
	st := k.crit()
	defer k.exit(st)
	if wq.q == nil {
		return
	}
	woke := false
	for {
		t, ok := wq.q.Dequeue()
		if !ok {
			break
		}
		t.queue = nil
		t.waitQueue = nil
		k.destroyBlockTimerLocked(t)
		t.blockCode = ResultDestroyed
		k.makeReadyLocked(t)
		woke = true
	}
	wq.q = nil
	if woke {
		klog.Debugf(k.log, "waitqueue", "wait-queue destroyed with waiters")
		k.scheduleLocked(true)
	}
}
