// Copyright 2026 Joseph Cumines
//
// Permission to use, copy, modify, and distribute this software for any
// purpose with or without fee is hereby granted, provided that this copyright
// notice appears in all copies.

package rtkernel

import (
	"github.com/joeycumines/go-rtkernel/ilist"
	"github.com/joeycumines/go-rtkernel/klog"
	"github.com/joeycumines/go-rtkernel/taskqueue"
)

// Mutex is an owner-tracked recursive lock with priority inheritance.
// Applications allocate the Mutex and initialize it with Kernel.MutexInit.
// Not usable from ISR context.
type Mutex struct {
	k *Kernel

	// node links this mutex into its owner's ownership list while locked.
	node ilist.Node[Mutex]

	owner     *Task
	q         *taskqueue.Queue[Task]
	recursion uint32
}

// MutexInit prepares m unlocked.
func (k *Kernel) MutexInit(m *Mutex) {
	st := k.crit()
	m.k = k
	m.node.Init()
	m.node.Item = m
	m.owner = nil
	m.recursion = 0
	m.q = taskqueue.New[Task](k.opts.prioCount)
	k.exit(st)
}

// Owner returns the task currently holding m, or nil. Diagnostic.
func (m *Mutex) Owner() *Task { return m.owner }

// Lock acquires m, blocking while another task owns it. Relocking by the
// owner nests; each Lock must be matched by an Unlock. While the caller
// waits, every task in the blocking-on chain is boosted to at least the
// caller's effective priority (priority inheritance). Returns ResultOK, or
// ResultDestroyed if m was destroyed while the caller waited.
func (m *Mutex) Lock() Result {
	k := m.k
	st := k.crit()
	defer k.exit(st)
	if k.opts.apiCheck {
		if k.isrNesting > 0 {
			k.halt("mutex", "Mutex.Lock called from ISR context")
			return ResultInvalid
		}
		if k.current == k.idle {
			k.halt("mutex", "idle task attempted Mutex.Lock")
			return ResultInvalid
		}
	}
	if m.q == nil {
		return ResultDestroyed
	}
	cur := k.current
	if m.owner == nil {
		m.owner = cur
		m.recursion = 1
		cur.mutexes.Append(&m.node)
		return ResultOK
	}
	if m.owner == cur {
		m.recursion++
		return ResultOK
	}
	if k.opts.prioInherit {
		m.inheritLocked(cur)
	}
	cur.blockCode = ResultOK
	cur.waitMutex = m
	k.blockAndSwitchLocked(m.q, blockMutex)
	cur.waitMutex = nil
	// On ResultOK, Unlock already transferred ownership to this task.
	return cur.blockCode
}

// inheritLocked walks the blocking-on chain from m's owner, boosting every
// task along it to at least caller's effective priority: if the owner is
// itself blocked on a mutex, that mutex's owner inherits too, and so on
// until a task that is not mutex-blocked terminates the chain.
func (m *Mutex) inheritLocked(caller *Task) {
	k := m.k
	t := m.owner
	for t != nil {
		if t == caller {
			// The blocking-on chain loops back to the caller: the lock about
			// to be taken can never be granted.
			k.halt("mutex", "mutex deadlock cycle involving task %q", caller.name)
			return
		}
		if caller.prioCurrent > t.prioCurrent {
			klog.Debugf(k.log, "mutex", "task %q boosted %d -> %d by %q",
				t.name, t.prioCurrent, caller.prioCurrent, caller.name)
			k.reprioLocked(t, caller.prioCurrent)
			if k.met != nil {
				k.met.MutexBoosts.Add(1)
			}
		}
		if t.state == StateWait && t.blockReason == blockMutex && t.waitMutex != nil {
			t = t.waitMutex.owner
			continue
		}
		break
	}
}

// Unlock releases one level of recursion; on the outermost release the
// caller's effective priority is recomputed as the supremum over its
// remaining ownership obligations, and ownership transfers directly to the
// highest-priority waiter, if any — never released "to the air", so FIFO
// within a priority class is preserved and starvation is bounded by
// priority.
func (m *Mutex) Unlock() {
	k := m.k
	st := k.crit()
	defer k.exit(st)
	cur := k.current
	if k.opts.apiCheck {
		if k.isrNesting > 0 {
			k.halt("mutex", "Mutex.Unlock called from ISR context")
			return
		}
		if m.owner != cur {
			k.halt("mutex", "Mutex.Unlock by non-owner %q", cur.name)
			return
		}
	}
	m.recursion--
	if m.recursion > 0 {
		return
	}
	ilist.Unlink(&m.node)
	m.owner = nil

	if k.opts.prioInherit {
		newPrio := cur.prioBase
		if !(k.opts.revUnlockOrder && cur.mutexes.IsEmpty()) {
			// Supremum over remaining owned mutexes' highest waiters: simply
			// resetting to base here would let a medium-priority task slip
			// in between releases when the caller still owns a contended
			// mutex.
			for n := cur.mutexes.ItrBegin(); !cur.mutexes.ItrEnd(n); n = n.Next() {
				if w, ok := n.Item.q.Peek(); ok && w.prioCurrent > newPrio {
					newPrio = w.prioCurrent
				}
			}
		}
		if newPrio != cur.prioCurrent {
			klog.Debugf(k.log, "mutex", "task %q priority %d -> %d on unlock",
				cur.name, cur.prioCurrent, newPrio)
			k.reprioLocked(cur, newPrio)
		}
	}

	if w, ok := m.q.Dequeue(); ok {
		w.queue = nil
		m.owner = w
		m.recursion = 1
		w.mutexes.Append(&m.node)
		w.blockCode = ResultOK
		k.makeReadyLocked(w)
		k.scheduleLocked(true)
	}
}

// Destroy wakes every waiter with ResultDestroyed and scrubs m. The caller
// must hold m (or m must be unlocked); destroying a mutex held by another
// task is API misuse.
func (m *Mutex) Destroy() {
	k := m.k
	st := k.crit()
	defer k.exit(st)
	if m.q == nil {
		return
	}
	cur := k.current
	if k.opts.apiCheck && m.owner != nil && m.owner != cur {
		k.halt("mutex", "Mutex.Destroy while owned by %q", m.owner.name)
		return
	}
	if m.owner != nil {
		ilist.Unlink(&m.node)
		m.owner = nil
		m.recursion = 0
		if k.opts.prioInherit {
			// The caller may have been boosted by this mutex's waiters;
			// recompute against the obligations that remain.
			newPrio := cur.prioBase
			for n := cur.mutexes.ItrBegin(); !cur.mutexes.ItrEnd(n); n = n.Next() {
				if w, ok := n.Item.q.Peek(); ok && w.prioCurrent > newPrio {
					newPrio = w.prioCurrent
				}
			}
			if newPrio != cur.prioCurrent {
				k.reprioLocked(cur, newPrio)
			}
		}
	}
	woke := false
	for {
		t, ok := m.q.Dequeue()
		if !ok {
			break
		}
		t.queue = nil
		t.blockCode = ResultDestroyed
		k.makeReadyLocked(t)
		woke = true
	}
	m.q = nil
	if woke {
		klog.Debugf(k.log, "mutex", "mutex destroyed with waiters")
		k.scheduleLocked(true)
	}
}
