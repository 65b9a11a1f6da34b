// Copyright 2026 Joseph Cumines
//
// Permission to use, copy, modify, and distribute this software for any
// purpose with or without fee is hereby granted, provided that this copyright
// notice appears in all copies.

package rtkernel

import (
	"math"

	"github.com/joeycumines/go-rtkernel/klog"
	"github.com/joeycumines/go-rtkernel/taskqueue"
)

// semValueMax bounds the counter; one below the type maximum so an overflow
// assertion can distinguish "at max" from a wrapped increment.
const semValueMax = math.MaxUint32 - 1

// Sem is a counting semaphore. Up is ISR-safe; Down may block with an
// optional timeout. Applications allocate the Sem and initialize it with
// Kernel.SemInit.
type Sem struct {
	k     *Kernel
	q     *taskqueue.Queue[Task]
	value uint32
}

// SemInit prepares s with the given initial count.
func (k *Kernel) SemInit(s *Sem, initial uint32) {
	st := k.crit()
	k.semInitLocked(s, initial)
	k.exit(st)
}

func (k *Kernel) semInitLocked(s *Sem, initial uint32) {
	s.k = k
	s.q = taskqueue.New[Task](k.opts.prioCount)
	s.value = initial
}

// Value returns the current count. Diagnostic; unsynchronized with respect
// to concurrent Up/Down.
func (s *Sem) Value() uint32 { return s.value }

// Down decrements the semaphore, blocking up to timeout ticks while the
// count is zero. DontWait returns ResultWouldBlock instead of blocking;
// Forever waits indefinitely. Not callable from ISR context.
func (s *Sem) Down(timeout Timeout) Result {
	k := s.k
	st := k.crit()
	defer k.exit(st)
	return s.downLocked(timeout)
}

func (s *Sem) downLocked(timeout Timeout) Result {
	k := s.k
	if k.opts.apiCheck && k.isrNesting > 0 {
		k.halt("sem", "Sem.Down called from ISR context")
		return ResultInvalid
	}
	if s.q == nil {
		return ResultDestroyed
	}
	if s.value > 0 {
		s.value--
		return ResultOK
	}
	if timeout == DontWait {
		return ResultWouldBlock
	}
	cur := k.current
	cur.blockCode = ResultOK
	if timeout > 0 {
		k.armTimerLocked(&cur.semTimer, int64(timeout), 0, k.blockTimeout, cur)
		cur.blockTimer = &cur.semTimer
	}
	k.blockAndSwitchLocked(s.q, blockSem)
	k.destroyBlockTimerLocked(cur)
	return cur.blockCode
}

// blockTimeout is the timer callback ending a timed sem wait: unlink the
// task from the wait-list, deliver ResultTimeout, make it ready. The context
// switch itself waits for tick exit.
func (k *Kernel) blockTimeout(p any) {
	t := p.(*Task)
	if t.state != StateWait {
		return
	}
	k.unlinkWaiterLocked(t)
	t.blockTimer = nil
	t.blockCode = ResultTimeout
	k.makeReadyLocked(t)
	k.scheduleLocked(true)
}

// Up increments the semaphore or, if tasks are waiting, transfers the signal
// directly to the highest-priority waiter and reschedules if that waiter
// outranks the caller. ISR-safe.
func (s *Sem) Up() {
	k := s.k
	st := k.crit()
	s.upLocked(false)
	k.exit(st)
}

// upLocked performs Up inside an already-held critical section. sync
// promises a subsequent scheduling point, suppressing the reschedule.
func (s *Sem) upLocked(sync bool) {
	k := s.k
	if s.q == nil {
		if k.opts.apiCheck {
			k.halt("sem", "Sem.Up on destroyed semaphore")
		}
		return
	}
	if t, ok := s.q.Dequeue(); ok {
		t.queue = nil
		k.destroyBlockTimerLocked(t)
		t.blockCode = ResultOK
		k.makeReadyLocked(t)
		if !sync {
			k.scheduleLocked(true)
		}
		return
	}
	if s.value >= semValueMax {
		k.halt("sem", "semaphore counter overflow")
		return
	}
	s.value++
}

// Destroy wakes every waiter with ResultDestroyed and scrubs s; it must not
// be reused without SemInit.
func (s *Sem) Destroy() {
	k := s.k
	st := k.crit()
	defer k.exit(st)
	if s.q == nil {
		return
	}
	woke := false
	for {
		t, ok := s.q.Dequeue()
		if !ok {
			break
		}
		t.queue = nil
		k.destroyBlockTimerLocked(t)
		t.blockCode = ResultDestroyed
		k.makeReadyLocked(t)
		woke = true
	}
	s.q = nil
	s.value = 0
	if woke {
		klog.Debugf(k.log, "sem", "semaphore destroyed with waiters")
		k.scheduleLocked(true)
	}
}
