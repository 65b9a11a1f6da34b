// Copyright 2026 Joseph Cumines
//
// Permission to use, copy, modify, and distribute this software for any
// purpose with or without fee is hereby granted, provided that this copyright
// notice appears in all copies.

package rtkernel

import (
	"sync/atomic"
	"unsafe"
)

// Mbox is a single-slot message box of one opaque, non-nil pointer (nil
// means empty). The slot itself is a plain atomic, so Push and Post are
// ISR-safe; Pop is the prepare/check/wait protocol with an atomic
// exchange-to-nil as the check.
type Mbox struct {
	k   *Kernel
	wq  WaitQueue
	msg atomic.Pointer[byte]
}

// MboxInit prepares m empty.
func (k *Kernel) MboxInit(m *Mbox) {
	m.k = k
	k.WaitQueueInit(&m.wq)
	m.msg.Store(nil)
}

// Push stores msg unconditionally, returning the displaced message (nil if
// the slot was empty), and wakes one waiter. ISR-safe.
func (m *Mbox) Push(msg unsafe.Pointer) unsafe.Pointer {
	old := m.msg.Swap((*byte)(msg))
	m.wq.Wakeup(1)
	return unsafe.Pointer(old)
}

// Post stores msg only if the slot is empty, returning ResultBusy otherwise,
// and wakes all waiters on success. ISR-safe.
func (m *Mbox) Post(msg unsafe.Pointer) Result {
	if !m.msg.CompareAndSwap(nil, (*byte)(msg)) {
		return ResultBusy
	}
	m.wq.Wakeup(WakeAll)
	return ResultOK
}

// Pop retrieves the message, blocking up to timeout ticks while the slot is
// empty. Not callable from ISR context.
func (m *Mbox) Pop(timeout Timeout) (unsafe.Pointer, Result) {
	var wo WaitObj
	for {
		m.wq.Prepare(&wo, timeout)
		if p := m.msg.Swap(nil); p != nil {
			m.wq.Finish(&wo)
			return unsafe.Pointer(p), ResultOK
		}
		if timeout == DontWait {
			m.wq.Finish(&wo)
			return nil, ResultWouldBlock
		}
		rc := m.wq.Wait(&wo)
		if rc != ResultOK {
			return nil, rc
		}
	}
}
