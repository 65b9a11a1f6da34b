// Copyright 2026 Joseph Cumines
//
// Permission to use, copy, modify, and distribute this software for any
// purpose with or without fee is hereby granted, provided that this copyright
// notice appears in all copies.

// Package timer implements the kernel's monotonic timer wheel: a single
// intrusive list sorted ascending by ticks-remaining, walked lazily via an
// unsynchronized-tick accumulator so that a burst of ticks with nothing due
// costs O(1) rather than a list scan per tick. A deadline heap cannot
// express that deferral (it pays O(log n) per operation and has no notion
// of "accumulate ticks, walk once"), which is why the sorted list wins here
// despite its linear insert.
//
// Callbacks run with the caller's critical section held, and Destroy is
// idempotent via a magic-word flip, so teardown paths are safe to run
// twice.
package timer

import "github.com/joeycumines/go-rtkernel/ilist"

const (
	magicLive      = 0x7a17a17a
	magicDestroyed = 0
)

// Timer is a single pending or fired timeout/periodic callback. Callers
// allocate the Timer (typically embedded in a larger structure, e.g. a
// task's block descriptor) and pass it to Wheel.Create.
type Timer struct {
	node          ilist.SNode[Timer]
	ticksRemain   int64
	ticksReload   int64
	callback      func(param any)
	param         any
	magic         uint32
	linked        bool
}

// Callback returns the function this timer invokes when it fires.
func (t *Timer) Callback() func(param any) { return t.callback }

// live reports whether Destroy has not yet been called on this timer.
func (t *Timer) live() bool { return t.magic == magicLive }

// Wheel is the pending-timer list plus its tick accumulator. Zero value is
// not ready to use; call New.
//
// All methods assume the caller already holds whatever critical section the
// kernel uses to serialize scheduler-data mutation; the wheel itself does
// no locking.
type Wheel struct {
	pending     ilist.SList[Timer]
	tickUnsynch int64
	maxUnsynch  int64
}

// New creates an empty timer wheel. maxUnsynch bounds how many ticks may
// accumulate before a forced walk, preventing overflow of ticksRemain
// arithmetic on narrow tick-counter types; pass 0 for no bound (appropriate
// on a 64-bit host).
func New(maxUnsynch int64) *Wheel {
	return &Wheel{maxUnsynch: maxUnsynch}
}

// Create arms a new timer for `ticks` ticks from now (relative to the last
// synchronization point, i.e. offset by the currently-accumulated
// tick_unsynch so it fires at the correct absolute tick), invoking callback
// with param when it fires. If reload > 0, the timer is automatically
// re-armed for another `reload` ticks after firing. ticks <= 0 leaves the
// timer unlinked (never fires) until explicitly re-armed.
func (w *Wheel) Create(t *Timer, ticks, reload int64, callback func(param any)) {
	t.callback = callback
	t.param = nil
	t.ticksReload = reload
	t.magic = magicLive
	t.node.Item = t
	if ticks <= 0 {
		t.linked = false
		return
	}
	t.ticksRemain = ticks + w.tickUnsynch
	w.insertSorted(t)
}

// SetParam attaches the opaque parameter passed to the callback on fire.
func (t *Timer) SetParam(p any) { t.param = p }

func (w *Wheel) insertSorted(t *Timer) {
	var prev *ilist.SNode[Timer]
	for n := w.pending.Front(); n != nil; n = n.Next() {
		if n.Item.ticksRemain > t.ticksRemain {
			break
		}
		prev = n
	}
	w.pending.InsertAfter(prev, &t.node)
	t.linked = true
}

// Destroy unlinks t if linked and marks it destroyed. Idempotent: safe to
// call more than once on the same (still-valid) memory, and safe to call on
// a timer that already fired and was not reloaded.
func (t *Timer) Destroy(w *Wheel) {
	if !t.live() {
		return
	}
	t.magic = magicDestroyed
	if t.linked {
		w.pending.Remove(&t.node)
		t.linked = false
	}
}

// Active reports whether t is currently linked into some wheel (i.e. its
// countdown is running).
func (t *Timer) Active() bool { return t.linked && t.live() }

// Tick advances the wheel by one tick. If the list head's ticks_remaining
// still exceeds the accumulator (and the accumulator has not hit its
// configured bound), it returns immediately having only bumped the
// accumulator — O(1). Otherwise it walks the list, firing every timer whose
// remaining countdown has reached zero, and re-synchronizes the remaining
// timers' countdowns against the accumulator before resetting it.
func (w *Wheel) Tick() {
	w.tickUnsynch++

	head := w.pending.Front()
	if head == nil {
		if w.maxUnsynch > 0 && w.tickUnsynch > w.maxUnsynch {
			w.tickUnsynch = 0
		}
		return
	}
	if head.Item.ticksRemain > w.tickUnsynch && (w.maxUnsynch <= 0 || w.tickUnsynch <= w.maxUnsynch) {
		return
	}

	unsynch := w.tickUnsynch
	w.tickUnsynch = 0

	// Resynchronize the whole list first: every pending timer owes `unsynch`
	// ticks, not just the expired prefix. Leaving the tail un-decremented
	// against a reset accumulator would make every surviving timer fire
	// `unsynch` ticks late.
	for n := w.pending.Front(); n != nil; n = n.Next() {
		n.Item.ticksRemain -= unsynch
	}

	var reload ilist.SList[Timer]
	for {
		n := w.pending.Front()
		if n == nil {
			break
		}
		t := n.Item
		if t.ticksRemain > 0 {
			break
		}
		w.pending.PopFront()
		t.linked = false

		cb, param := t.callback, t.param
		if t.ticksReload > 0 {
			t.ticksRemain = t.ticksReload
			reload.PushBack(&t.node)
			t.linked = true
		}
		if cb != nil {
			cb(param)
		}
	}

	for n := reload.PopFront(); n != nil; n = reload.PopFront() {
		t := n.Item
		t.linked = false
		if !t.live() {
			// The callback destroyed its own auto-reload timer.
			continue
		}
		w.insertSorted(t)
	}
}

// Len returns the number of currently-pending (linked) timers.
func (w *Wheel) Len() int { return w.pending.Len() }
