// Copyright 2026 Joseph Cumines
//
// Permission to use, copy, modify, and distribute this software for any
// purpose with or without fee is hereby granted, provided that this copyright
// notice appears in all copies.

package hostarch

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type tcb struct {
	ctx any
}

func newPort() *Port[tcb] {
	return New(Accessors[tcb]{
		Get: func(t *tcb) any { return t.ctx },
		Set: func(t *tcb, v any) { t.ctx = v },
	})
}

func TestCriticalSectionIsReentrant(t *testing.T) {
	p := newPort()
	outer := p.CriticalEnter()
	inner := p.CriticalEnter() // same goroutine: must not deadlock
	p.CriticalExit(inner)

	// The section is still held after the nested exit: another goroutine
	// must block until the outermost exit.
	entered := make(chan struct{})
	go func() {
		st := p.CriticalEnter()
		close(entered)
		p.CriticalExit(st)
	}()
	select {
	case <-entered:
		t.Fatal("nested exit must not release the critical section")
	case <-time.After(20 * time.Millisecond):
	}

	p.CriticalExit(outer)
	select {
	case <-entered:
	case <-time.After(5 * time.Second):
		t.Fatal("outermost exit must release the critical section")
	}
}

func TestContextSwitchHandsOffAndResumes(t *testing.T) {
	p := newPort()
	var a, b tcb
	var order []string
	done := make(chan struct{})

	require.NoError(t, p.TaskInit(&a, func() {
		order = append(order, "a1")
		st := p.CriticalEnter()
		p.ContextSwitch(&b)
		p.CriticalExit(st)
		order = append(order, "a2")
		close(done)
	}, 0))
	require.NoError(t, p.TaskInit(&b, func() {
		order = append(order, "b1")
		st := p.CriticalEnter()
		p.ContextSwitch(&a)
		p.CriticalExit(st)
		order = append(order, "b2")
		select {} // parked; a finishes the test
	}, 0))

	// Bootstrap: hand the CPU to a from a goroutine that never returns.
	go func() {
		st := p.CriticalEnter()
		_ = st
		p.ContextSwitch(&a)
	}()

	select {
	case <-done:
	case <-time.After(10 * time.Second):
		t.Fatal("handoff did not complete")
	}
	assert.Equal(t, []string{"a1", "b1", "a2"}, order)
}

func TestTaskInitRejectsNegativeStack(t *testing.T) {
	p := newPort()
	var a tcb
	assert.Error(t, p.TaskInit(&a, func() {}, -1))
}

func TestChanTickerDeliversAndCloses(t *testing.T) {
	ts := NewChanTicker(time.Millisecond)
	var n int
	deadline := time.After(5 * time.Second)
	for n < 3 {
		select {
		case <-ts.C():
			n++
		case <-deadline:
			t.Fatal("ticker did not tick")
		}
	}
	require.NoError(t, ts.Close())
	require.NoError(t, ts.Close()) // idempotent

	// The channel closes once the forwarding goroutine drains out.
	deadline = time.After(5 * time.Second)
	for {
		select {
		case _, ok := <-ts.C():
			if !ok {
				return
			}
		case <-deadline:
			t.Fatal("ticker channel did not close")
		}
	}
}

func TestRunForwardsTicks(t *testing.T) {
	ts := NewChanTicker(time.Millisecond)
	defer ts.Close()
	ticks := make(chan struct{}, 16)
	stop := make(chan struct{})
	go Run(ts, func() {
		select {
		case ticks <- struct{}{}:
		default:
		}
	}, stop)

	select {
	case <-ticks:
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not invoke the tick callback")
	}
	close(stop)
}
