// Copyright 2026 Joseph Cumines
//
// Permission to use, copy, modify, and distribute this software for any
// purpose with or without fee is hereby granted, provided that this copyright
// notice appears in all copies.

package hostarch

import (
	"sync"
	"time"
)

// TickSource produces a tick signal on C until Close is called.
type TickSource interface {
	C() <-chan struct{}
	Close() error
}

// chanTicker is the default TickSource, backed by time.Ticker. It is the
// right choice whenever the tick source only needs to live inside the
// current process.
type chanTicker struct {
	t *time.Ticker
	c chan struct{}

	closeOnce sync.Once
	done      chan struct{}
}

// NewChanTicker creates a TickSource that fires every period using a
// time.Ticker, forwarding onto a channel sized so a slow consumer coalesces
// bursts instead of blocking the ticker goroutine.
func NewChanTicker(period time.Duration) TickSource {
	ct := &chanTicker{
		t:    time.NewTicker(period),
		c:    make(chan struct{}, 1),
		done: make(chan struct{}),
	}
	go ct.run()
	return ct
}

func (ct *chanTicker) run() {
	defer close(ct.c)
	for {
		select {
		case <-ct.t.C:
			select {
			case ct.c <- struct{}{}:
			default:
				// A tick already pending: this one is dropped rather than
				// blocking the ticker goroutine, so a consumer that falls
				// behind sees fewer ticks than periods elapsed.
			}
		case <-ct.done:
			return
		}
	}
}

func (ct *chanTicker) C() <-chan struct{} { return ct.c }

func (ct *chanTicker) Close() error {
	ct.closeOnce.Do(func() {
		ct.t.Stop()
		close(ct.done)
	})
	return nil
}

// Run invokes tick once per signal read from src, until stop fires or src
// is closed. Typically run in its own goroutine alongside the kernel's
// bootstrap, with the kernel's Tick method as the callback.
func Run(src TickSource, tick func(), stop <-chan struct{}) {
	for {
		select {
		case _, ok := <-src.C():
			if !ok {
				return
			}
			tick()
		case <-stop:
			return
		}
	}
}
