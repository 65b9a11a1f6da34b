// Copyright 2026 Joseph Cumines
//
// Permission to use, copy, modify, and distribute this software for any
// purpose with or without fee is hereby granted, provided that this copyright
// notice appears in all copies.

//go:build linux || darwin

package hostarch

import (
	"sync"
	"time"

	"golang.org/x/sys/unix"
)

// pipeTicker is an alternate TickSource that wakes through a pipe file
// descriptor rather than a Go channel: a time.Ticker goroutine writes one
// byte per tick, a reader goroutine drains the pipe and forwards a
// coalesced signal on C. Exists to give an arch port an fd-backed tick
// source on platforms where a caller might eventually poll the same fd
// alongside I/O readiness on a single poller.
type pipeTicker struct {
	readFD, writeFD int
	t               *time.Ticker
	c               chan struct{}

	closeOnce sync.Once
	done      chan struct{}
}

// NewPipeTicker creates a unix-pipe-backed TickSource firing every period.
func NewPipeTicker(period time.Duration) (TickSource, error) {
	var fds [2]int
	if err := unix.Pipe2(fds[:], unix.O_NONBLOCK); err != nil {
		return nil, err
	}
	pt := &pipeTicker{
		readFD:  fds[0],
		writeFD: fds[1],
		t:       time.NewTicker(period),
		c:       make(chan struct{}, 1),
		done:    make(chan struct{}),
	}
	go pt.writeLoop()
	go pt.readLoop()
	return pt, nil
}

func (pt *pipeTicker) writeLoop() {
	buf := [1]byte{1}
	for {
		select {
		case <-pt.t.C:
			_, _ = unix.Write(pt.writeFD, buf[:])
		case <-pt.done:
			return
		}
	}
}

func (pt *pipeTicker) readLoop() {
	defer close(pt.c)
	var buf [64]byte
	for {
		n, err := unix.Read(pt.readFD, buf[:])
		if n > 0 {
			select {
			case pt.c <- struct{}{}:
			default:
			}
			continue
		}
		if err == unix.EAGAIN || err == unix.EINTR {
			select {
			case <-pt.done:
				return
			case <-time.After(time.Millisecond):
			}
			continue
		}
		return
	}
}

func (pt *pipeTicker) C() <-chan struct{} { return pt.c }

func (pt *pipeTicker) Close() error {
	pt.closeOnce.Do(func() {
		pt.t.Stop()
		close(pt.done)
		_ = unix.Close(pt.writeFD)
		_ = unix.Close(pt.readFD)
	})
	return nil
}
