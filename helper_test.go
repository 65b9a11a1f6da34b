// Copyright 2026 Joseph Cumines
//
// Permission to use, copy, modify, and distribute this software for any
// purpose with or without fee is hereby granted, provided that this copyright
// notice appears in all copies.

package rtkernel

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

const testWait = 30 * time.Second

// startKernel boots a hosted kernel in a dedicated bootstrap goroutine,
// running appInit as the app-init callback (scheduler locked, tasks start
// only once it returns). The kernel, its idle loop, and any tasks still
// parked when the test ends simply leak their goroutines; a kernel has no
// shutdown, by design.
func startKernel(t *testing.T, appInit func(k *Kernel), opts ...Option) *Kernel {
	t.Helper()
	k, err := NewHosted(opts...)
	require.NoError(t, err)
	go k.OSStart(func() {
		if appInit != nil {
			appInit(k)
		}
	}, nil)
	return k
}

// waitDone fails the test if ch does not close within the shared deadline.
func waitDone(t *testing.T, ch <-chan struct{}, what string) {
	t.Helper()
	select {
	case <-ch:
	case <-time.After(testWait):
		t.Fatalf("timed out waiting for %s", what)
	}
}

// tickUntil drives k.Tick from the calling (test) goroutine — the stand-in
// for the hardware tick source — until ch closes.
func tickUntil(t *testing.T, k *Kernel, ch <-chan struct{}, pause time.Duration) {
	t.Helper()
	deadline := time.After(testWait)
	for {
		select {
		case <-ch:
			return
		case <-deadline:
			t.Fatal("timed out driving ticks")
		default:
		}
		k.Tick()
		if pause > 0 {
			time.Sleep(pause)
		}
	}
}
