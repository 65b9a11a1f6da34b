// Copyright 2026 Joseph Cumines
//
// Permission to use, copy, modify, and distribute this software for any
// purpose with or without fee is hereby granted, provided that this copyright
// notice appears in all copies.

// Package kmetrics tracks runtime statistics for a Kernel: counters for
// context switches, preemptions, timer fires, ring overflows, and priority
// inheritance boosts. All methods are thread-safe and low-overhead, so a
// Kernel can update them from inside its critical section without adding
// contention of its own.
//
// Counts, not distributions: a fixed-priority real-time kernel has no
// request/response latency to sample, and the counters below are exhaustive
// for what the scheduler and synchronization primitives can cheaply observe
// about themselves.
package kmetrics

import "sync/atomic"

// Metrics holds atomic runtime counters. The zero value is usable, and a
// nil *Metrics is accepted everywhere a Kernel conditionally reports to one
// (see WithMetrics), so instrumentation stays opt-in and allocation-free
// when unused.
type Metrics struct {
	ContextSwitches atomic.Uint64
	Preemptions     atomic.Uint64
	TimerFires      atomic.Uint64
	RingOverflows   atomic.Uint64
	MutexBoosts     atomic.Uint64
}

// Snapshot is a point-in-time copy of Metrics, safe to log, diff, or assert
// against in a test.
type Snapshot struct {
	ContextSwitches uint64
	Preemptions     uint64
	TimerFires      uint64
	RingOverflows   uint64
	MutexBoosts     uint64
}

// New creates an empty Metrics.
func New() *Metrics {
	return &Metrics{}
}

// Snapshot copies the current counter values. Safe to call on a nil
// receiver (returns the zero Snapshot), so callers need not guard every
// reporting site on whether metrics were configured.
func (m *Metrics) Snapshot() Snapshot {
	if m == nil {
		return Snapshot{}
	}
	return Snapshot{
		ContextSwitches: m.ContextSwitches.Load(),
		Preemptions:     m.Preemptions.Load(),
		TimerFires:      m.TimerFires.Load(),
		RingOverflows:   m.RingOverflows.Load(),
		MutexBoosts:     m.MutexBoosts.Load(),
	}
}
