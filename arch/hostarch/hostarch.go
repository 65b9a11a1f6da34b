// Copyright 2026 Joseph Cumines
//
// Permission to use, copy, modify, and distribute this software for any
// purpose with or without fee is hereby granted, provided that this copyright
// notice appears in all copies.

// Package hostarch is a hosted, goroutine-backed implementation of
// arch.Port, letting the kernel run (and be tested) on any platform the Go
// toolchain targets instead of bare metal.
//
// The shape is one goroutine per task of control, coordinated by a
// capacity-1 "baton" channel per task, so that exactly one goroutine is
// ever making progress at a time — the hosted stand-in for "exactly one
// task has the CPU."
//
// True asynchronous preemption (a hardware ISR interrupting arbitrary
// running code at an arbitrary instruction) has no safe, portable
// equivalent in pure Go: a goroutine cannot be suspended from the outside
// except at a point where it participates (a channel operation). A tick
// that elects a new task to run therefore cannot force the previously
// running task's goroutine off the CPU immediately; it can only record the
// decision (see Kernel.Tick and the isrNesting > 0 branch of
// Kernel.scheduleLocked) for the
// interrupted task to notice and act on itself. The interrupted task
// notices at its very next kernel entry point — any blocking call, Yield,
// or an explicit Kernel.Checkpoint call a tight loop can sprinkle in to
// stand in for a hardware tick-exit check. This is the same "loop
// back-edge" preemption-check technique Go's own runtime used before
// signal-based asynchronous preemption existed, applied here one level up.
package hostarch

import (
	"fmt"
	"runtime"
	"sync"
	"sync/atomic"

	"github.com/joeycumines/go-rtkernel/arch"
)

// Stack-layout conventions this port publishes, as any port must.
const (
	// StackGrowsDown reports the direction task stacks grow.
	StackGrowsDown = true
	// MinStackSize is the smallest stack TaskInit accepts. Goroutine stacks
	// grow on demand, so there is nothing to reserve here.
	MinStackSize = 0
)

// TaskContext is the opaque per-task state this port attaches via
// Accessors.Set. It carries only the baton channel and the identity of the
// task's goroutine: the rest of a parked task's state is simply wherever its goroutine's program counter
// and stack left it, exactly as a real suspended task's state is wherever
// its hardware stack left it.
type TaskContext struct {
	resume chan struct{}
	gid    atomic.Uint64 // goroutine identity, for the ContextSwitch misuse guard
}

// Accessors lets Port[T] read and write the opaque architecture-context
// field of the caller's task-control-block type without hostarch importing
// that type (which would reintroduce the import cycle arch.Port[T] is
// generic specifically to avoid).
type Accessors[T any] struct {
	Get func(*T) any
	Set func(*T, any)
}

// Port is a hosted arch.Port[T] backed by goroutines and channels.
type Port[T any] struct {
	acc Accessors[T]

	mu      sync.Mutex
	owner   atomic.Uint64 // goroutine holding the critical section, 0 if none
	current *TaskContext  // whichever task's goroutine is not currently parked
}

// New creates a Port using acc to read/write each task's opaque context
// field.
func New[T any](acc Accessors[T]) *Port[T] {
	return &Port[T]{acc: acc}
}

var _ arch.Port[struct{}] = (*Port[struct{}])(nil)

// critToken records whether a CriticalEnter actually changed state — the
// hosted equivalent of the saved interrupt-enable flag, so enter/exit pairs
// nest correctly (a timer callback calling an ISR-safe API re-enters the
// section the tick handler already holds; only the outermost exit releases).
type critToken bool

// CriticalEnter acquires the port's mutual-exclusion lock, standing in for
// disabling interrupts: while held, at most one goroutine is ever running
// kernel-owned logic. Reentrant from the holding goroutine.
func (p *Port[T]) CriticalEnter() arch.CriticalState {
	g := getGoroutineID()
	if p.owner.Load() == g {
		return critToken(false)
	}
	p.mu.Lock()
	p.owner.Store(g)
	return critToken(true)
}

// CriticalExit restores the state CriticalEnter saved: only the enter that
// actually took the lock releases it.
func (p *Port[T]) CriticalExit(st arch.CriticalState) {
	if t, ok := st.(critToken); ok && bool(t) {
		p.owner.Store(0)
		p.mu.Unlock()
	}
}

// ContextSwitch hands the CPU to next's goroutine and parks the caller's
// own goroutine until something later switches back to it. The lock is
// released for the duration of the park (mirroring how a saved
// interrupt-enable flag re-disables interrupts only once a task resumes,
// not while it sits blocked) so that other goroutines — next's, or the
// independent tick source — can make progress while the caller waits.
func (p *Port[T]) ContextSwitch(next *T) {
	nextCtx := p.ctxOf(next)
	prevCtx := p.current
	if prevCtx != nil && prevCtx.gid.Load() != getGoroutineID() {
		panic("hostarch: ContextSwitch called from a goroutine that does not hold the CPU")
	}
	p.current = nextCtx

	// Fully release the section across the park, regardless of how deeply
	// the caller's kernel code logically nested its enter/exit pairs: the
	// resume below restores it symmetrically, the way a context restore
	// re-enables interrupts as part of the return.
	p.owner.Store(0)
	p.mu.Unlock()
	nextCtx.resume <- struct{}{}

	if prevCtx == nil {
		// Bootstrap handoff (Kernel.OSStart's first and only switch): the
		// calling goroutine never runs kernel code again, by construction.
		select {}
	}

	<-prevCtx.resume
	p.mu.Lock()
	p.owner.Store(prevCtx.gid.Load())
}

func (p *Port[T]) ctxOf(t *T) *TaskContext {
	v := p.acc.Get(t)
	if v == nil {
		panic("hostarch: task has no context; TaskInit was not called on it")
	}
	return v.(*TaskContext)
}

// TaskInit spawns t's goroutine, parked immediately until the kernel first
// schedules it. stackSize is sanity-checked only: goroutine stacks grow
// dynamically, so there is nothing to preallocate.
func (p *Port[T]) TaskInit(t *T, entry func(), stackSize int) error {
	if stackSize < 0 {
		return fmt.Errorf("hostarch: negative stack size %d", stackSize)
	}
	ctx := &TaskContext{resume: make(chan struct{}, 1)}
	p.acc.Set(t, ctx)
	go func() {
		ctx.gid.Store(getGoroutineID())
		<-ctx.resume
		entry()
		// entry is always the kernel's own wrapper ending in task_exit,
		// which switches away and never returns; reaching here would mean
		// a task body returned without going through task_exit, which is
		// a caller bug this port has no way to recover from gracefully.
		select {}
	}()
	return nil
}

// OSStart performs one-time bring-up. Nothing to do on a hosted port: the
// goroutine runtime is already live.
func (p *Port[T]) OSStart() {}

// Halt blocks the calling goroutine forever. The kernel logs reason through
// its own logger before calling Halt; every other task's goroutine is
// already parked on a resume channel nobody will ever signal again once
// the one goroutine still driving the kernel freezes here, so the whole
// kernel stops without any further coordination.
func (p *Port[T]) Halt(reason string) {
	_ = reason
	select {}
}

// Idle yields the host scheduler; called by the kernel's idle task body
// once per iteration before it rechecks for a pending deferred preemption.
func (p *Port[T]) Idle() {
	runtime.Gosched()
}

// getGoroutineID returns the current goroutine's ID by parsing the header of
// a single-goroutine stack dump. It prices every CriticalEnter at one small
// stack dump, which is what buys the reentrancy a real port gets for free
// from its saved interrupt-enable flag; acceptable for a hosted reference
// port whose job is correctness, not throughput.
func getGoroutineID() uint64 {
	var buf [64]byte
	n := runtime.Stack(buf[:], false)
	var id uint64
	for i := len("goroutine "); i < n; i++ {
		if buf[i] >= '0' && buf[i] <= '9' {
			id = id*10 + uint64(buf[i]-'0')
		} else {
			break
		}
	}
	return id
}
