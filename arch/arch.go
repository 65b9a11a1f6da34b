// Copyright 2026 Joseph Cumines
//
// Permission to use, copy, modify, and distribute this software for any
// purpose with or without fee is hereby granted, provided that this copyright
// notice appears in all copies.

// Package arch defines the architecture-port abstraction the kernel
// schedules through: the narrow set of operations a real port would supply
// in assembly (context switch, critical-section enter/exit, idle/halt) kept
// behind an interface so the scheduler itself stays architecture-neutral.
//
// Port is generic over the task-control-block type so this package never
// imports the kernel package — the kernel depends on arch, not the reverse.
package arch

// CriticalState is the token CriticalEnter returns and the matching
// CriticalExit consumes. On real hardware this is the saved
// interrupt-enable flag, letting nested enter/exit pairs nest correctly
// (only the outermost exit actually re-enables interrupts).
type CriticalState any

// Ticks counts OS ticks since boot.
type Ticks uint64

// Port is the architecture abstraction. T is the kernel's task-control-block
// type (instantiated as *Task in practice, passed here as a generic
// parameter to avoid a Port[*Task]-requires-importing-Task import cycle).
type Port[T any] interface {
	// CriticalEnter disables interrupts (or, on a hosted port, acquires the
	// kernel-wide mutual-exclusion lock) and returns a token describing
	// whether this call actually changed state.
	CriticalEnter() CriticalState
	// CriticalExit restores the state CriticalEnter preempted.
	CriticalExit(CriticalState)
	// ContextSwitch transfers the CPU to next. Does not return until next
	// (or some later task) switches back to the caller.
	ContextSwitch(next *T)
	// TaskInit prepares t to run entry on a stack of stackSize bytes (the
	// hosted port ignores stackSize beyond a sanity check, since goroutine
	// stacks grow dynamically).
	TaskInit(t *T, entry func(), stackSize int) error
	// OSStart performs one-time architecture bring-up; called once from the
	// kernel's bootstrap before the first ContextSwitch.
	OSStart()
	// Halt is called on an unrecoverable kernel panic. Does not return.
	Halt(reason string)
	// Idle relaxes the CPU (e.g. WFI) when the idle task runs.
	Idle()
}
