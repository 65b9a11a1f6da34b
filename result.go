// Copyright 2026 Joseph Cumines
//
// Permission to use, copy, modify, and distribute this software for any
// purpose with or without fee is hereby granted, provided that this copyright
// notice appears in all copies.

package rtkernel

import "errors"

// Result is the closed set of outcomes a blocking kernel operation can
// deliver. Every error is a return value; the kernel has no exception-like
// unwinding, and API misuse is fatal (see Kernel.halt) rather than reported.
type Result int8

const (
	// ResultOK means the operation completed normally.
	ResultOK Result = iota
	// ResultWouldBlock is delivered only for explicit non-blocking requests
	// (timeout == DontWait) that found the resource unavailable.
	ResultWouldBlock
	// ResultTimeout means the caller's timeout expired while waiting.
	ResultTimeout
	// ResultDestroyed means the primitive was destroyed while the caller
	// waited on it; the primitive's memory must not be reused without
	// re-initialization.
	ResultDestroyed
	// ResultInvalid means the target object is in a state the operation
	// cannot act on (e.g. joining an already-reaped task).
	ResultInvalid
	// ResultBusy is returned by Mbox.Post when the slot is occupied.
	ResultBusy
)

// String returns the result's name.
func (r Result) String() string {
	switch r {
	case ResultOK:
		return "OK"
	case ResultWouldBlock:
		return "WOULDBLOCK"
	case ResultTimeout:
		return "TIMEOUT"
	case ResultDestroyed:
		return "DESTROYED"
	case ResultInvalid:
		return "INVALID"
	case ResultBusy:
		return "BUSY"
	default:
		return "RESULT(?)"
	}
}

var (
	// ErrWouldBlock corresponds to ResultWouldBlock.
	ErrWouldBlock = errors.New("rtkernel: operation would block")
	// ErrTimeout corresponds to ResultTimeout.
	ErrTimeout = errors.New("rtkernel: wait timed out")
	// ErrDestroyed corresponds to ResultDestroyed.
	ErrDestroyed = errors.New("rtkernel: object destroyed while waiting")
	// ErrInvalidState corresponds to ResultInvalid.
	ErrInvalidState = errors.New("rtkernel: object in invalid state")
	// ErrBusy corresponds to ResultBusy.
	ErrBusy = errors.New("rtkernel: message slot already occupied")

	// ErrKernelStarted describes a second OSStart. OSStart does not return
	// it: a second call halts the kernel.
	ErrKernelStarted = errors.New("rtkernel: kernel already started")
	// ErrPriorityRange is returned for a task priority outside [1, PrioCount-1]
	// (priority 0 belongs to the idle task) or a priority-level count outside
	// [2, 64].
	ErrPriorityRange = errors.New("rtkernel: priority out of range")
	// ErrNilEntry is returned by TaskCreate for a nil entry function.
	ErrNilEntry = errors.New("rtkernel: task entry function is nil")
	// ErrCapacityNotPow2 is returned by MQueueInit for a capacity that is not
	// a power of two greater than one.
	ErrCapacityNotPow2 = errors.New("rtkernel: capacity must be a power of two greater than 1")
)

// Err maps r onto the package's sentinel errors, or nil for ResultOK, so
// callers integrating with error-shaped plumbing can use errors.Is.
func (r Result) Err() error {
	switch r {
	case ResultOK:
		return nil
	case ResultWouldBlock:
		return ErrWouldBlock
	case ResultTimeout:
		return ErrTimeout
	case ResultDestroyed:
		return ErrDestroyed
	case ResultInvalid:
		return ErrInvalidState
	case ResultBusy:
		return ErrBusy
	default:
		return ErrInvalidState
	}
}

// Timeout expresses how long a blocking operation may wait, in OS ticks.
type Timeout int64

const (
	// Forever blocks with no timeout.
	Forever Timeout = -1
	// DontWait makes the operation non-blocking: if the resource is
	// unavailable, ResultWouldBlock is returned without entering WAIT.
	DontWait Timeout = 0
)
