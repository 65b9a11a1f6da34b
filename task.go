// Copyright 2026 Joseph Cumines
//
// Permission to use, copy, modify, and distribute this software for any
// purpose with or without fee is hereby granted, provided that this copyright
// notice appears in all copies.

package rtkernel

import (
	"github.com/joeycumines/go-rtkernel/ilist"
	"github.com/joeycumines/go-rtkernel/klog"
	"github.com/joeycumines/go-rtkernel/taskqueue"
	"github.com/joeycumines/go-rtkernel/timer"
)

// State is a task's scheduling state. Exactly one task is StateRunning at
// any time.
type State int8

const (
	// StateRunning marks the task currently holding the CPU. A running task
	// is never linked into any task-queue.
	StateRunning State = iota
	// StateReady marks a runnable task linked into the ready-queue (the idle
	// task, which is never queued, also reports StateReady when displaced).
	StateReady
	// StateWait marks a task blocked on some primitive's wait-list.
	StateWait
	// StateDestroyed marks a task that has exited and awaits reaping.
	StateDestroyed
	// StateInvalid marks a task reaped by TaskJoin; its control block must
	// not be used again.
	StateInvalid
)

// String returns the state's name.
func (s State) String() string {
	switch s {
	case StateRunning:
		return "RUNNING"
	case StateReady:
		return "READY"
	case StateWait:
		return "WAIT"
	case StateDestroyed:
		return "DESTROYED"
	case StateInvalid:
		return "INVALID"
	default:
		return "STATE(?)"
	}
}

// blockReason tags which primitive suspended a waiting task; the mutex
// priority-inheritance chain walk dispatches on it.
type blockReason int8

const (
	blockNone blockReason = iota
	blockSem
	blockMutex
	blockWaitQueue
)

const (
	// stackPattern fills tripwire-checked stacks.
	stackPattern = 0xAB
	// DefaultStackSize is used when TaskCreate is given a non-positive stack
	// size. Nominal on the hosted build, where goroutine stacks grow on
	// demand.
	DefaultStackSize = 4096
)

// Task is a task control block. Tasks are statically allocated by the
// application (here: by TaskCreate, whose result the application keeps for
// the task's lifetime) and borrowed by the kernel until reaped by TaskJoin.
//
// The architecture context is the first field so a port can address it
// without an offset computation; the hosted port stores its baton-channel
// context here.
type Task struct {
	archCtx any

	node ilist.Node[Task]
	k    *Kernel

	id   uint64
	name string

	prioBase    int
	prioCurrent int
	state       State

	// Block descriptor: meaningful only while state == StateWait, except
	// waitQueue, which the prepare/check/wait protocol also uses while the
	// task is still running.
	queue       *taskqueue.Queue[Task]
	queuePrio   int
	blockReason blockReason
	blockCode   Result
	blockTimer  *timer.Timer
	waitQueue   *WaitQueue
	waitMutex   *Mutex

	// semTimer is inline storage for semaphore-down timeouts, so arming one
	// never allocates.
	semTimer timer.Timer

	// mutexes heads the list of all mutexes this task currently owns, used
	// for priority recomputation on unlock.
	mutexes ilist.List[Mutex]

	// joinSem is published by a task waiting in TaskJoin; it lives on the
	// joiner's stack.
	joinSem *Sem

	ret any

	stack []byte
}

// ArchContext returns the opaque architecture context the port attached.
func (t *Task) ArchContext() any { return t.archCtx }

// SetArchContext attaches the port's opaque architecture context.
func (t *Task) SetArchContext(v any) { t.archCtx = v }

// ID returns the task's kernel-assigned identifier (0 is the idle task).
func (t *Task) ID() uint64 { return t.id }

// Name returns the name given at creation.
func (t *Task) Name() string { return t.name }

// BasePriority returns the fixed priority the task was created with.
func (t *Task) BasePriority() int { return t.prioBase }

// Priority returns the task's effective priority, which inheritance may
// have boosted above the base. Unsynchronized; exact only when sampled by
// the task itself or with the kernel quiescent.
func (t *Task) Priority() int { return t.prioCurrent }

// State returns the task's scheduling state. Unsynchronized; see Priority.
func (t *Task) State() State { return t.state }

// TaskCreate builds a task running entry(param) at the given priority and
// makes it ready. Priorities run 1 (lowest application priority) through
// PrioCount-1; 0 belongs to the idle task. If the new task outranks the
// caller, preemption follows immediately (unless the scheduler is locked,
// as it is during OSStart's app-init callback). Must not be called from a
// timer callback.
//
// The task terminates by returning from entry or by calling TaskExit; the
// returned value is delivered to TaskJoin.
func (k *Kernel) TaskCreate(name string, prio, stackSize int, entry func(param any) any, param any) (*Task, error) {
	if entry == nil {
		return nil, ErrNilEntry
	}
	if prio < 1 || prio >= k.opts.prioCount {
		return nil, ErrPriorityRange
	}
	if stackSize <= 0 {
		stackSize = DefaultStackSize
	}
	t := &Task{
		k:           k,
		id:          k.taskSeq.Add(1),
		name:        name,
		prioBase:    prio,
		prioCurrent: prio,
		state:       StateReady,
	}
	t.node.Init()
	t.mutexes.Init()
	if k.opts.checkStack {
		t.stack = make([]byte, stackSize)
		for i := range t.stack {
			t.stack[i] = stackPattern
		}
	}
	wrapper := func() {
		k.exitCurrent(entry(param))
	}

	st := k.crit()
	defer k.exit(st)
	if k.opts.apiCheck && k.isrNesting > 0 {
		k.halt("sched", "TaskCreate called from ISR context")
		return nil, ErrInvalidState
	}
	if err := k.port.TaskInit(t, wrapper, stackSize); err != nil {
		return nil, err
	}
	k.makeReadyLocked(t)
	klog.Debugf(k.log, "sched", "task %q created prio=%d", name, prio)
	k.scheduleLocked(true)
	return t, nil
}

// TaskExit terminates the calling task with return value rv, signals any
// pending joiner, and switches away permanently. Never returns.
func (k *Kernel) TaskExit(rv any) {
	k.exitCurrent(rv)
}

// exitCurrent is the single exit path: entry-function return and explicit
// TaskExit both land here, inside a critical section the exiting context
// never leaves (the next task's resume releases it, the way a context
// restore re-enables interrupts).
func (k *Kernel) exitCurrent(rv any) {
	_ = k.crit()
	cur := k.current
	if k.opts.apiCheck {
		if k.isrNesting > 0 {
			k.halt("sched", "TaskExit called from ISR context")
			return
		}
		if cur == k.idle {
			k.halt("sched", "idle task attempted to exit")
			return
		}
		if !cur.mutexes.IsEmpty() {
			k.halt("sched", "task %q exited while owning mutexes", cur.name)
			return
		}
	}
	cur.ret = rv
	cur.state = StateDestroyed
	cur.queue = nil
	klog.Debugf(k.log, "sched", "task %q exited", cur.name)
	if cur.joinSem != nil {
		// Synchronous signal: no reschedule here, the joiner takes over at
		// the context switch below and cannot reap this task before the
		// switch completes because the switch happens inside this same
		// critical section.
		cur.joinSem.upLocked(true)
	}
	k.dispatchLocked(k.pickNextLocked())
	panic("rtkernel: destroyed task resumed")
}

// TaskJoin blocks until other has exited, then reaps it: the return value is
// consumed and other's state becomes StateInvalid. At most one task may join
// a given task. Joining an already-reaped task returns ResultInvalid.
func (k *Kernel) TaskJoin(other *Task) (any, Result) {
	st := k.crit()
	defer k.exit(st)
	cur := k.current
	if k.opts.apiCheck {
		if k.isrNesting > 0 {
			k.halt("sched", "TaskJoin called from ISR context")
			return nil, ResultInvalid
		}
		if other == cur {
			k.halt("sched", "task %q attempted to join itself", cur.name)
			return nil, ResultInvalid
		}
		if other == k.idle {
			k.halt("sched", "attempted to join the idle task")
			return nil, ResultInvalid
		}
		if other.joinSem != nil {
			k.halt("sched", "task %q already has a joiner", other.name)
			return nil, ResultInvalid
		}
	}
	switch other.state {
	case StateInvalid:
		return nil, ResultInvalid
	case StateDestroyed:
		// Already exited; reap without blocking.
	default:
		// The semaphore lives on this frame across the wait, the joined
		// task's exit path signals it through the published pointer.
		var s Sem
		k.semInitLocked(&s, 0)
		other.joinSem = &s
		rc := s.downLocked(Forever)
		other.joinSem = nil
		if rc != ResultOK {
			return nil, rc
		}
	}
	rv := other.ret
	other.state = StateInvalid
	return rv, ResultOK
}

// TaskCheck verifies t's stack tripwire and halts the kernel if the sentinel
// at the stack's far end has been disturbed. A no-op unless the kernel was
// built WithStackCheck.
func (k *Kernel) TaskCheck(t *Task) {
	if !k.opts.checkStack || t.stack == nil {
		return
	}
	st := k.crit()
	defer k.exit(st)
	// Hosted stacks grow downward by convention; the far end is index 0.
	if t.stack[0] != stackPattern {
		k.halt("sched", "stack overflow detected on task %q", t.name)
	}
}
