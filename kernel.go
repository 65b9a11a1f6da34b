// Copyright 2026 Joseph Cumines
//
// Permission to use, copy, modify, and distribute this software for any
// purpose with or without fee is hereby granted, provided that this copyright
// notice appears in all copies.

package rtkernel

import (
	"fmt"
	"sync/atomic"

	"github.com/joeycumines/go-rtkernel/arch"
	"github.com/joeycumines/go-rtkernel/arch/hostarch"
	"github.com/joeycumines/go-rtkernel/klog"
	"github.com/joeycumines/go-rtkernel/kmetrics"
	"github.com/joeycumines/go-rtkernel/taskqueue"
	"github.com/joeycumines/go-rtkernel/timer"
)

// Kernel is one kernel instance: the process-wide scheduler singletons
// (current task, ready-queue, ISR nesting depth, scheduler lock, tick
// counter, pending-timer list) encapsulated behind a struct so a hosted test
// run can hold several independent kernels. A target firmware image
// instantiates exactly one.
//
// All mutation of scheduler data happens inside the port's critical section;
// the kernel itself takes no additional locks.
type Kernel struct {
	port arch.Port[Task]
	opts kernelOptions
	log  klog.Logger
	met  *kmetrics.Metrics

	ready *taskqueue.Queue[Task]
	wheel *timer.Wheel

	current *Task
	idle    *Task

	// isrNesting is the depth of nested interrupt handlers; 0 means task
	// code is executing. schedLock suppresses context switches while leaving
	// "interrupts" (the tick path) live.
	isrNesting int
	schedLock  int

	// preemptPending records a deferred tick-exit reschedule for the running
	// task to honor at its next kernel entry (see Checkpoint).
	preemptPending bool

	started bool
	ticks   atomic.Uint64
	taskSeq atomic.Uint64
}

// New creates a Kernel scheduling through port.
func New(port arch.Port[Task], opts ...Option) (*Kernel, error) {
	cfg, err := resolveOptions(opts)
	if err != nil {
		return nil, err
	}
	k := &Kernel{
		port: port,
		opts: *cfg,
		log:  cfg.logger,
	}
	if k.log == nil {
		k.log = klog.NoOp{}
	}
	if cfg.metricsEnabled {
		k.met = kmetrics.New()
	}
	k.ready = taskqueue.New[Task](cfg.prioCount)
	k.wheel = timer.New(cfg.maxUnsynch)
	return k, nil
}

// NewHosted creates a Kernel backed by the goroutine-based hostarch port,
// the usual configuration for tests and for running on a POSIX-like host.
func NewHosted(opts ...Option) (*Kernel, error) {
	port := hostarch.New(hostarch.Accessors[Task]{
		Get: func(t *Task) any { return t.ArchContext() },
		Set: func(t *Task, v any) { t.SetArchContext(v) },
	})
	return New(port, opts...)
}

func (k *Kernel) crit() arch.CriticalState {
	return k.port.CriticalEnter()
}

func (k *Kernel) exit(st arch.CriticalState) {
	k.port.CriticalExit(st)
}

// halt is the kernel's only response to API misuse or invariant violation:
// log, then hand off to the port's no-return Halt with the critical section
// still held, freezing the kernel the way disabling interrupts forever
// would.
func (k *Kernel) halt(category, format string, args ...any) {
	klog.Errorf(k.log, category, format, args...)
	k.port.Halt(fmt.Sprintf(format, args...))
}

// OSStart boots the kernel and never returns: it builds the idle task, runs
// appInit with the scheduler locked (appInit must create the application's
// initial tasks and may start the tick source; it must not block or yield),
// then hands the CPU to the highest-priority ready task. Call it once, from
// a goroutine dedicated to the bootstrap.
//
// appIdle, if non-nil, is invoked once per idle-loop iteration whenever no
// application task is runnable.
func (k *Kernel) OSStart(appInit, appIdle func()) {
	st := k.crit()
	if k.started {
		k.halt("sched", "OSStart called twice")
		return
	}
	k.started = true

	idle := &Task{
		k:     k,
		name:  "idle",
		state: StateRunning,
	}
	idle.node.Init()
	idle.mutexes.Init()
	if err := k.port.TaskInit(idle, func() { k.idleLoop(appIdle) }, DefaultStackSize); err != nil {
		k.halt("sched", "idle task init failed: %v", err)
		return
	}
	k.idle = idle
	k.current = idle
	k.port.OSStart()
	k.schedLock++
	k.exit(st)

	// The app-init callback runs with the scheduler locked but the tick
	// path live: TaskCreate enqueues without switching, exactly the window
	// the scheduler lock exists for.
	if appInit != nil {
		appInit()
	}

	st = k.crit()
	k.schedLock--
	next := k.pickNextLocked()
	if next != idle {
		idle.state = StateReady
	}
	next.state = StateRunning
	k.current = next
	klog.Infof(k.log, "sched", "kernel started, dispatching %q", next.name)
	k.port.ContextSwitch(next)
	panic("rtkernel: bootstrap context resumed")
}

// idleLoop is the idle task's body: dispatch any runnable task, relax the
// CPU, repeat. Runs at priority 0 and never blocks.
func (k *Kernel) idleLoop(appIdle func()) {
	for {
		st := k.crit()
		k.preemptPending = false
		k.scheduleLocked(false)
		k.exit(st)
		if appIdle != nil {
			appIdle()
		}
		k.port.Idle()
	}
}

// Tick is the tick-interrupt handler: it advances the monotonic tick
// counter and the timer wheel (whose callbacks may mark tasks ready), then
// flags a deferred reschedule for the interrupted task to honor. Drive it
// from the tick source (see hostarch.Run) or directly from a test.
// ISR-safe by definition.
func (k *Kernel) Tick() {
	st := k.crit()
	k.isrNesting++
	k.ticks.Add(1)
	k.wheel.Tick()
	k.isrNesting--
	if k.isrNesting == 0 && k.schedLock == 0 {
		// Tick-exit preemption point. The hosted port cannot seize the
		// interrupted goroutine here; the running task honors this flag at
		// its next kernel entry.
		k.preemptPending = true
	}
	k.exit(st)
}

// Checkpoint is the hosted stand-in for the hardware tick-exit preemption
// point: if a tick elected to reschedule since the last kernel entry, the
// calling task gives up the CPU here. Long-running loops that make no other
// kernel calls should invoke it periodically; every blocking call and Yield
// already subsumes it.
func (k *Kernel) Checkpoint() {
	st := k.crit()
	if k.preemptPending && k.current != nil && k.isrNesting == 0 && k.schedLock == 0 {
		k.preemptPending = false
		if k.met != nil {
			if p, ok := k.ready.HighestPrio(); ok && p >= k.current.prioCurrent {
				k.met.Preemptions.Add(1)
			}
		}
		k.scheduleLocked(false)
	}
	k.exit(st)
}

// Yield gives up the CPU to the highest-priority ready task, which may be a
// same-priority peer (FIFO rotation within the priority class). A no-op when
// nothing of equal or higher priority is ready.
func (k *Kernel) Yield() {
	st := k.crit()
	if k.opts.apiCheck && k.isrNesting > 0 {
		k.halt("sched", "Yield called from ISR context")
		return
	}
	k.preemptPending = false
	k.scheduleLocked(false)
	k.exit(st)
}

// SchedulerLock suppresses task switching while leaving the tick path live.
// Calls nest; the lock releases when every SchedulerLock has been matched by
// SchedulerUnlock.
func (k *Kernel) SchedulerLock() {
	st := k.crit()
	k.schedLock++
	k.exit(st)
}

// SchedulerUnlock releases one level of scheduler lock; on the outermost
// release a deferred reschedule runs immediately.
func (k *Kernel) SchedulerUnlock() {
	st := k.crit()
	if k.opts.apiCheck && k.schedLock == 0 {
		k.halt("sched", "SchedulerUnlock without matching SchedulerLock")
		return
	}
	k.schedLock--
	if k.schedLock == 0 && k.isrNesting == 0 {
		k.preemptPending = false
		k.scheduleLocked(false)
	}
	k.exit(st)
}

// Current returns the running task. Exact only when sampled by that task
// itself or with the kernel quiescent; diagnostic otherwise.
func (k *Kernel) Current() *Task {
	return k.current
}

// TicksNow returns the monotonic tick count since OSStart. Wraps at the
// counter's width.
func (k *Kernel) TicksNow() arch.Ticks {
	return arch.Ticks(k.ticks.Load())
}

// Metrics returns a snapshot of the kernel's runtime counters; the zero
// snapshot unless the kernel was built WithMetrics.
func (k *Kernel) Metrics() kmetrics.Snapshot {
	return k.met.Snapshot()
}

// TimerCreate arms t to fire cb(param) after ticks OS ticks; a reload > 0
// re-arms it for reload ticks after each fire. Callbacks run in tick context
// with the critical section held: they may call the ISR-safe APIs (Sem.Up,
// WaitQueue.Wakeup, Mbox.Push/Post, MQueue.Post, TimerCreate/TimerDestroy)
// but must not block. ISR-safe.
func (k *Kernel) TimerCreate(t *timer.Timer, ticks, reload int64, cb func(param any), param any) {
	st := k.crit()
	k.armTimerLocked(t, ticks, reload, cb, param)
	k.exit(st)
}

// TimerDestroy disarms t. Idempotent while t's memory remains valid.
// ISR-safe.
func (k *Kernel) TimerDestroy(t *timer.Timer) {
	st := k.crit()
	t.Destroy(k.wheel)
	k.exit(st)
}

func (k *Kernel) armTimerLocked(t *timer.Timer, ticks, reload int64, cb func(param any), param any) {
	k.wheel.Create(t, ticks, reload, func(p any) {
		if k.met != nil {
			k.met.TimerFires.Add(1)
		}
		if cb != nil {
			cb(p)
		}
	})
	t.SetParam(param)
}
