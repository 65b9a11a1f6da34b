// Copyright 2026 Joseph Cumines
//
// Permission to use, copy, modify, and distribute this software for any
// purpose with or without fee is hereby granted, provided that this copyright
// notice appears in all copies.

package rtkernel

import "github.com/joeycumines/go-rtkernel/klog"

// kernelOptions holds resolved configuration for Kernel creation. These map
// the compile-time build options a freestanding target would set with
// preprocessor defines onto constructor-time switches.
type kernelOptions struct {
	prioCount      int
	checkStack     bool
	apiCheck       bool
	selfCheck      bool
	prioInherit    bool
	revUnlockOrder bool
	waitQueue      bool
	maxUnsynch     int64
	metricsEnabled bool
	logger         klog.Logger
}

// Option configures a Kernel instance.
type Option interface {
	applyKernel(*kernelOptions) error
}

// optionImpl implements Option.
type optionImpl struct {
	applyKernelFunc func(*kernelOptions) error
}

func (o *optionImpl) applyKernel(opts *kernelOptions) error {
	return o.applyKernelFunc(opts)
}

// WithPriorityLevels sets the number of task priority levels, in [2, 64].
// Priority 0 is reserved for the idle task; application tasks occupy
// [1, n-1]. Defaults to 8.
func WithPriorityLevels(n int) Option {
	return &optionImpl{func(opts *kernelOptions) error {
		if n < 2 || n > 64 {
			return ErrPriorityRange
		}
		opts.prioCount = n
		return nil
	}}
}

// WithStackCheck enables the stack tripwire: task stacks are filled with a
// sentinel pattern on creation and TaskCheck halts the kernel if the pattern
// at the stack's far end has been disturbed. Disabled by default on the
// hosted build (goroutine stacks grow dynamically and the tripwire can only
// ever pass), but the mechanism is kept so port-portable application code
// exercises the same API it would on a target.
func WithStackCheck(enabled bool) Option {
	return &optionImpl{func(opts *kernelOptions) error {
		opts.checkStack = enabled
		return nil
	}}
}

// WithAPIChecks enables assertion of API-misuse preconditions (blocking from
// ISR context, unlocking a mutex the caller does not own, and so on).
// Violations halt the kernel. Enabled by default.
func WithAPIChecks(enabled bool) Option {
	return &optionImpl{func(opts *kernelOptions) error {
		opts.apiCheck = enabled
		return nil
	}}
}

// WithSelfChecks enables assertion of internal scheduler invariants on hot
// paths. Violations halt the kernel. Enabled by default on the hosted build.
func WithSelfChecks(enabled bool) Option {
	return &optionImpl{func(opts *kernelOptions) error {
		opts.selfCheck = enabled
		return nil
	}}
}

// WithPriorityInheritance enables the mutex priority-inheritance chain walk.
// Enabled by default.
func WithPriorityInheritance(enabled bool) Option {
	return &optionImpl{func(opts *kernelOptions) error {
		opts.prioInherit = enabled
		return nil
	}}
}

// WithReverseUnlockOrder promises the kernel that mutexes are always
// unlocked in the reverse of their lock order, allowing Mutex.Unlock to
// reset the caller straight to its base priority once its ownership list
// empties instead of recomputing the supremum over remaining obligations.
func WithReverseUnlockOrder(enabled bool) Option {
	return &optionImpl{func(opts *kernelOptions) error {
		opts.revUnlockOrder = enabled
		return nil
	}}
}

// WithWaitQueue includes the wait-queue module and the messaging primitives
// layered on it (Mbox, MQueue). Enabled by default; disabling it makes
// WaitQueueInit (and therefore MboxInit/MQueueInit) a fatal API misuse.
func WithWaitQueue(enabled bool) Option {
	return &optionImpl{func(opts *kernelOptions) error {
		opts.waitQueue = enabled
		return nil
	}}
}

// WithMaxUnsynchedTicks bounds how many ticks the timer wheel may accumulate
// before forcing a list walk, preventing countdown-arithmetic overflow on
// narrow tick types. 0 (the default) means unbounded, which is safe on the
// hosted build's 64-bit counters.
func WithMaxUnsynchedTicks(n int64) Option {
	return &optionImpl{func(opts *kernelOptions) error {
		opts.maxUnsynch = n
		return nil
	}}
}

// WithLogger wires a structured logger for scheduler and primitive
// diagnostics. The default discards everything.
func WithLogger(l klog.Logger) Option {
	return &optionImpl{func(opts *kernelOptions) error {
		opts.logger = l
		return nil
	}}
}

// WithMetrics enables runtime counter collection, accessible via
// Kernel.Metrics. Adds one atomic increment per observed event; disabled by
// default.
func WithMetrics(enabled bool) Option {
	return &optionImpl{func(opts *kernelOptions) error {
		opts.metricsEnabled = enabled
		return nil
	}}
}

// resolveOptions applies Option instances over the defaults.
func resolveOptions(opts []Option) (*kernelOptions, error) {
	cfg := &kernelOptions{
		prioCount:   8,
		apiCheck:    true,
		selfCheck:   true,
		prioInherit: true,
		waitQueue:   true,
	}
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		if err := opt.applyKernel(cfg); err != nil {
			return nil, err
		}
	}
	return cfg, nil
}
