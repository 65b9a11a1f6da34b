// Copyright 2026 Joseph Cumines
//
// Permission to use, copy, modify, and distribute this software for any
// purpose with or without fee is hereby granted, provided that this copyright
// notice appears in all copies.

// Package rtkernel is a small, portable, preemptive real-time multitasking
// kernel core: a fixed-priority scheduler with per-priority ready buckets,
// four synchronization primitives interlocked with it (counting semaphore,
// recursive mutex with priority inheritance, prepare/check/wait wait-queue,
// and message box/queue over a lock-free ring), and a monotonic timer wheel
// driving timeouts and periodic callbacks.
//
// The kernel owns only scheduling, synchronization, and timekeeping. It
// does not provide memory management, a filesystem, a device model, or
// user/kernel separation; applications allocate task control blocks, stacks,
// and synchronization objects themselves and lend them to the kernel.
//
// Architecture specifics live behind the arch.Port interface; the
// arch/hostarch package supplies a goroutine-backed port so the kernel runs
// and is tested on any host the Go toolchain targets. Typical bring-up:
//
//	k, err := rtkernel.NewHosted(rtkernel.WithPriorityLevels(5))
//	if err != nil {
//		// ...
//	}
//	ts := hostarch.NewChanTicker(time.Millisecond)
//	go hostarch.Run(ts, k.Tick, nil)
//	go k.OSStart(func() {
//		k.TaskCreate("worker", 1, 0, worker, nil)
//	}, nil)
//
// OSStart never returns; the kernel stops when the process does.
package rtkernel
