// Copyright 2026 Joseph Cumines
//
// Permission to use, copy, modify, and distribute this software for any
// purpose with or without fee is hereby granted, provided that this copyright
// notice appears in all copies.

package rtkernel

import (
	"testing"
	"time"
	"unsafe"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMQueueInitValidation(t *testing.T) {
	k, err := NewHosted(WithPriorityLevels(5))
	require.NoError(t, err)
	var q MQueue
	assert.ErrorIs(t, k.MQueueInit(&q, 3, SPSC), ErrCapacityNotPow2)
	assert.ErrorIs(t, k.MQueueInit(&q, 1, SPSC), ErrCapacityNotPow2)
	assert.NoError(t, k.MQueueInit(&q, 8, MPMC))
	assert.Equal(t, 7, q.Cap())
}

func TestMQueuePostPopOrder(t *testing.T) {
	done := make(chan struct{})
	vals := [5]int{10, 20, 30, 40, 50}
	var got []unsafe.Pointer
	startKernel(t, func(k *Kernel) {
		var q MQueue
		assert.NoError(t, k.MQueueInit(&q, 8, SPSC))
		k.TaskCreate("producer", 1, 0, func(any) any {
			for i := range vals {
				assert.Equal(t, 1, q.Post([]unsafe.Pointer{ptrOf(&vals[i])}))
			}
			return nil
		}, nil)
		k.TaskCreate("consumer", 1, 0, func(any) any {
			buf := make([]unsafe.Pointer, 2)
			for len(got) < len(vals) {
				n, rc := q.Pop(buf, Forever)
				if rc != ResultOK {
					break
				}
				got = append(got, buf[:n]...)
			}
			close(done)
			return nil
		}, nil)
	}, WithPriorityLevels(5))
	waitDone(t, done, "consumer")

	require.Len(t, got, len(vals))
	for i := range vals {
		assert.Equal(t, ptrOf(&vals[i]), got[i], "FIFO order at position %d", i)
	}
}

func TestMQueuePartialCommitWhenFull(t *testing.T) {
	done := make(chan struct{})
	vals := [6]int{}
	var committed int
	k := startKernel(t, func(k *Kernel) {
		var q MQueue
		assert.NoError(t, k.MQueueInit(&q, 4, SPSC)) // usable capacity 3
		k.TaskCreate("producer", 1, 0, func(any) any {
			items := make([]unsafe.Pointer, len(vals))
			for i := range vals {
				items[i] = ptrOf(&vals[i])
			}
			committed = q.Post(items)
			close(done)
			return nil
		}, nil)
	}, WithPriorityLevels(5), WithMetrics(true))
	waitDone(t, done, "producer")

	assert.Equal(t, 3, committed, "a full ring commits only what fits")
	assert.EqualValues(t, 1, k.Metrics().RingOverflows)
}

func TestMQueuePopTimeoutAndNonBlocking(t *testing.T) {
	done := make(chan struct{})
	var rcEmpty, rcTimeout Result
	k := startKernel(t, func(k *Kernel) {
		var q MQueue
		assert.NoError(t, k.MQueueInit(&q, 4, SPSC))
		k.TaskCreate("consumer", 1, 0, func(any) any {
			buf := make([]unsafe.Pointer, 1)
			_, rcEmpty = q.Pop(buf, DontWait)
			_, rcTimeout = q.Pop(buf, 3)
			close(done)
			return nil
		}, nil)
	}, WithPriorityLevels(5))
	tickUntil(t, k, done, 0)

	assert.Equal(t, ResultWouldBlock, rcEmpty)
	assert.Equal(t, ResultTimeout, rcTimeout)
}

func TestMQueueMPMCManyTasks(t *testing.T) {
	const perProducer = 64
	done := make(chan struct{})
	vals := [2 * perProducer]int{}
	var consumed [2][]unsafe.Pointer
	k := startKernel(t, func(k *Kernel) {
		var q MQueue
		assert.NoError(t, k.MQueueInit(&q, 256, MPMC))
		var exited int
		producer := func(base int) func(any) any {
			return func(any) any {
				for i := 0; i < perProducer; i++ {
					for q.Post([]unsafe.Pointer{ptrOf(&vals[base+i])}) == 0 {
						k.Yield()
					}
					k.Yield()
				}
				return nil
			}
		}
		consumer := func(id int) func(any) any {
			return func(any) any {
				buf := make([]unsafe.Pointer, 4)
				for {
					n, rc := q.Pop(buf, 500)
					if rc != ResultOK {
						break
					}
					consumed[id] = append(consumed[id], buf[:n]...)
					k.Yield()
				}
				exited++
				if exited == 2 {
					close(done)
				}
				return nil
			}
		}
		k.TaskCreate("p0", 1, 0, producer(0), nil)
		k.TaskCreate("p1", 1, 0, producer(perProducer), nil)
		k.TaskCreate("c0", 1, 0, consumer(0), nil)
		k.TaskCreate("c1", 1, 0, consumer(1), nil)
	}, WithPriorityLevels(5))
	// Ticks let the consumers' final Pop time out once the producers finish;
	// the pause keeps the timeout generous relative to task progress.
	tickUntil(t, k, done, 100*time.Microsecond)

	seen := map[unsafe.Pointer]int{}
	for _, c := range consumed {
		for _, p := range c {
			seen[p]++
		}
	}
	assert.Len(t, seen, len(vals), "every message consumed exactly once")
	for p, n := range seen {
		assert.Equal(t, 1, n, "duplicate delivery of %v", p)
	}
}
