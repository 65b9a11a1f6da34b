// Copyright 2026 Joseph Cumines
//
// Permission to use, copy, modify, and distribute this software for any
// purpose with or without fee is hereby granted, provided that this copyright
// notice appears in all copies.

package rtkernel

import (
	"testing"
	"unsafe"

	"github.com/stretchr/testify/assert"

	"github.com/joeycumines/go-rtkernel/timer"
)

func ptrOf(v *int) unsafe.Pointer { return unsafe.Pointer(v) }

func TestMboxPostPopRoundTrip(t *testing.T) {
	done := make(chan struct{})
	vals := [2]int{11, 22}
	var rcBusy Result
	var popped []unsafe.Pointer
	startKernel(t, func(k *Kernel) {
		var m Mbox
		k.MboxInit(&m)
		k.TaskCreate("producer", 1, 0, func(any) any {
			assert.Equal(t, ResultOK, m.Post(ptrOf(&vals[0])))
			rcBusy = m.Post(ptrOf(&vals[1]))
			return nil
		}, nil)
		k.TaskCreate("consumer", 1, 0, func(any) any {
			p, rc := m.Pop(Forever)
			assert.Equal(t, ResultOK, rc)
			popped = append(popped, p)
			close(done)
			return nil
		}, nil)
	}, WithPriorityLevels(5))
	waitDone(t, done, "consumer")

	assert.Equal(t, ResultBusy, rcBusy, "Post into an occupied slot must fail")
	assert.Equal(t, []unsafe.Pointer{ptrOf(&vals[0])}, popped)
}

func TestMboxPushDisplaces(t *testing.T) {
	done := make(chan struct{})
	vals := [2]int{1, 2}
	var displacedFirst, displacedSecond unsafe.Pointer
	var got unsafe.Pointer
	startKernel(t, func(k *Kernel) {
		var m Mbox
		k.MboxInit(&m)
		k.TaskCreate("t", 1, 0, func(any) any {
			displacedFirst = m.Push(ptrOf(&vals[0]))
			displacedSecond = m.Push(ptrOf(&vals[1]))
			got, _ = m.Pop(DontWait)
			close(done)
			return nil
		}, nil)
	}, WithPriorityLevels(5))
	waitDone(t, done, "task")

	assert.Nil(t, displacedFirst)
	assert.Equal(t, ptrOf(&vals[0]), displacedSecond, "Push must return the displaced message")
	assert.Equal(t, ptrOf(&vals[1]), got, "Pop must see only the latest Push")
}

func TestMboxPopNonBlockingAndTimeout(t *testing.T) {
	done := make(chan struct{})
	var rcEmpty, rcTimeout Result
	k := startKernel(t, func(k *Kernel) {
		var m Mbox
		k.MboxInit(&m)
		k.TaskCreate("consumer", 1, 0, func(any) any {
			_, rcEmpty = m.Pop(DontWait)
			_, rcTimeout = m.Pop(3)
			close(done)
			return nil
		}, nil)
	}, WithPriorityLevels(5))
	tickUntil(t, k, done, 0)

	assert.Equal(t, ResultWouldBlock, rcEmpty)
	assert.Equal(t, ResultTimeout, rcTimeout)
}

func TestMboxPushFromTimerCallbackWakesConsumer(t *testing.T) {
	done := make(chan struct{})
	val := 7
	var got unsafe.Pointer
	var rc Result
	var tm timer.Timer
	k := startKernel(t, func(k *Kernel) {
		var m Mbox
		k.MboxInit(&m)
		k.TimerCreate(&tm, 2, 0, func(any) { m.Push(ptrOf(&val)) }, nil)
		k.TaskCreate("consumer", 1, 0, func(any) any {
			got, rc = m.Pop(Forever)
			close(done)
			return nil
		}, nil)
	}, WithPriorityLevels(5))
	tickUntil(t, k, done, 0)

	assert.Equal(t, ResultOK, rc)
	assert.Equal(t, ptrOf(&val), got)
}
