// Copyright 2026 Joseph Cumines
//
// Permission to use, copy, modify, and distribute this software for any
// purpose with or without fee is hereby granted, provided that this copyright
// notice appears in all copies.

package logifaceklog

import (
	"errors"
	"testing"

	"github.com/joeycumines/logiface"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joeycumines/go-rtkernel/klog"
)

type testEvent struct {
	logiface.UnimplementedEvent
	level  logiface.Level
	msg    string
	fields map[string]any
}

func (e *testEvent) Level() logiface.Level { return e.level }

func (e *testEvent) AddField(key string, val any) {
	if e.fields == nil {
		e.fields = map[string]any{}
	}
	e.fields[key] = val
}

func (e *testEvent) AddMessage(msg string) bool {
	e.msg = msg
	return true
}

func (e *testEvent) AddUint64(key string, val uint64) bool {
	e.AddField(key, val)
	return true
}

type testEventFactory struct{}

func (testEventFactory) NewEvent(level logiface.Level) *testEvent {
	return &testEvent{level: level}
}

func newTestLogger(sink *[]*testEvent, level logiface.Level) *logiface.Logger[*testEvent] {
	return logiface.New[*testEvent](
		logiface.WithEventFactory[*testEvent](testEventFactory{}),
		logiface.WithWriter[*testEvent](logiface.WriterFunc[*testEvent](func(e *testEvent) error {
			*sink = append(*sink, e)
			return nil
		})),
		logiface.WithLevel[*testEvent](level),
	)
}

func TestLogTranslatesFields(t *testing.T) {
	var sink []*testEvent
	a := New(newTestLogger(&sink, logiface.LevelDebug))

	a.Log(klog.Entry{
		Level:    klog.LevelWarn,
		Category: "mutex",
		TaskID:   4,
		TimerID:  2,
		Message:  "boost applied",
		Err:      errors.New("nope"),
	})

	require.Len(t, sink, 1)
	e := sink[0]
	assert.Equal(t, logiface.LevelWarning, e.level)
	assert.Equal(t, "boost applied", e.msg)
	assert.Equal(t, "mutex", e.fields["category"])
	assert.EqualValues(t, 4, e.fields["task"])
	assert.EqualValues(t, 2, e.fields["timer"])
	assert.NotNil(t, e.fields["err"])
}

func TestIsEnabledFollowsBackendLevel(t *testing.T) {
	var sink []*testEvent
	a := New(newTestLogger(&sink, logiface.LevelWarning))

	assert.True(t, a.IsEnabled(klog.LevelError))
	assert.True(t, a.IsEnabled(klog.LevelWarn))
	assert.False(t, a.IsEnabled(klog.LevelDebug))

	a.Log(klog.Entry{Level: klog.LevelDebug, Message: "filtered"})
	assert.Empty(t, sink)
}

func TestNilAdapterSafe(t *testing.T) {
	var a *Logger[*testEvent]
	assert.False(t, a.IsEnabled(klog.LevelError))
	assert.NotPanics(t, func() { a.Log(klog.Entry{Message: "discarded"}) })
}
