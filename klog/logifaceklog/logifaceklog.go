// Copyright 2026 Joseph Cumines
//
// Permission to use, copy, modify, and distribute this software for any
// purpose with or without fee is hereby granted, provided that this copyright
// notice appears in all copies.

// Package logifaceklog adapts a github.com/joeycumines/logiface Logger into
// the kernel's klog.Logger facade, so kernel log entries flow through the
// same generic structured-logging pipeline as the rest of a host
// application. Wire one up with logiface.New[E](logiface.WithEventFactory[E](...),
// logiface.WithWriter[E](...)) and hand the result to WithLogger.
package logifaceklog

import (
	"github.com/joeycumines/go-rtkernel/klog"
	"github.com/joeycumines/logiface"
)

// Logger adapts *logiface.Logger[E] to klog.Logger.
type Logger[E logiface.Event] struct {
	l *logiface.Logger[E]
}

// New wraps an already-configured logiface logger.
func New[E logiface.Event](l *logiface.Logger[E]) *Logger[E] {
	return &Logger[E]{l: l}
}

// IsEnabled reports whether the wrapped logger would build an event at
// level.
func (a *Logger[E]) IsEnabled(level klog.Level) bool {
	if a == nil || a.l == nil {
		return false
	}
	return a.l.Build(toLogifaceLevel(level)) != nil
}

// Log translates entry into a logiface Builder call chain and logs it.
func (a *Logger[E]) Log(e klog.Entry) {
	if a == nil || a.l == nil {
		return
	}
	b := a.l.Build(toLogifaceLevel(e.Level))
	if b == nil {
		return
	}
	if e.Category != "" {
		b = b.Str("category", e.Category)
	}
	if e.TaskID != 0 {
		b = b.Uint64("task", e.TaskID)
	}
	if e.TimerID != 0 {
		b = b.Uint64("timer", e.TimerID)
	}
	if e.Err != nil {
		b = b.Err(e.Err)
	}
	b.Log(e.Message)
}

func toLogifaceLevel(l klog.Level) logiface.Level {
	switch l {
	case klog.LevelDebug:
		return logiface.LevelDebug
	case klog.LevelInfo:
		return logiface.LevelInformational
	case klog.LevelWarn:
		return logiface.LevelWarning
	case klog.LevelError:
		return logiface.LevelError
	default:
		return logiface.LevelInformational
	}
}
