// Copyright 2026 Joseph Cumines
//
// Permission to use, copy, modify, and distribute this software for any
// purpose with or without fee is hereby granted, provided that this copyright
// notice appears in all copies.

package klog

import (
	"fmt"
	"io"
	"sync"
	"sync/atomic"
)

// WriterLogger writes entries as plain text lines to an io.Writer, gated by
// a minimum level: a mutex-serialized writer plus an atomic level so
// IsEnabled never takes the lock.
type WriterLogger struct {
	out   io.Writer
	level atomic.Int32
	mu    sync.Mutex
}

// NewWriterLogger creates a WriterLogger writing to out at minimum level.
func NewWriterLogger(out io.Writer, level Level) *WriterLogger {
	w := &WriterLogger{out: out}
	w.level.Store(int32(level))
	return w
}

// SetLevel changes the minimum level at runtime.
func (w *WriterLogger) SetLevel(level Level) {
	w.level.Store(int32(level))
}

func (w *WriterLogger) IsEnabled(level Level) bool {
	return int32(level) >= w.level.Load()
}

func (w *WriterLogger) Log(e Entry) {
	if !w.IsEnabled(e.Level) {
		return
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	fmt.Fprintf(w.out, "%s [%-8s] %s", e.Timestamp.Format("15:04:05.000"), e.Category, e.Message)
	if e.TaskID != 0 {
		fmt.Fprintf(w.out, " task=%d", e.TaskID)
	}
	if e.TimerID != 0 {
		fmt.Fprintf(w.out, " timer=%d", e.TimerID)
	}
	if e.Err != nil {
		fmt.Fprintf(w.out, " err=%v", e.Err)
	}
	fmt.Fprintln(w.out)
}
