// Copyright 2026 Joseph Cumines
//
// Permission to use, copy, modify, and distribute this software for any
// purpose with or without fee is hereby granted, provided that this copyright
// notice appears in all copies.

package kmetrics

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSnapshotCopiesCounters(t *testing.T) {
	m := New()
	m.ContextSwitches.Add(3)
	m.Preemptions.Add(1)
	m.TimerFires.Add(2)

	s := m.Snapshot()
	assert.EqualValues(t, 3, s.ContextSwitches)
	assert.EqualValues(t, 1, s.Preemptions)
	assert.EqualValues(t, 2, s.TimerFires)
	assert.EqualValues(t, 0, s.RingOverflows)

	// The snapshot is a copy, not a view.
	m.ContextSwitches.Add(1)
	assert.EqualValues(t, 3, s.ContextSwitches)
}

func TestNilMetricsSnapshot(t *testing.T) {
	var m *Metrics
	assert.Equal(t, Snapshot{}, m.Snapshot())
}
