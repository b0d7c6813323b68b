package main

import (
	"fmt"
	"sync/atomic"
)

// MotionEdgeMonitor samples a presence signal on demand and raises
// PresenceDetected once per rising edge.  Repeated readings of "present" are
// suppressed, and a transition back to "absent" is recorded silently: there is
// no matching "cleared" event.
//
// Poll must be serialised by the caller (normally the Runner).  The observed
// state is stored atomically only so that the status API can read it from
// another goroutine.
type MotionEdgeMonitor struct {
	probe        Probe
	emit         func(EventKind)
	lastObserved atomic.Bool
}

// NewMotionEdgeMonitor returns a monitor in the ABSENT state.
func NewMotionEdgeMonitor(probe Probe, emit func(EventKind)) *MotionEdgeMonitor {
	return &MotionEdgeMonitor{probe: probe, emit: emit}
}

// Poll reads the probe once.  On a false to true transition it calls emit
// with PresenceDetected.  If the probe fails the error is returned and the
// observed state is left untouched.
func (m *MotionEdgeMonitor) Poll() error {
	current, err := m.probe.Read()
	if err != nil {
		return fmt.Errorf("read motion sensor: %w", err)
	}
	if current != m.lastObserved.Load() && current {
		m.emit(PresenceDetected)
	}
	m.lastObserved.Store(current)
	return nil
}

// Present reports the reading recorded by the most recent successful Poll.
func (m *MotionEdgeMonitor) Present() bool {
	return m.lastObserved.Load()
}
