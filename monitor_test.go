package main

import (
	"errors"
	"testing"
)

// seqProbe returns the readings in order, then repeats the last one.
type seqProbe struct {
	readings []bool
	err      error
	i        int
}

func (p *seqProbe) Read() (bool, error) {
	if p.err != nil {
		return false, p.err
	}
	if len(p.readings) == 0 {
		return false, nil
	}
	v := p.readings[p.i]
	if p.i < len(p.readings)-1 {
		p.i++
	}
	return v, nil
}

func countEmits(t *testing.T, readings []bool) int {
	t.Helper()
	var n int
	m := NewMotionEdgeMonitor(&seqProbe{readings: readings}, func(k EventKind) {
		if k != PresenceDetected {
			t.Fatalf("emitted %q, want %q", k, PresenceDetected)
		}
		n++
	})
	for range readings {
		if err := m.Poll(); err != nil {
			t.Fatalf("Poll() err=%v", err)
		}
	}
	return n
}

func risingEdges(readings []bool) int {
	prev, n := false, 0
	for _, v := range readings {
		if v && !prev {
			n++
		}
		prev = v
	}
	return n
}

func TestMonitor_EmitsOnRisingEdgesOnly(t *testing.T) {
	tests := []struct {
		name     string
		readings []bool
		want     int
	}{
		{"first reading false", []bool{false}, 0},
		{"first reading true", []bool{true}, 1},
		{"presence persists", []bool{true, true, true}, 1},
		{"present absent present", []bool{true, false, true}, 2},
		{"always absent", []bool{false, false}, 0},
		{"falling edge only after rise", []bool{false, true, false, false}, 1},
		{"toggle", []bool{true, false, true, false, true, false}, 3},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := countEmits(t, tt.readings); got != tt.want {
				t.Errorf("emits = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestMonitor_EmitCountMatchesRisingEdges(t *testing.T) {
	// Every 6-poll sequence.
	for mask := 0; mask < 1<<6; mask++ {
		readings := make([]bool, 6)
		for i := range readings {
			readings[i] = mask&(1<<i) != 0
		}
		if got, want := countEmits(t, readings), risingEdges(readings); got != want {
			t.Errorf("readings %v: emits = %d, want %d", readings, got, want)
		}
	}
}

func TestMonitor_StateFollowsProbe(t *testing.T) {
	p := &seqProbe{readings: []bool{true, false}}
	m := NewMotionEdgeMonitor(p, func(EventKind) {})
	if m.Present() {
		t.Fatal("new monitor should start absent")
	}
	_ = m.Poll()
	if !m.Present() {
		t.Fatal("Present() = false after reading true")
	}
	_ = m.Poll()
	if m.Present() {
		t.Fatal("Present() = true after reading false")
	}
}

func TestMonitor_ProbeErrorPropagates(t *testing.T) {
	boom := errors.New("bus fault")
	p := &seqProbe{readings: []bool{true}}
	var n int
	m := NewMotionEdgeMonitor(p, func(EventKind) { n++ })

	if err := m.Poll(); err != nil {
		t.Fatalf("Poll() err=%v", err)
	}
	p.err = boom
	if err := m.Poll(); !errors.Is(err, boom) {
		t.Fatalf("Poll() err=%v, want %v", err, boom)
	}
	if !m.Present() {
		t.Fatal("failed poll must not change the observed state")
	}
	p.err = nil
	if err := m.Poll(); err != nil {
		t.Fatalf("Poll() err=%v", err)
	}
	if n != 1 {
		t.Fatalf("emits = %d, want 1 (no re-fire after a failed read)", n)
	}
}
