package main

import (
	"errors"
	"sync/atomic"
	"testing"
	"time"
)

func TestDispatcher_EmitRunsAllHandlers(t *testing.T) {
	d := NewDispatcher("lobby")
	fixed := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	d.now = func() time.Time { return fixed }

	var a, b atomic.Int32
	d.Register(PresenceDetected, func(ev Event) {
		if ev.Board != "lobby" || !ev.At.Equal(fixed) || ev.ID == "" {
			t.Errorf("unexpected event %+v", ev)
		}
		a.Add(1)
	})
	d.Register(PresenceDetected, func(Event) { b.Add(1) })
	d.Register("other", func(Event) { t.Error("handler for another kind called") })

	d.Emit(PresenceDetected)
	d.Emit(PresenceDetected)
	d.Wait()

	if a.Load() != 2 || b.Load() != 2 {
		t.Fatalf("handler calls = %d, %d; want 2, 2", a.Load(), b.Load())
	}
}

func TestDispatcher_RecentIsBounded(t *testing.T) {
	d := NewDispatcher("lobby")
	for i := 0; i < recentEvents+10; i++ {
		d.Emit(PresenceDetected)
	}
	got := d.Recent()
	if len(got) != recentEvents {
		t.Fatalf("len(Recent()) = %d, want %d", len(got), recentEvents)
	}
	got[0].ID = "mutated"
	if d.Recent()[0].ID == "mutated" {
		t.Fatal("Recent() must return a copy")
	}
}

func TestDispatcher_ShutdownStopsHandlers(t *testing.T) {
	d := NewDispatcher("lobby")
	var calls atomic.Int32
	d.Register(PresenceDetected, func(Event) { calls.Add(1) })

	d.Emit(PresenceDetected)
	if err := d.Shutdown(time.Second); err != nil {
		t.Fatalf("Shutdown() err=%v", err)
	}
	if calls.Load() != 1 {
		t.Fatalf("handler calls before shutdown = %d, want 1", calls.Load())
	}

	ev := d.Emit(PresenceDetected)
	d.Wait()
	if calls.Load() != 1 {
		t.Errorf("handler ran after Shutdown")
	}
	if got := d.Recent(); len(got) != 2 || got[1].ID != ev.ID {
		t.Errorf("event after shutdown not recorded: %+v", got)
	}
}

func TestDispatcher_ShutdownGivesUpOnStuckHandler(t *testing.T) {
	d := NewDispatcher("lobby")
	release := make(chan struct{})
	defer close(release)
	d.Register(PresenceDetected, func(Event) { <-release })

	d.Emit(PresenceDetected)
	start := time.Now()
	err := d.Shutdown(20 * time.Millisecond)
	if !errors.Is(err, ErrHandlersPending) {
		t.Fatalf("Shutdown() err=%v, want ErrHandlersPending", err)
	}
	if waited := time.Since(start); waited > time.Second {
		t.Errorf("Shutdown() took %v with a 20ms grace", waited)
	}
}
