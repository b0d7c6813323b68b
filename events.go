package main

import (
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
)

// EventKind identifies a hardware event raised by the board.
type EventKind string

// PresenceDetected is raised on the rising edge of the motion sensor.
const PresenceDetected EventKind = "presence_detected"

// recentEvents bounds the history kept for the status API.
const recentEvents = 50

// Event is one occurrence of a hardware event, as delivered to handlers.
type Event struct {
	ID    string    `json:"id"`
	Kind  EventKind `json:"kind"`
	Board string    `json:"board"`
	At    time.Time `json:"at"`
}

// Handler receives dispatched events.
type Handler func(Event)

// Dispatcher is the registry of event handlers for a board.  Emit is
// fire-and-forget: each handler runs on its own goroutine so that slow
// handlers (SMTP, MQTT) never hold up the poll loop.
type Dispatcher struct {
	board string
	now   func() time.Time

	mu       sync.RWMutex
	handlers map[EventKind][]Handler
	recent   []Event
	closed   bool

	// wg.Add is only called under mu while the dispatcher is open.
	wg sync.WaitGroup
}

// ErrHandlersPending is returned by Shutdown when handlers were still running
// at the deadline.
var ErrHandlersPending = errors.New("alert handlers still running")

// NewDispatcher returns an empty registry for the named board.
func NewDispatcher(board string) *Dispatcher {
	return &Dispatcher{
		board:    board,
		now:      time.Now,
		handlers: make(map[EventKind][]Handler),
	}
}

// Register adds h to the handlers invoked for kind.
func (d *Dispatcher) Register(kind EventKind, h Handler) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.handlers[kind] = append(d.handlers[kind], h)
}

// Emit stamps a new event of the given kind and hands it to every handler
// registered for that kind.  After Shutdown the event is still recorded but
// no handler is started.
func (d *Dispatcher) Emit(kind EventKind) Event {
	ev := Event{
		ID:    uuid.NewString(),
		Kind:  kind,
		Board: d.board,
		At:    d.now(),
	}

	d.mu.Lock()
	d.recent = append(d.recent, ev)
	if len(d.recent) > recentEvents {
		d.recent = d.recent[len(d.recent)-recentEvents:]
	}
	var handlers []Handler
	if !d.closed {
		handlers = append(handlers, d.handlers[kind]...)
		d.wg.Add(len(handlers))
	}
	closed := d.closed
	d.mu.Unlock()

	if closed {
		slog.Warn("hardware event after shutdown, handlers skipped", "kind", ev.Kind, "id", ev.ID)
		return ev
	}
	slog.Info("hardware event", "kind", ev.Kind, "id", ev.ID, "handlers", len(handlers))
	for _, h := range handlers {
		go func(h Handler) {
			defer d.wg.Done()
			h(ev)
		}(h)
	}
	return ev
}

// Recent returns up to the last 50 events, oldest first.
func (d *Dispatcher) Recent() []Event {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return append([]Event(nil), d.recent...)
}

// Wait blocks until every handler started so far has returned.  Callers
// must not Emit concurrently; use Shutdown when the poll loop may still run.
func (d *Dispatcher) Wait() {
	d.wg.Wait()
}

// Shutdown stops handing events to handlers and waits up to grace for the
// running ones to return.  A handler blocked past grace is abandoned and
// ErrHandlersPending is returned.
func (d *Dispatcher) Shutdown(grace time.Duration) error {
	d.mu.Lock()
	d.closed = true
	d.mu.Unlock()

	done := make(chan struct{})
	go func() {
		d.wg.Wait()
		close(done)
	}()
	t := time.NewTimer(grace)
	defer t.Stop()
	select {
	case <-done:
		return nil
	case <-t.C:
		return ErrHandlersPending
	}
}
