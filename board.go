package main

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

// Board is the Grove sensor board: a PIR motion sensor and an RGB LCD.  It
// owns the edge monitor and forwards rendering calls to the display.
type Board struct {
	name       string
	bridge     Bridge
	motionPin  int
	i2cBus     int
	probe      Probe
	monitor    *MotionEdgeMonitor
	dispatcher *Dispatcher

	displayMu  sync.Mutex // serialises HTTP writes and the display alert
	display    Display
	background Color
	lines      [displayLines]string

	closers []func() error
}

// BoardStatus is the snapshot served by /api/status.
type BoardStatus struct {
	Board      string    `json:"board"`
	Transport  string    `json:"transport"`
	MotionPin  int       `json:"motion_pin"`
	I2CBus     int       `json:"i2c_bus"`
	Present    bool      `json:"present"`
	Background string    `json:"background"`
	Lines      []string  `json:"lines"`
	Events     []Event   `json:"events"`
	At         time.Time `json:"at"`
}

// NewBoard opens the probe and the display for cfg through bridge.  The
// bridge must already have been initialised with InitBridge.  If the I2C bus
// cannot be opened the board still runs, logging display output instead.
func NewBoard(cfg Config, bridge Bridge, dispatcher *Dispatcher) (*Board, error) {
	motionPin := bridge.Pin(cfg.MotionPin)
	i2cBus := bridge.Pin(cfg.I2CBus)

	probe, closeProbe, err := openProbe(cfg.Probe, motionPin)
	if err != nil {
		return nil, fmt.Errorf("open motion sensor on %d: %w", motionPin, err)
	}
	closers := []func() error{closeProbe}

	var display Display
	bus, err := openI2C(i2cBus)
	if err != nil {
		slog.Warn("lcd unavailable, using log display", "bus", i2cBus, "err", err)
		display = &logDisplay{}
	} else {
		lcd, err := NewJHD1313M1(bus, cfg.LCDAddress, cfg.RGBAddress)
		if err != nil {
			bus.Close()
			closeProbe()
			return nil, err
		}
		display = lcd
		closers = append(closers, bus.Close)
	}

	b := newBoard(cfg.Board, bridge, probe, display, dispatcher)
	b.motionPin = motionPin
	b.i2cBus = i2cBus
	b.closers = closers
	slog.Info("board ready", "transport", bridge, "motion_pin", motionPin, "i2c_bus", i2cBus, "probe", cfg.Probe.Kind)
	return b, nil
}

func newBoard(name string, bridge Bridge, probe Probe, display Display, dispatcher *Dispatcher) *Board {
	b := &Board{
		name:       name,
		bridge:     bridge,
		probe:      probe,
		display:    display,
		dispatcher: dispatcher,
		background: ColorWhite,
	}
	b.monitor = NewMotionEdgeMonitor(probe, func(k EventKind) { dispatcher.Emit(k) })
	return b
}

// UpdateHardwareState polls the motion sensor once, raising PresenceDetected
// on a rising edge.
func (b *Board) UpdateHardwareState() error {
	return b.monitor.Poll()
}

// RaisePresence dispatches a PresenceDetected event as if the sensor had
// seen motion, without changing the edge monitor.
func (b *Board) RaisePresence() Event {
	return b.dispatcher.Emit(PresenceDetected)
}

// DetectMotion reads the PIR sensor directly, without edge tracking.
func (b *Board) DetectMotion() (bool, error) {
	return b.probe.Read()
}

// WriteMessage writes msg at the start of line, padded to the display width.
func (b *Board) WriteMessage(msg string, line int) error {
	if line < 0 || line >= displayLines {
		return fmt.Errorf("%w: %d", ErrInvalidLine, line)
	}
	msg = padLine(msg)

	b.displayMu.Lock()
	defer b.displayMu.Unlock()
	if err := b.display.SetCursor(line, 0); err != nil {
		return err
	}
	if err := b.display.Write(msg); err != nil {
		return err
	}
	b.lines[line] = msg
	return nil
}

// ChangeBackground sets the LCD backlight to the named colour; unknown names
// select white.
func (b *Board) ChangeBackground(name string) error {
	c := ParseColor(name)
	r, g, bl := c.RGB()

	b.displayMu.Lock()
	defer b.displayMu.Unlock()
	if err := b.display.SetColor(r, g, bl); err != nil {
		return err
	}
	b.background = c
	return nil
}

// Status returns a snapshot of the board for the API.
func (b *Board) Status() BoardStatus {
	b.displayMu.Lock()
	lines := []string{b.lines[0], b.lines[1]}
	bg := b.background.String()
	b.displayMu.Unlock()

	return BoardStatus{
		Board:      b.name,
		Transport:  b.bridge.String(),
		MotionPin:  b.motionPin,
		I2CBus:     b.i2cBus,
		Present:    b.monitor.Present(),
		Background: bg,
		Lines:      lines,
		Events:     b.dispatcher.Recent(),
		At:         time.Now(),
	}
}

// Close releases the probe connection and the I2C bus.
func (b *Board) Close() error {
	var errs []error
	for _, c := range b.closers {
		if err := c(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
