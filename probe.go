package main

import (
	"fmt"
	"strings"

	"periph.io/x/conn/v3/gpio"
)

// Probe reads the current state of the presence sensor.
type Probe interface {
	Read() (bool, error)
}

// ProbeFunc adapts an ordinary function to the Probe interface.
type ProbeFunc func() (bool, error)

// Read calls f.
func (f ProbeFunc) Read() (bool, error) { return f() }

// Probe kinds accepted in the configuration.
const (
	ProbeGPIO   = "gpio"
	ProbeModbus = "modbus"
	ProbeStub   = "stub"
)

// gpioProbe reads a PIR sensor (BISS0001 based modules) wired to a GPIO line.
type gpioProbe struct {
	pin  gpio.PinIn
	mode string
}

// newGPIOProbe configures pin as an input.  The PIR output is push-pull, so
// the pull resistor is left alone.
func newGPIOProbe(pin gpio.PinIn, mode string) (*gpioProbe, error) {
	if err := pin.In(gpio.PullNoChange, gpio.NoEdge); err != nil {
		return nil, fmt.Errorf("configure %s as input: %w", pin.Name(), err)
	}
	return &gpioProbe{pin: pin, mode: mode}, nil
}

func (p *gpioProbe) Read() (bool, error) {
	return presenceFromLevel(p.mode, p.pin.Read() == gpio.High), nil
}

func (p *gpioProbe) String() string {
	return p.pin.Name()
}

// openProbe builds the probe described by cfg.  pin is the effective line
// number after the bridge offset has been applied.  The returned closer
// releases any connection held by the probe.
func openProbe(cfg ProbeConfig, pin int) (Probe, func() error, error) {
	noop := func() error { return nil }
	switch strings.ToLower(cfg.Kind) {
	case "", ProbeGPIO:
		p, err := lookupPin(pin)
		if err != nil {
			return nil, nil, err
		}
		gp, err := newGPIOProbe(p, cfg.Mode)
		if err != nil {
			return nil, nil, err
		}
		return gp, noop, nil
	case ProbeModbus:
		mp, err := newModbusProbe(cfg.Modbus, cfg.Mode)
		if err != nil {
			return nil, nil, err
		}
		return mp, mp.Close, nil
	case ProbeStub:
		return ProbeFunc(func() (bool, error) { return false, nil }), noop, nil
	default:
		return nil, nil, fmt.Errorf("unknown probe kind %q", cfg.Kind)
	}
}
