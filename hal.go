//go:build !linux || !(arm || arm64) || disablegpio

package main

// This file is the desktop hardware abstraction layer.  It returns fixed
// values so that the board service, its HTTP API and the alert handlers can
// be run and tested on a machine without the sensor board attached.  The
// periph.io implementation lives in hal_rpi.go.

import (
	"errors"
	"fmt"

	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/gpio/gpiotest"
	"periph.io/x/conn/v3/i2c"
)

// errNoI2C is returned by openI2C when the build has no I2C support.
var errNoI2C = errors.New("i2c not available in this build")

// initGPIO does nothing in the stub implementation.
func initGPIO() error {
	return nil
}

// lookupPin returns a simulated pin that always reads low (no motion).
func lookupPin(n int) (gpio.PinIn, error) {
	return &gpiotest.Pin{N: fmt.Sprintf("GPIO%d", n), Num: n, L: gpio.Low}, nil
}

// openI2C always fails; the board falls back to a logging display.
func openI2C(n int) (i2c.BusCloser, error) {
	return nil, errNoI2C
}
