//go:build linux && (arm || arm64) && !disablegpio

// This file provides the Raspberry Pi / single board computer implementation
// of the HAL functions using the periph.io library.  When cross-compiling for
// other platforms or when the build tag "disablegpio" is specified, hal.go is
// used instead.

package main

import (
	"fmt"
	"strconv"

	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/gpio/gpioreg"
	"periph.io/x/conn/v3/i2c"
	"periph.io/x/conn/v3/i2c/i2creg"
	"periph.io/x/host/v3"
)

// initGPIO loads the periph host drivers.  host.Init can safely be called
// multiple times; subsequent calls are no-ops.
func initGPIO() error {
	_, err := host.Init()
	return err
}

// lookupPin resolves a line by its global number.  Lines exposed by a
// sub-platform bridge are registered above 512, so the number passed here is
// already the effective one.
func lookupPin(n int) (gpio.PinIn, error) {
	if _, err := host.Init(); err != nil {
		return nil, err
	}
	p := gpioreg.ByName(fmt.Sprintf("GPIO%d", n))
	if p == nil {
		return nil, fmt.Errorf("gpio line %d not found", n)
	}
	return p, nil
}

// openI2C opens the numbered I2C bus.
func openI2C(n int) (i2c.BusCloser, error) {
	if _, err := host.Init(); err != nil {
		return nil, err
	}
	return i2creg.Open(strconv.Itoa(n))
}
