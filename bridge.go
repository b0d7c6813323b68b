package main

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"
)

// Transport selects how the board's peripherals are reached.
type Transport string

const (
	// TransportNative talks to the host's own GPIO and I2C controllers.
	TransportNative Transport = "native"
	// TransportFirmata reaches the sensors through a microcontroller running
	// Firmata, attached over a serial port.
	TransportFirmata Transport = "firmata"
)

// bridgeOffset is added to every pin and bus number when the Firmata bridge
// is active.  Sub-platform devices are numbered from 512 upwards.
const bridgeOffset = 512

// defaultFirmataPort is where the bridge microcontroller usually enumerates.
const defaultFirmataPort = "/dev/ttyACM0"

// ErrUnknownTransport is returned by InitBridge for an unsupported transport.
var ErrUnknownTransport = errors.New("unknown transport")

// EffectiveID returns the identifier a peripheral driver must use for base.
// Identifiers are shifted by 512 when the bridge is active.
func EffectiveID(base int, bridged bool) int {
	if bridged {
		return base + bridgeOffset
	}
	return base
}

// Bridge records the transport chosen at start-up.  It is produced by
// InitBridge and handed to NewBoard so that every pin and bus lookup goes
// through the same offset rule.
type Bridge struct {
	Transport Transport
	Port      string
}

// Bridged reports whether peripherals are reached through the sub-platform.
func (b Bridge) Bridged() bool {
	return b.Transport == TransportFirmata
}

// Pin maps a logical pin or bus number to the identifier used by the drivers.
func (b Bridge) Pin(base int) int {
	return EffectiveID(base, b.Bridged())
}

// String renders the bridge for logs and the status API.
func (b Bridge) String() string {
	if b.Bridged() {
		return fmt.Sprintf("%s:%s", b.Transport, b.Port)
	}
	return string(b.Transport)
}

// ParseTransport converts a configuration value into a Transport.  An empty
// value selects the native transport.
func ParseTransport(s string) (Transport, error) {
	switch Transport(strings.ToLower(strings.TrimSpace(s))) {
	case "", TransportNative:
		return TransportNative, nil
	case TransportFirmata:
		return TransportFirmata, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownTransport, s)
	}
}

// InitBridge performs the one-time platform initialisation that must happen
// before any device object is constructed.  The host drivers are loaded and,
// for the Firmata transport, the serial port is recorded so that the
// sub-platform's remapped lines can be addressed.
func InitBridge(t Transport, port string) (Bridge, error) {
	switch t {
	case TransportNative:
		port = ""
	case TransportFirmata:
		if port == "" {
			port = defaultFirmataPort
		}
	default:
		return Bridge{}, fmt.Errorf("%w: %q", ErrUnknownTransport, t)
	}
	if err := initGPIO(); err != nil {
		return Bridge{}, fmt.Errorf("initialise host drivers: %w", err)
	}
	b := Bridge{Transport: t, Port: port}
	slog.Info("bridge initialised", "transport", b.Transport, "port", b.Port, "offset", b.Pin(0))
	return b, nil
}
