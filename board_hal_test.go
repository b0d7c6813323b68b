//go:build !linux || !(arm || arm64) || disablegpio

package main

import (
	"fmt"
	"strings"
	"testing"
)

func TestNewBoard_AppliesBridgeOffset(t *testing.T) {
	tests := []struct {
		name          string
		bridge        Bridge
		wantPin       int
		wantBus       int
		wantTransport string
	}{
		{"native", Bridge{Transport: TransportNative}, 4, 6, "native"},
		{"firmata", Bridge{Transport: TransportFirmata, Port: defaultFirmataPort}, 516, 518, "firmata:/dev/ttyACM0"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b, err := NewBoard(DefaultConfig(), tt.bridge, NewDispatcher("grove"))
			if err != nil {
				t.Fatalf("NewBoard() err=%v", err)
			}
			defer b.Close()

			s := b.Status()
			if s.MotionPin != tt.wantPin || s.I2CBus != tt.wantBus {
				t.Errorf("pin/bus = %d/%d, want %d/%d", s.MotionPin, s.I2CBus, tt.wantPin, tt.wantBus)
			}
			if s.Transport != tt.wantTransport {
				t.Errorf("Transport = %q, want %q", s.Transport, tt.wantTransport)
			}
			if _, ok := b.display.(*logDisplay); !ok {
				t.Errorf("display = %T, want *logDisplay without an I2C bus", b.display)
			}
			gp, ok := b.probe.(*gpioProbe)
			if !ok {
				t.Fatalf("probe = %T, want *gpioProbe", b.probe)
			}
			if name := gp.String(); name != fmt.Sprintf("GPIO%d", tt.wantPin) {
				t.Errorf("probe line = %s, want GPIO%d", name, tt.wantPin)
			}

			// The simulated line reads low: no motion, no event.
			if err := b.UpdateHardwareState(); err != nil {
				t.Fatalf("UpdateHardwareState() err=%v", err)
			}
			if s := b.Status(); s.Present || len(s.Events) != 0 {
				t.Errorf("Status() after idle poll = %+v", s)
			}
			if err := b.WriteMessage("ready", 0); err != nil {
				t.Errorf("WriteMessage() on log display err=%v", err)
			}
		})
	}
}

func TestNewBoard_ProbeError(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Probe.Kind = "camera"
	b, err := NewBoard(cfg, Bridge{Transport: TransportFirmata, Port: defaultFirmataPort}, NewDispatcher("grove"))
	if err == nil {
		b.Close()
		t.Fatal("NewBoard() with unknown probe kind succeeded")
	}
	if !strings.Contains(err.Error(), "on 516") {
		t.Errorf("error %q does not name the remapped pin", err)
	}

	cfg.Probe = ProbeConfig{Kind: ProbeModbus}
	if _, err := NewBoard(cfg, Bridge{Transport: TransportNative}, NewDispatcher("grove")); err == nil {
		t.Fatal("NewBoard() with modbus probe lacking an endpoint succeeded")
	}
}
