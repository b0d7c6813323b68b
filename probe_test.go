package main

import (
	"errors"
	"testing"

	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/gpio/gpiotest"
)

func TestGPIOProbe(t *testing.T) {
	pin := &gpiotest.Pin{N: "GPIO4", Num: 4, L: gpio.Low}
	p, err := newGPIOProbe(pin, "NO")
	if err != nil {
		t.Fatalf("newGPIOProbe() err=%v", err)
	}
	if v, _ := p.Read(); v {
		t.Fatal("low level read as presence")
	}
	pin.Lock()
	pin.L = gpio.High
	pin.Unlock()
	if v, _ := p.Read(); !v {
		t.Fatal("high level not read as presence")
	}
}

func TestGPIOProbe_NormallyClosed(t *testing.T) {
	pin := &gpiotest.Pin{N: "GPIO516", Num: 516, L: gpio.Low}
	p, err := newGPIOProbe(pin, "nc")
	if err != nil {
		t.Fatalf("newGPIOProbe() err=%v", err)
	}
	if v, _ := p.Read(); !v {
		t.Fatal("NC: low level should mean presence")
	}
}

type fakeDiscrete struct {
	res  []byte
	err  error
	addr uint16
}

func (f *fakeDiscrete) ReadDiscreteInputs(address, quantity uint16) ([]byte, error) {
	f.addr = address
	return f.res, f.err
}

func TestModbusProbe(t *testing.T) {
	fd := &fakeDiscrete{res: []byte{0x01}}
	p := &modbusProbe{client: fd, address: 7, mode: "NO"}

	v, err := p.Read()
	if err != nil || !v {
		t.Fatalf("Read() = %v, %v; want true, nil", v, err)
	}
	if fd.addr != 7 {
		t.Errorf("read address %d, want 7", fd.addr)
	}

	fd.res = []byte{0x00}
	if v, _ := p.Read(); v {
		t.Error("bit 0 clear read as presence")
	}

	fd.res = nil
	if _, err := p.Read(); err == nil {
		t.Error("expected error on empty response")
	}

	boom := errors.New("timeout")
	fd.err = boom
	if _, err := p.Read(); !errors.Is(err, boom) {
		t.Errorf("Read() err=%v, want %v", err, boom)
	}
}

func TestOpenProbe(t *testing.T) {
	p, closeFn, err := openProbe(ProbeConfig{Kind: ProbeStub}, 4)
	if err != nil {
		t.Fatalf("openProbe(stub) err=%v", err)
	}
	defer closeFn()
	if v, err := p.Read(); v || err != nil {
		t.Fatalf("stub Read() = %v, %v", v, err)
	}

	if _, _, err := openProbe(ProbeConfig{Kind: "camera"}, 4); err == nil {
		t.Fatal("expected error for unknown probe kind")
	}
	if _, _, err := openProbe(ProbeConfig{Kind: ProbeModbus}, 4); err == nil {
		t.Fatal("expected error for modbus probe without endpoint")
	}
}

func TestPresenceFromLevel(t *testing.T) {
	tests := []struct {
		mode string
		high bool
		want bool
	}{
		{"NO", true, true},
		{"NO", false, false},
		{"NC", true, false},
		{"NC", false, true},
		{"", true, true},
		{"weird", true, true},
	}
	for _, tt := range tests {
		if got := presenceFromLevel(tt.mode, tt.high); got != tt.want {
			t.Errorf("presenceFromLevel(%q, %v) = %v, want %v", tt.mode, tt.high, got, tt.want)
		}
	}
}
