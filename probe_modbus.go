package main

import (
	"errors"
	"fmt"
	"time"

	"github.com/goburrow/modbus"
)

// discreteReader is the part of modbus.Client used by modbusProbe.
type discreteReader interface {
	ReadDiscreteInputs(address, quantity uint16) ([]byte, error)
}

// modbusProbe reads the presence bit from a discrete input (FC 2) of a remote
// Modbus TCP I/O module.  Useful when the PIR is wired into a PLC or an I/O
// block rather than directly into the board.
type modbusProbe struct {
	handler *modbus.TCPClientHandler
	client  discreteReader
	address uint16
	mode    string
}

// newModbusProbe connects to the module.  The connection is made once at
// start-up so that a misconfigured endpoint fails fast.
func newModbusProbe(cfg ModbusProbeConfig, mode string) (*modbusProbe, error) {
	if cfg.Endpoint == "" {
		return nil, errors.New("modbus probe: endpoint required")
	}
	h := modbus.NewTCPClientHandler(cfg.Endpoint)
	h.SlaveId = cfg.UnitID
	h.Timeout = cfg.Timeout
	if h.Timeout <= 0 {
		h.Timeout = time.Second
	}
	if err := h.Connect(); err != nil {
		return nil, fmt.Errorf("modbus probe: connect %s: %w", cfg.Endpoint, err)
	}
	return &modbusProbe{
		handler: h,
		client:  modbus.NewClient(h),
		address: cfg.Address,
		mode:    mode,
	}, nil
}

func (p *modbusProbe) Read() (bool, error) {
	res, err := p.client.ReadDiscreteInputs(p.address, 1)
	if err != nil {
		return false, fmt.Errorf("modbus probe: read input %d: %w", p.address, err)
	}
	if len(res) == 0 {
		return false, fmt.Errorf("modbus probe: empty response for input %d", p.address)
	}
	return presenceFromLevel(p.mode, res[0]&0x01 != 0), nil
}

// Close drops the TCP connection.
func (p *modbusProbe) Close() error {
	if p == nil || p.handler == nil {
		return nil
	}
	return p.handler.Close()
}
