package main

import (
	"fmt"
	"time"

	"periph.io/x/conn/v3/i2c"
)

// JHD1313M1 drives the Grove RGB backlit LCD: an HD44780 compatible text
// controller and a PCA9633 backlight controller sharing one I2C bus.
type JHD1313M1 struct {
	lcd   i2c.Dev
	rgb   i2c.Dev
	sleep func(time.Duration)
}

// Text controller.
const (
	lcdCommand = 0x80 // control byte preceding a command
	lcdData    = 0x40 // control byte preceding a character

	lcdClear          = 0x01
	lcdEntryModeSet   = 0x04
	lcdEntryLeft      = 0x02
	lcdDisplayControl = 0x08
	lcdDisplayOn      = 0x04
	lcdFunctionSet    = 0x20
	lcd2Line          = 0x08
	lcdSetDDRAMAddr   = 0x80
)

// Backlight controller registers.
const (
	rgbMode1  = 0x00
	rgbMode2  = 0x01
	rgbBlue   = 0x02
	rgbGreen  = 0x03
	rgbRed    = 0x04
	rgbLEDOut = 0x08
)

// lcdRowAddr is the DDRAM address of the first column of each line.
var lcdRowAddr = [displayLines]byte{0x00, 0x40}

// NewJHD1313M1 initialises the display on bus, in two line mode with a white
// backlight.
func NewJHD1313M1(bus i2c.Bus, lcdAddr, rgbAddr uint16) (*JHD1313M1, error) {
	d := &JHD1313M1{
		lcd:   i2c.Dev{Bus: bus, Addr: lcdAddr},
		rgb:   i2c.Dev{Bus: bus, Addr: rgbAddr},
		sleep: time.Sleep,
	}
	if err := d.init(); err != nil {
		return nil, fmt.Errorf("jhd1313m1: %w", err)
	}
	return d, nil
}

func (d *JHD1313M1) init() error {
	// Power on settle time of the controller.
	d.sleep(50 * time.Millisecond)
	for _, wait := range []time.Duration{4500 * time.Microsecond, 150 * time.Microsecond, 0} {
		if err := d.command(lcdFunctionSet | lcd2Line); err != nil {
			return err
		}
		d.sleep(wait)
	}
	if err := d.command(lcdDisplayControl | lcdDisplayOn); err != nil {
		return err
	}
	if err := d.Clear(); err != nil {
		return err
	}
	if err := d.command(lcdEntryModeSet | lcdEntryLeft); err != nil {
		return err
	}

	for _, reg := range [][2]byte{{rgbMode1, 0x00}, {rgbMode2, 0x00}, {rgbLEDOut, 0xAA}} {
		if err := d.rgb.Tx(reg[:], nil); err != nil {
			return err
		}
	}
	return d.SetColor(255, 255, 255)
}

func (d *JHD1313M1) command(c byte) error {
	return d.lcd.Tx([]byte{lcdCommand, c}, nil)
}

// Clear blanks the display and homes the cursor.
func (d *JHD1313M1) Clear() error {
	if err := d.command(lcdClear); err != nil {
		return err
	}
	d.sleep(2 * time.Millisecond)
	return nil
}

// SetCursor moves the cursor to col on row.
func (d *JHD1313M1) SetCursor(row, col int) error {
	if row < 0 || row >= displayLines {
		return fmt.Errorf("%w: %d", ErrInvalidLine, row)
	}
	if col < 0 || col >= displayColumns {
		return fmt.Errorf("%w: %d", ErrInvalidColumn, col)
	}
	return d.command(lcdSetDDRAMAddr | (lcdRowAddr[row] + byte(col)))
}

// Write sends text at the current cursor position, one character per
// transaction.
func (d *JHD1313M1) Write(text string) error {
	for i := 0; i < len(text); i++ {
		if err := d.lcd.Tx([]byte{lcdData, text[i]}, nil); err != nil {
			return err
		}
	}
	return nil
}

// SetColor sets the backlight intensities.
func (d *JHD1313M1) SetColor(r, g, b uint8) error {
	for _, reg := range [][2]byte{{rgbRed, r}, {rgbGreen, g}, {rgbBlue, b}} {
		if err := d.rgb.Tx(reg[:], nil); err != nil {
			return err
		}
	}
	return nil
}
