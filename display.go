package main

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"
)

// displayColumns is the width of one LCD line.
const displayColumns = 16

// displayLines is the number of lines on the LCD.
const displayLines = 2

// ErrInvalidLine is returned when a message targets a line the LCD lacks.
var ErrInvalidLine = errors.New("invalid display line")

// ErrInvalidColumn is returned when the cursor is placed past either edge.
var ErrInvalidColumn = errors.New("invalid display column")

// Display is the rendering surface of the board.  The board only passes text
// and colours through; cursor handling and the bus protocol belong to the
// driver.
type Display interface {
	SetCursor(row, col int) error
	Write(text string) error
	SetColor(r, g, b uint8) error
}

// Color is one of the fixed background colours of the LCD.
type Color int

const (
	ColorWhite Color = iota
	ColorRed
	ColorBlue
)

// ParseColor maps a colour name to a Color.  Unknown names select white.
func ParseColor(name string) Color {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "red":
		return ColorRed
	case "blue":
		return ColorBlue
	default:
		return ColorWhite
	}
}

// RGB returns the backlight intensities for c.
func (c Color) RGB() (r, g, b uint8) {
	switch c {
	case ColorRed:
		return 255, 0, 0
	case ColorBlue:
		return 0, 0, 255
	default:
		return 255, 255, 255
	}
}

func (c Color) String() string {
	switch c {
	case ColorRed:
		return "red"
	case ColorBlue:
		return "blue"
	default:
		return "white"
	}
}

// padLine left-justifies msg to the display width so that a shorter message
// overwrites whatever was on the line before.  Longer messages are left as is.
func padLine(msg string) string {
	if n := len(msg); n < displayColumns {
		return msg + strings.Repeat(" ", displayColumns-n)
	}
	return msg
}

// logDisplay stands in for the LCD when no I2C bus is available.
type logDisplay struct {
	row int
}

func (d *logDisplay) SetCursor(row, col int) error {
	if row < 0 || row >= displayLines {
		return fmt.Errorf("%w: %d", ErrInvalidLine, row)
	}
	if col < 0 || col >= displayColumns {
		return fmt.Errorf("%w: %d", ErrInvalidColumn, col)
	}
	d.row = row
	return nil
}

func (d *logDisplay) Write(text string) error {
	slog.Info("display", "line", d.row, "text", strings.TrimRight(text, " "))
	return nil
}

func (d *logDisplay) SetColor(r, g, b uint8) error {
	slog.Info("display background", "r", r, "g", g, "b", b)
	return nil
}
