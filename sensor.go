package main

import "strings"

// presenceFromLevel interprets the raw logic level of the motion input
// according to its wiring mode.  Most PIR modules drive their output high on
// motion (normally open, "NO").  Modules wired through a normally closed relay
// ("NC") pull the line low instead.  Any unrecognised mode defaults to NO
// semantics.
func presenceFromLevel(mode string, high bool) bool {
	switch strings.ToUpper(mode) {
	case "NC":
		// Normally closed: low means motion
		return !high
	case "NO":
		return high
	default:
		return high
	}
}

// validSensorMode reports whether mode is one presenceFromLevel understands.
func validSensorMode(mode string) bool {
	switch strings.ToUpper(mode) {
	case "", "NO", "NC":
		return true
	}
	return false
}
