// Package serial provides raw, killable access to a serial device.
//
// A Port is configured for 8N1 raw mode at the requested baud rate and
// implements io.ReadCloser. Close unblocks any Read in progress, which lets the
// relay tear a connection down while its reader goroutine is parked waiting
// for bytes.
//
// Only Linux is supported; on other platforms Open returns ErrUnsupported.
package serial

import (
	"errors"
)

// DefaultBaudRate matches the firmware of the pulse width sensor.
const DefaultBaudRate = 115200

var (
	// ErrClosed is returned by Read after Close has been called.
	ErrClosed = errors.New("serial port closed")
	// ErrUnsupported is returned by Open on platforms without termios support.
	ErrUnsupported = errors.New("serial ports are not supported on this platform")
)

// Config holds parameters for opening a serial port.
type Config struct {
	Device   string
	BaudRate int
}
