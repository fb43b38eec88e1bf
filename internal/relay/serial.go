package relay

import (
	"io"

	"pulse_relay/internal/serial"
)

// SerialOpener opens real serial devices at the given baud rate.
func SerialOpener(baudRate int) OpenerFunc {
	return func(path string) (io.ReadCloser, error) {
		port, err := serial.Open(serial.Config{Device: path, BaudRate: baudRate})
		if err != nil {
			return nil, err
		}
		return port, nil
	}
}
