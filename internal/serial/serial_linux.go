//go:build linux

package serial

import (
	"os"
	"sync"

	"github.com/pkg/errors"
	"golang.org/x/sys/unix"
)

// Port is an open serial device. It is safe to call Close concurrently with Read.
type Port struct {
	file      *os.File
	fd        int
	pipeR     int // self-pipe read end, wakes a blocked poll on Close
	pipeW     int
	done      chan struct{}
	closeOnce sync.Once
	device    string

	// fdMu is held for reading around each poll and read, and for writing
	// while the descriptors are released, so a descriptor number is never
	// polled after Close has freed it.
	fdMu sync.RWMutex
}

// Open opens cfg.Device in raw mode. Errors carry the driver text, for example
// "device or resource busy" or "no such file or directory".
func Open(cfg Config) (*Port, error) {
	fd, err := unix.Open(cfg.Device, unix.O_RDWR|unix.O_NOCTTY|unix.O_NONBLOCK, 0666)
	if err != nil {
		return nil, errors.Wrapf(err, "open %s", cfg.Device)
	}

	if err := makeRaw(fd, cfg.BaudRate); err != nil {
		unix.Close(fd)
		return nil, errors.Wrapf(err, "configure %s", cfg.Device)
	}

	// Blocking again now that termios is set; reads are gated by poll.
	if err := unix.SetNonblock(fd, false); err != nil {
		unix.Close(fd)
		return nil, errors.Wrapf(err, "configure %s", cfg.Device)
	}

	pipeFds := make([]int, 2)
	if err := unix.Pipe2(pipeFds, unix.O_CLOEXEC); err != nil {
		unix.Close(fd)
		return nil, errors.Wrap(err, "pipe")
	}

	return &Port{
		file:   os.NewFile(uintptr(fd), cfg.Device),
		fd:     fd,
		pipeR:  pipeFds[0],
		pipeW:  pipeFds[1],
		done:   make(chan struct{}),
		device: cfg.Device,
	}, nil
}

func makeRaw(fd, baudRate int) error {
	termios, err := unix.IoctlGetTermios(fd, unix.TCGETS)
	if err != nil {
		return errors.Wrap(err, "get termios")
	}

	termios.Iflag &^= unix.IGNBRK | unix.BRKINT | unix.PARMRK | unix.ISTRIP | unix.INLCR | unix.IGNCR | unix.ICRNL | unix.IXON
	termios.Oflag &^= unix.OPOST
	termios.Lflag &^= unix.ECHO | unix.ECHONL | unix.ICANON | unix.ISIG | unix.IEXTEN
	termios.Cflag &^= unix.CSIZE | unix.PARENB
	termios.Cflag |= unix.CS8 | unix.CREAD | unix.CLOCAL

	termios.Cflag &^= unix.CBAUD
	termios.Cflag |= baudToUnix(baudRate)

	termios.Cc[unix.VMIN] = 1
	termios.Cc[unix.VTIME] = 0

	if err := unix.IoctlSetTermios(fd, unix.TCSETS, termios); err != nil {
		return errors.Wrap(err, "set termios")
	}
	return nil
}

// Device returns the path the port was opened with.
func (p *Port) Device() string {
	return p.device
}

// Read blocks until at least one byte is available, the device fails, or the
// port is closed. After Close it returns ErrClosed.
func (p *Port) Read(buf []byte) (int, error) {
	for {
		n, again, err := p.readOnce(buf)
		if !again {
			return n, err
		}
	}
}

// readOnce runs one poll round. again reports that nothing was ready.
func (p *Port) readOnce(buf []byte) (n int, again bool, err error) {
	p.fdMu.RLock()
	defer p.fdMu.RUnlock()

	select {
	case <-p.done:
		return 0, false, ErrClosed
	default:
	}

	pfd := []unix.PollFd{
		{Fd: int32(p.fd), Events: unix.POLLIN},
		{Fd: int32(p.pipeR), Events: unix.POLLIN},
	}
	if _, err := unix.Poll(pfd, -1); err != nil {
		if err == unix.EINTR {
			return 0, true, nil
		}
		return 0, false, errors.Wrap(err, "poll")
	}

	select {
	case <-p.done:
		return 0, false, ErrClosed
	default:
	}
	if pfd[1].Revents&(unix.POLLIN|unix.POLLNVAL) != 0 || pfd[0].Revents&unix.POLLNVAL != 0 {
		return 0, false, ErrClosed
	}
	if pfd[0].Revents&(unix.POLLIN|unix.POLLHUP|unix.POLLERR) != 0 {
		n, err = p.file.Read(buf)
		if err != nil {
			return n, false, errors.Wrapf(err, "read %s", p.device)
		}
		return n, false, nil
	}
	return 0, true, nil
}

// Write sends raw bytes to the device.
func (p *Port) Write(buf []byte) (int, error) {
	return p.file.Write(buf)
}

// Close releases the device and wakes any blocked Read. Subsequent calls are no-ops.
func (p *Port) Close() error {
	var err error
	p.closeOnce.Do(func() {
		close(p.done)
		unix.Write(p.pipeW, []byte{1})

		p.fdMu.Lock()
		defer p.fdMu.Unlock()
		err = p.file.Close()
		unix.Close(p.pipeR)
		unix.Close(p.pipeW)
	})
	return err
}

func baudToUnix(baud int) uint32 {
	switch baud {
	case 9600:
		return unix.B9600
	case 19200:
		return unix.B19200
	case 38400:
		return unix.B38400
	case 57600:
		return unix.B57600
	case 115200:
		return unix.B115200
	case 230400:
		return unix.B230400
	default:
		return unix.B115200
	}
}
