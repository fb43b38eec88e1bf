//go:build linux

package serial

import (
	"errors"
	"os"
	"testing"
	"time"

	"github.com/creack/pty"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// openPair opens a pty and a Port on its slave side.
func openPair(t *testing.T) (*os.File, *Port) {
	t.Helper()
	master, slave, err := pty.Open()
	require.NoError(t, err)
	t.Cleanup(func() { master.Close(); slave.Close() })

	port, err := Open(Config{Device: slave.Name(), BaudRate: DefaultBaudRate})
	require.NoError(t, err)
	t.Cleanup(func() { port.Close() })
	return master, port
}

type readResult struct {
	data []byte
	err  error
}

func readAsync(p *Port) <-chan readResult {
	ch := make(chan readResult, 1)
	go func() {
		buf := make([]byte, 128)
		n, err := p.Read(buf)
		ch <- readResult{data: buf[:n], err: err}
	}()
	return ch
}

func TestPort_Read(t *testing.T) {
	master, port := openPair(t)
	results := readAsync(port)

	_, err := master.Write([]byte("Pulse Width: 12\r\n"))
	require.NoError(t, err)

	select {
	case r := <-results:
		require.NoError(t, r.err)
		assert.Contains(t, "Pulse Width: 12\r\n", string(r.data))
		assert.NotEmpty(t, r.data)
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for data")
	}
}

func TestPort_RawModeKeepsCRLF(t *testing.T) {
	master, port := openPair(t)

	_, err := master.Write([]byte("a\r\n"))
	require.NoError(t, err)

	var got []byte
	deadline := time.After(time.Second)
	for len(got) < 3 {
		select {
		case r := <-readAsync(port):
			require.NoError(t, r.err)
			got = append(got, r.data...)
		case <-deadline:
			t.Fatalf("timeout, got %q", got)
		}
	}
	assert.Equal(t, "a\r\n", string(got))
}

func TestPort_Write(t *testing.T) {
	master, port := openPair(t)

	_, err := port.Write([]byte("C,START\r\n"))
	require.NoError(t, err)

	buf := make([]byte, 9)
	n, err := master.Read(buf)
	require.NoError(t, err)
	assert.Equal(t, "C,START\r\n", string(buf[:n]))
}

func TestPort_CloseUnblocksRead(t *testing.T) {
	_, port := openPair(t)
	results := readAsync(port)

	time.Sleep(50 * time.Millisecond)
	require.NoError(t, port.Close())

	select {
	case r := <-results:
		assert.True(t, errors.Is(r.err, ErrClosed))
	case <-time.After(500 * time.Millisecond):
		t.Fatal("Read did not return after Close")
	}

	// Idempotent
	assert.NoError(t, port.Close())
}

func TestPort_ReadAfterCloseWithReusedDescriptors(t *testing.T) {
	_, port := openPair(t)
	require.NoError(t, port.Close())

	// Quiet descriptors likely to take over the numbers the port released.
	for i := 0; i < 4; i++ {
		r, w, err := os.Pipe()
		require.NoError(t, err)
		t.Cleanup(func() { r.Close(); w.Close() })
	}

	select {
	case r := <-readAsync(port):
		assert.True(t, errors.Is(r.err, ErrClosed))
	case <-time.After(500 * time.Millisecond):
		t.Fatal("Read after Close blocked")
	}
}

func TestPort_DisconnectReportsError(t *testing.T) {
	master, port := openPair(t)
	results := readAsync(port)

	require.NoError(t, master.Close())

	select {
	case r := <-results:
		require.Error(t, r.err)
		assert.False(t, errors.Is(r.err, ErrClosed))
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for error after device disconnect")
	}
}

func TestOpen_MissingDevice(t *testing.T) {
	_, err := Open(Config{Device: "/dev/does-not-exist-relay", BaudRate: DefaultBaudRate})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "/dev/does-not-exist-relay")
	assert.Contains(t, err.Error(), "no such file or directory")
}

func TestBaudToUnix_Fallback(t *testing.T) {
	assert.Equal(t, baudToUnix(115200), baudToUnix(12345))
	assert.NotEqual(t, baudToUnix(9600), baudToUnix(115200))
}
