//go:build !linux

package serial

// Port is unavailable on this platform.
type Port struct{}

func Open(cfg Config) (*Port, error) {
	return nil, ErrUnsupported
}

func (p *Port) Device() string { return "" }
func (p *Port) Read(buf []byte) (int, error) { return 0, ErrUnsupported }
func (p *Port) Write(buf []byte) (int, error) { return 0, ErrUnsupported }
func (p *Port) Close() error { return nil }
