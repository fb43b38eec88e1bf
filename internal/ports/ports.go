// Package ports enumerates serial device paths available on the host.
package ports

import (
	"path/filepath"
	"sort"

	"github.com/pkg/errors"
)

// ErrScanFailed is returned when device enumeration fails.
var ErrScanFailed = errors.New("port scan failed")

// DefaultPatterns covers USB CDC/FTDI adapters and on-board UARTs on Linux,
// plus the macOS callout devices.
var DefaultPatterns = []string{
	"/dev/ttyUSB*",
	"/dev/ttyACM*",
	"/dev/ttyAMA*",
	"/dev/ttyS*",
	"/dev/cu.*",
}

// Lister returns the device paths matching a set of glob patterns.
type Lister struct {
	patterns []string
}

func NewLister(patterns ...string) *Lister {
	if len(patterns) == 0 {
		patterns = DefaultPatterns
	}
	return &Lister{patterns: patterns}
}

// List returns matching paths sorted and de-duplicated. No matches is an empty
// slice, not an error.
func (l *Lister) List() ([]string, error) {
	seen := make(map[string]bool)
	paths := make([]string, 0)
	for _, p := range l.patterns {
		matches, err := filepath.Glob(p)
		if err != nil {
			return nil, errors.Wrapf(ErrScanFailed, "pattern %q: %v", p, err)
		}
		for _, m := range matches {
			if seen[m] {
				continue
			}
			seen[m] = true
			paths = append(paths, m)
		}
	}
	sort.Strings(paths)
	return paths, nil
}
