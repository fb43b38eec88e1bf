package ports

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func touch(t *testing.T, dir, name string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, nil, 0o600))
	return path
}

func TestLister_List(t *testing.T) {
	dir := t.TempDir()
	usb1 := touch(t, dir, "ttyUSB1")
	usb0 := touch(t, dir, "ttyUSB0")
	acm := touch(t, dir, "ttyACM0")
	touch(t, dir, "console")

	l := NewLister(filepath.Join(dir, "ttyUSB*"), filepath.Join(dir, "ttyACM*"), filepath.Join(dir, "tty*"))
	paths, err := l.List()
	require.NoError(t, err)

	assert.Equal(t, []string{acm, usb0, usb1}, paths)
}

func TestLister_NoMatches(t *testing.T) {
	l := NewLister(filepath.Join(t.TempDir(), "ttyUSB*"))
	paths, err := l.List()
	require.NoError(t, err)
	assert.NotNil(t, paths)
	assert.Empty(t, paths)
}

func TestLister_BadPattern(t *testing.T) {
	l := NewLister("[")
	_, err := l.List()
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrScanFailed))
}

func TestNewLister_Defaults(t *testing.T) {
	assert.Equal(t, DefaultPatterns, NewLister().patterns)
}
