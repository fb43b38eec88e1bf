package relay

import (
	"fmt"

	"github.com/pkg/errors"
)

// ErrOpenFailed matches any *OpenError with errors.Is.
var ErrOpenFailed = errors.New("device open failed")

// OpenError reports that the requested device could not be opened. Its message
// embeds the driver error text so the operator can act on it.
type OpenError struct {
	Path string
	Err  error
}

func (e *OpenError) Error() string {
	return fmt.Sprintf("connection failed (port busy or unavailable): %s: %v", e.Path, e.Err)
}

func (e *OpenError) Unwrap() error {
	return e.Err
}

func (e *OpenError) Is(target error) bool {
	return target == ErrOpenFailed
}
