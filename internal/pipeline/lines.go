package pipeline

import "strings"

// DefaultDelimiter terminates each record on the device wire.
const DefaultDelimiter = "\r\n"

// LineExtractor splits an unbounded byte stream into delimiter-terminated lines.
// Bytes after the last delimiter are held until more data arrives. A
// LineExtractor belongs to a single device connection and is not safe for
// concurrent use.
type LineExtractor struct {
	delim   string
	pending string
}

func NewLineExtractor(delim string) *LineExtractor {
	if delim == "" {
		delim = DefaultDelimiter
	}
	return &LineExtractor{delim: delim}
}

// Feed appends chunk to the held data and calls emit once per complete line,
// in stream order, without the delimiter.
func (e *LineExtractor) Feed(chunk []byte, emit func(line string)) {
	e.pending += string(chunk)
	for {
		idx := strings.Index(e.pending, e.delim)
		if idx < 0 {
			return
		}
		line := e.pending[:idx]
		e.pending = e.pending[idx+len(e.delim):]
		emit(line)
	}
}

// Pending returns the number of buffered bytes not yet terminated by a delimiter.
func (e *LineExtractor) Pending() int {
	return len(e.pending)
}
