package pipeline

import (
	"regexp"
	"strconv"
)

var pulseWidthPattern = regexp.MustCompile(`Pulse Width:\s*(\d+)`)

// Sample is a single integer measurement read from the device.
type Sample int

// ParseSample extracts the pulse width from a line. Lines without the pattern,
// or whose digits overflow an int, report ok=false and are meant to be dropped.
func ParseSample(line string) (Sample, bool) {
	m := pulseWidthPattern.FindStringSubmatch(line)
	if m == nil {
		return 0, false
	}
	v, err := strconv.Atoi(m[1])
	if err != nil {
		return 0, false
	}
	return Sample(v), true
}
