package pipeline

import (
	"strconv"
	"strings"
)

// DefaultBatchSize is the number of samples carried by one broadcast.
const DefaultBatchSize = 10

// Batch is an ordered group of samples in arrival order.
type Batch []Sample

// String renders the batch as the comma-joined wire payload, e.g. "120,7,98".
func (b Batch) String() string {
	var sb strings.Builder
	for i, s := range b {
		if i > 0 {
			sb.WriteByte(',')
		}
		sb.WriteString(strconv.Itoa(int(s)))
	}
	return sb.String()
}

// Batcher accumulates samples into fixed-size batches. It is not safe for
// concurrent use; the relay session serializes access to it.
type Batcher struct {
	size    int
	current Batch
}

func NewBatcher(size int) *Batcher {
	if size <= 0 {
		size = DefaultBatchSize
	}
	return &Batcher{size: size, current: make(Batch, 0, size)}
}

// Add appends s. When the batch reaches its size the full batch is returned
// with full=true and the accumulator starts over empty.
func (b *Batcher) Add(s Sample) (batch Batch, full bool) {
	b.current = append(b.current, s)
	if len(b.current) < b.size {
		return nil, false
	}
	batch = b.current
	b.current = make(Batch, 0, b.size)
	return batch, true
}

// Reset discards the batch in progress.
func (b *Batcher) Reset() {
	b.current = make(Batch, 0, b.size)
}

// Pending returns the number of samples waiting for a full batch.
func (b *Batcher) Pending() int {
	return len(b.current)
}

// Size returns the configured batch size.
func (b *Batcher) Size() int {
	return b.size
}
