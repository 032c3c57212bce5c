package acquisition

import (
	"math"
	"time"

	"sleepywoodpecker/rp-scan-windows/internal/metrics"
	"sleepywoodpecker/rp-scan-windows/internal/store"
)

// Rotator takes ownership of a full buffer. The returned channel is closed once
// the rows have been copied and the caller may reuse them.
type Rotator interface {
	Rotate(rows []store.SampleRow) <-chan struct{}
}

// RotationBuffer accumulates sample rows for one window. It belongs to the
// acquisition goroutine and is not safe for concurrent use.
type RotationBuffer struct {
	rows      []store.SampleRow
	rate      float64
	threshold int
	rotator   Rotator
	metrics   *metrics.Metrics
}

func NewRotationBuffer(rate float64, window time.Duration, rotator Rotator, m *metrics.Metrics) *RotationBuffer {
	threshold := max(int(math.Round(rate*window.Seconds())), 1)
	return &RotationBuffer{
		rows:      make([]store.SampleRow, 0, threshold),
		rate:      rate,
		threshold: threshold,
		rotator:   rotator,
		metrics:   m,
	}
}

// Append adds one row. The row must not be modified afterwards.
func (b *RotationBuffer) Append(row store.SampleRow) {
	b.rows = append(b.rows, row)
	b.metrics.RowsAppended.Inc()
}

func (b *RotationBuffer) Len() int {
	return len(b.rows)
}

// Duration is the span of samples held, derived from the row count.
func (b *RotationBuffer) Duration() time.Duration {
	return time.Duration(float64(len(b.rows)) / b.rate * float64(time.Second))
}

// Threshold is the number of rows that make up one window.
func (b *RotationBuffer) Threshold() int {
	return b.threshold
}

// MaybeRotate hands the buffer off once it holds a full window. It blocks only
// until the rotator has copied the rows, never on file I/O.
func (b *RotationBuffer) MaybeRotate() bool {
	if len(b.rows) < b.threshold {
		return false
	}

	begin := time.Now()
	<-b.rotator.Rotate(b.rows)
	b.metrics.HandoffWait.Observe(time.Since(begin).Seconds())
	b.metrics.Rotations.Inc()

	clear(b.rows)
	b.rows = b.rows[:0]
	return true
}

// Discard drops whatever has not been rotated yet and reports how many rows that was.
func (b *RotationBuffer) Discard() int {
	n := len(b.rows)
	clear(b.rows)
	b.rows = b.rows[:0]
	return n
}
