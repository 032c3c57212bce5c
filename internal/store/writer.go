package store

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"sleepywoodpecker/rp-scan-windows/internal/metrics"
)

// Writer persists rotated buffers. It owns the nominal start of the current
// window and advances it by exactly one window per rotation, so file names stay
// evenly spaced whatever the wall clock does.
//
// Rotate must be called from a single goroutine (the acquisition loop).
type Writer struct {
	store   *Store
	window  time.Duration
	start   time.Time
	logger  *zap.Logger
	metrics *metrics.Metrics
	wg      sync.WaitGroup
}

func NewWriter(store *Store, start time.Time, window time.Duration, logger *zap.Logger, m *metrics.Metrics) *Writer {
	return &Writer{
		store:   store,
		window:  window,
		start:   start,
		logger:  logger,
		metrics: m,
	}
}

// Start is the nominal start of the window currently being filled.
func (w *Writer) Start() time.Time {
	return w.start
}

// Rotate hands rows to a new persistence task and returns the handoff signal.
// The channel is closed as soon as the task holds its own copy of rows; after
// that the caller may reuse rows freely. The file write happens afterwards and
// its failure is only logged.
func (w *Writer) Rotate(rows []SampleRow) <-chan struct{} {
	name := WindowName(w.start)
	w.start = w.start.Add(w.window)

	handoff := make(chan struct{})
	w.wg.Add(1)
	go w.persist(name, rows, handoff)
	return handoff
}

func (w *Writer) persist(name string, rows []SampleRow, handoff chan<- struct{}) {
	defer w.wg.Done()

	snapshot := cloneRows(rows)
	close(handoff)

	begin := time.Now()
	if err := w.store.Write(name, snapshot); err != nil {
		w.metrics.WindowWrites.WithLabelValues("error").Inc()
		w.logger.Error("[writer] window dropped",
			zap.String("file", name),
			zap.Int("rows", len(snapshot)),
			zap.Error(err),
		)
		return
	}

	w.metrics.WindowWrites.WithLabelValues("ok").Inc()
	w.metrics.WindowWriteDuration.Observe(time.Since(begin).Seconds())
	w.logger.Debug("[writer] window written",
		zap.String("file", name),
		zap.Int("rows", len(snapshot)),
		zap.Duration("took", time.Since(begin)),
	)
}

// Drain waits for in-flight writes until they finish or ctx is done.
func (w *Writer) Drain(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		w.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		w.logger.Warn("[writer] gave up waiting for in-flight windows", zap.Error(ctx.Err()))
		return ctx.Err()
	}
}

func cloneRows(rows []SampleRow) []SampleRow {
	clone := make([]SampleRow, len(rows))
	for i, row := range rows {
		clone[i] = append(SampleRow(nil), row...)
	}
	return clone
}
