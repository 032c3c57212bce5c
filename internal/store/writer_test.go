package store

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"go.uber.org/zap"

	"sleepywoodpecker/rp-scan-windows/internal/metrics"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

// gatedFs holds every file creation until gate is closed.
type gatedFs struct {
	afero.Fs
	gate chan struct{}
}

func (g *gatedFs) OpenFile(name string, flag int, perm os.FileMode) (afero.File, error) {
	<-g.gate
	return g.Fs.OpenFile(name, flag, perm)
}

func newTestWriter(t *testing.T, fs afero.Fs, start time.Time) (*Writer, *metrics.Metrics) {
	t.Helper()
	if exists, _ := afero.DirExists(fs, "/data"); !exists {
		require.NoError(t, fs.MkdirAll("/data", 0755))
	}
	m := metrics.New()
	return NewWriter(&Store{fs: fs, dir: "/data"}, start, 2*time.Second, zap.NewNop(), m), m
}

func TestRotateSnapshotIsIsolated(t *testing.T) {
	base := afero.NewMemMapFs()
	gated := &gatedFs{Fs: base, gate: make(chan struct{})}
	w, _ := newTestWriter(t, gated, time.Unix(100, 0))

	rows := []SampleRow{{1, 2}, {3, 4}}
	<-w.Rotate(rows)

	// the write is still blocked; reuse the buffer the way the acquisition loop does
	rows[0][0] = 99
	rows = rows[:0]
	rows = append(rows, SampleRow{7, 7})
	assert.Len(t, rows, 1)

	close(gated.gate)
	require.NoError(t, w.Drain(context.Background()))

	data, err := afero.ReadFile(base, "/data/0000000100.000000.txt")
	require.NoError(t, err)
	assert.Equal(t, "1,2\n3,4\n", string(data))
}

func TestRotateAdvancesStartByWindow(t *testing.T) {
	fs := afero.NewMemMapFs()
	w, m := newTestWriter(t, fs, time.Unix(100, 0))

	for range 3 {
		<-w.Rotate([]SampleRow{{1}})
	}
	require.NoError(t, w.Drain(context.Background()))

	assert.Equal(t, time.Unix(106, 0), w.Start())
	files, err := List(fs, "/data")
	require.NoError(t, err)
	require.Len(t, files, 3)
	assert.Equal(t, "0000000100.000000.txt", files[0].Name)
	assert.Equal(t, "0000000102.000000.txt", files[1].Name)
	assert.Equal(t, "0000000104.000000.txt", files[2].Name)
	assert.Equal(t, 3.0, testutil.ToFloat64(m.WindowWrites.WithLabelValues("ok")))
}

func TestRotateFailureIsContained(t *testing.T) {
	base := afero.NewMemMapFs()
	require.NoError(t, base.MkdirAll("/data", 0755))
	w, m := newTestWriter(t, afero.NewReadOnlyFs(base), time.Unix(100, 0))

	select {
	case <-w.Rotate([]SampleRow{{1, 2}}):
	case <-time.After(time.Second):
		t.Fatal("handoff not signalled")
	}
	require.NoError(t, w.Drain(context.Background()))

	assert.Equal(t, 1.0, testutil.ToFloat64(m.WindowWrites.WithLabelValues("error")))
	assert.Equal(t, 0.0, testutil.ToFloat64(m.WindowWrites.WithLabelValues("ok")))
	files, err := List(base, "/data")
	require.NoError(t, err)
	assert.Empty(t, files)
	// the failed window still consumes its time slot
	assert.Equal(t, time.Unix(102, 0), w.Start())
}

func TestDrainGivesUp(t *testing.T) {
	gated := &gatedFs{Fs: afero.NewMemMapFs(), gate: make(chan struct{})}
	w, _ := newTestWriter(t, gated, time.Unix(0, 0))

	<-w.Rotate([]SampleRow{{1}})

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, w.Drain(ctx), context.DeadlineExceeded)

	close(gated.gate)
	require.NoError(t, w.Drain(context.Background()))
}
