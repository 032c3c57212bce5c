package view

import (
	"context"
	"sync"

	"github.com/spf13/afero"
	"go.uber.org/zap"

	"sleepywoodpecker/rp-scan-windows/internal/store"
)

// OverlayFrame holds every channel of one window for a stacked plot.
type OverlayFrame struct {
	File   store.WindowFile
	Series []store.ChannelSeries
	Stats  []Stats
}

// Overlay decodes all channels at once and logs a one-line summary per tick.
type Overlay struct {
	fs           afero.Fs
	channelCount int
	logger       *zap.Logger

	mu     sync.RWMutex
	latest OverlayFrame
}

func NewOverlay(fs afero.Fs, channelCount int, logger *zap.Logger) *Overlay {
	return &Overlay{fs: fs, channelCount: channelCount, logger: logger}
}

func (v *Overlay) Name() string {
	return "overlay"
}

func (v *Overlay) OnRefresh(ctx context.Context, file store.WindowFile) error {
	series, err := store.DecodeFile(v.fs, file, v.channelCount)
	if err != nil {
		return err
	}

	frame := OverlayFrame{File: file, Series: series, Stats: make([]Stats, len(series))}
	rms := make([]float64, len(series))
	for c, s := range series {
		frame.Stats[c] = summarize(s)
		rms[c] = frame.Stats[c].RMS
	}

	v.mu.Lock()
	v.latest = frame
	v.mu.Unlock()

	v.logger.Info("[view] window displayed",
		zap.String("file", file.Name),
		zap.Int("rows", frame.Stats[0].Samples),
		zap.Float64s("rms", rms),
	)
	return nil
}

func (v *Overlay) Latest() OverlayFrame {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return v.latest
}
