package view

import (
	"context"
	"fmt"
	"sync"

	"github.com/spf13/afero"
	"go.uber.org/zap"

	"sleepywoodpecker/rp-scan-windows/internal/metrics"
	"sleepywoodpecker/rp-scan-windows/internal/store"
)

// TimeSeriesFrame is what a voltage/time plot of one channel needs.
type TimeSeriesFrame struct {
	File   store.WindowFile
	Series store.ChannelSeries
	Stats  Stats
}

type TimeSeries struct {
	title        string
	fs           afero.Fs
	channel      int
	channelCount int
	logger       *zap.Logger
	metrics      *metrics.Metrics

	mu     sync.RWMutex
	latest TimeSeriesFrame
}

func NewTimeSeries(fs afero.Fs, channel, channelCount int, logger *zap.Logger, m *metrics.Metrics) *TimeSeries {
	return &TimeSeries{
		title:        fmt.Sprintf("Channel %d", channel),
		fs:           fs,
		channel:      channel,
		channelCount: channelCount,
		logger:       logger,
		metrics:      m,
	}
}

func (v *TimeSeries) Name() string {
	return "timeseries-" + channelLabel(v.channel)
}

func (v *TimeSeries) OnRefresh(ctx context.Context, file store.WindowFile) error {
	series, err := store.DecodeChannel(v.fs, file, v.channelCount, v.channel)
	if err != nil {
		return err
	}

	frame := TimeSeriesFrame{File: file, Series: series, Stats: summarize(series)}
	v.metrics.ChannelRMS.WithLabelValues(channelLabel(v.channel)).Set(frame.Stats.RMS)

	v.mu.Lock()
	v.latest = frame
	v.mu.Unlock()

	v.logger.Debug("[view] time series updated",
		zap.String("title", v.title),
		zap.String("file", file.Name),
		zap.Int("samples", frame.Stats.Samples),
		zap.Float64("rms", frame.Stats.RMS),
	)
	return nil
}

func (v *TimeSeries) Latest() TimeSeriesFrame {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return v.latest
}
