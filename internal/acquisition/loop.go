// Package acquisition drains a paced scan into rotating window files.
package acquisition

import (
	"context"
	"fmt"
	"math"
	"time"

	"go.uber.org/multierr"
	"go.uber.org/zap"

	"sleepywoodpecker/rp-scan-windows/internal/conf"
	"sleepywoodpecker/rp-scan-windows/internal/metrics"
	"sleepywoodpecker/rp-scan-windows/internal/source"
	"sleepywoodpecker/rp-scan-windows/internal/store"
)

type Config struct {
	Channels       int
	SampleRate     float64
	WindowDuration time.Duration
	PollInterval   time.Duration
	DrainTimeout   time.Duration
}

func ConfigFromSettings(s *conf.Settings) Config {
	return Config{
		Channels:       s.Channels,
		SampleRate:     s.SampleRate,
		WindowDuration: s.WindowDuration,
		PollInterval:   s.PollInterval,
		DrainTimeout:   s.DrainTimeout,
	}
}

// Loop polls a source and rotates what it reads into the store.
type Loop struct {
	src     source.Source
	store   *store.Store
	cfg     Config
	logger  *zap.Logger
	metrics *metrics.Metrics

	// Clock supplies the acquisition start used to name the first window.
	Clock func() time.Time
}

func NewLoop(src source.Source, st *store.Store, cfg Config, logger *zap.Logger, m *metrics.Metrics) *Loop {
	return &Loop{
		src:     src,
		store:   st,
		cfg:     cfg,
		logger:  logger,
		metrics: m,
		Clock:   time.Now,
	}
}

// Run starts the scan and drains it until ctx is cancelled or the source ends
// the stream. Startup faults are returned before anything is written; later
// faults only end the loop. The device is stopped and released on every path.
func (l *Loop) Run(ctx context.Context) (err error) {
	info := l.src.Info()
	l.logger.Info("[acquisition] using device", zap.String("name", info.Name), zap.String("uniqueID", info.UniqueID))

	samplesPerChannel := max(int(math.Round(l.cfg.SampleRate*l.cfg.WindowDuration.Seconds())), 1)
	scanCfg := source.ScanConfig{
		LowChannel:        0,
		HighChannel:       l.cfg.Channels - 1,
		Rate:              l.cfg.SampleRate,
		SamplesPerChannel: samplesPerChannel,
	}

	actualRate, err := l.src.Start(ctx, scanCfg)
	if err != nil {
		return multierr.Append(fmt.Errorf("starting scan: %w", err), l.src.Release())
	}
	start := l.Clock()

	writer := store.NewWriter(l.store, start, l.cfg.WindowDuration, l.logger, l.metrics)
	buffer := NewRotationBuffer(l.cfg.SampleRate, l.cfg.WindowDuration, writer, l.metrics)

	l.logger.Info("[acquisition] scan started",
		zap.Float64("requestedRate", l.cfg.SampleRate),
		zap.Float64("actualRate", actualRate),
		zap.Int("channels", l.cfg.Channels),
		zap.Int("rowsPerWindow", buffer.Threshold()),
		zap.String("dataDir", l.store.Dir()),
		zap.Time("start", start),
	)

	defer func() {
		err = multierr.Append(err, l.shutdown(buffer, writer))
	}()

	l.drain(ctx, buffer, int64(samplesPerChannel))
	return nil
}

func (l *Loop) drain(ctx context.Context, buffer *RotationBuffer, samplesPerChannel int64) {
	var consumed int64
	channels := l.cfg.Channels

	for {
		select {
		case <-ctx.Done():
			l.logger.Info("[acquisition] received shutdown signal")
			return
		default:
		}

		status, transfer, err := l.src.ScanStatus()
		if err != nil {
			l.logger.Warn("[acquisition] could not read scan status, ending stream", zap.Error(err))
			return
		}
		if status == source.StatusError {
			l.logger.Warn("[acquisition] source reported an error, ending stream")
			return
		}
		if transfer.CurrentScanCount < consumed {
			l.logger.Warn("[acquisition] scan count went backwards, ending stream",
				zap.Int64("consumed", consumed),
				zap.Int64("scanCount", transfer.CurrentScanCount),
			)
			return
		}

		if transfer.CurrentScanCount > consumed {
			// the oldest slot is the next one the device overwrites, so a full
			// window already counts as an overrun
			if behind := transfer.CurrentScanCount - consumed; behind >= samplesPerChannel {
				l.metrics.Overruns.Inc()
				l.logger.Warn("[acquisition] scan window overrun, samples lost",
					zap.Int64("lostScans", behind-samplesPerChannel+1),
				)
				consumed = transfer.CurrentScanCount - samplesPerChannel + 1
			}

			for ; consumed < transfer.CurrentScanCount; consumed++ {
				row := make(store.SampleRow, channels)
				index := int(consumed%samplesPerChannel) * channels
				if err := l.src.ReadScan(index, row); err != nil {
					l.logger.Warn("[acquisition] could not read scan, ending stream", zap.Error(err), zap.Int("index", index))
					return
				}
				buffer.Append(row)
				buffer.MaybeRotate()
			}
			continue
		}

		if status != source.StatusRunning {
			l.logger.Info("[acquisition] source finished", zap.Stringer("status", status), zap.Int64("scans", consumed))
			return
		}

		select {
		case <-ctx.Done():
			l.logger.Info("[acquisition] received shutdown signal")
			return
		case <-time.After(l.cfg.PollInterval):
		}
	}
}

func (l *Loop) shutdown(buffer *RotationBuffer, writer *store.Writer) error {
	var err error

	if status, _, statusErr := l.src.ScanStatus(); statusErr != nil || status == source.StatusRunning {
		err = multierr.Append(err, l.src.Stop())
	}
	err = multierr.Append(err, l.src.Release())

	if n := buffer.Discard(); n > 0 {
		l.logger.Info("[acquisition] discarded partial window", zap.Int("rows", n))
	}

	drainCtx, cancel := context.WithTimeout(context.Background(), l.cfg.DrainTimeout)
	defer cancel()
	if drainErr := writer.Drain(drainCtx); drainErr != nil {
		l.logger.Warn("[acquisition] window writes still in flight at exit", zap.Error(drainErr))
	}

	if err != nil {
		l.logger.Warn("[acquisition] releasing device", zap.Error(err))
	}
	return err
}
