package source

import (
	"context"
	"math"
	"math/rand/v2"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
)

const (
	simAmplitude   = 2.0
	simNoise       = 0.05
	simMaxInterval = 5 * time.Millisecond
)

// Simulator is a paced source generating one sine per channel plus noise.
// Channel c oscillates at (c+1) * rate/32 Hz.
type Simulator struct {
	info   DeviceInfo
	logger *zap.Logger

	// MaxScans ends the stream (status goes Idle) after that many scans; 0 runs until Stop.
	MaxScans int64

	status atomic.Int32
	window *ScanWindow
	cfg    ScanConfig

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

func NewSimulator(channels int, logger *zap.Logger) *Simulator {
	return &Simulator{
		info: DeviceInfo{
			Name:     "simulated paced scan",
			UniqueID: "SIM0",
			HasPacer: true,
			Channels: map[InputMode]int{SingleEnded: channels, Differential: channels / 2},
		},
		logger: logger,
	}
}

func (s *Simulator) Info() DeviceInfo {
	return s.info
}

func (s *Simulator) Start(ctx context.Context, cfg ScanConfig) (float64, error) {
	cfg, err := ValidateScan(s.info, cfg)
	if err != nil {
		return 0, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.cancel != nil {
		s.cancel()
		<-s.done
	}

	s.cfg = cfg
	s.window = NewScanWindow(cfg.ChannelCount(), cfg.SamplesPerChannel)

	runCtx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.done = make(chan struct{})
	s.status.Store(int32(StatusRunning))

	go s.run(runCtx, s.window, s.done)

	s.logger.Info("[source] simulated scan started",
		zap.Int("lowChannel", cfg.LowChannel),
		zap.Int("highChannel", cfg.HighChannel),
		zap.Stringer("mode", cfg.Mode),
		zap.Float64("rate", cfg.Rate),
		zap.Int("samplesPerChannel", cfg.SamplesPerChannel),
	)
	return cfg.Rate, nil
}

func (s *Simulator) run(ctx context.Context, window *ScanWindow, done chan<- struct{}) {
	defer close(done)

	period := time.Duration(float64(time.Second) / s.cfg.Rate)
	interval := max(min(period, simMaxInterval), time.Nanosecond)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	channels := s.cfg.ChannelCount()
	scan := make([]float64, channels)
	start := time.Now()
	var written int64

	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			due := int64(now.Sub(start).Seconds() * s.cfg.Rate)
			if s.MaxScans > 0 && due > s.MaxScans {
				due = s.MaxScans
			}
			for ; written < due; written++ {
				t := float64(written) / s.cfg.Rate
				for c := range scan {
					freq := float64(s.cfg.LowChannel+c+1) * s.cfg.Rate / 32
					scan[c] = simAmplitude*math.Sin(2*math.Pi*freq*t+float64(c)*math.Pi/8) +
						simNoise*(rand.Float64()-0.5)
				}
				window.WriteScan(scan)
			}
			if s.MaxScans > 0 && written >= s.MaxScans {
				s.status.Store(int32(StatusIdle))
				return
			}
		}
	}
}

func (s *Simulator) ScanStatus() (Status, TransferStatus, error) {
	s.mu.Lock()
	window := s.window
	s.mu.Unlock()

	if window == nil {
		return StatusIdle, TransferStatus{}, nil
	}
	return Status(s.status.Load()), window.Transfer(), nil
}

func (s *Simulator) ReadScan(index int, dst []float64) error {
	s.mu.Lock()
	window := s.window
	s.mu.Unlock()

	if window == nil {
		return ErrNotRunning
	}
	return window.ReadScan(index, dst)
}

func (s *Simulator) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.cancel == nil {
		return nil
	}
	s.cancel()
	<-s.done
	s.cancel = nil
	s.status.Store(int32(StatusIdle))
	s.logger.Info("[source] simulated scan stopped")
	return nil
}

func (s *Simulator) Release() error {
	return s.Stop()
}
