package source

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"go.uber.org/multierr"
	"go.uber.org/zap"

	"sleepywoodpecker/rp-scan-windows/internal/processing"
	rserial "sleepywoodpecker/rp-scan-windows/internal/rSerial"
)

const messageQueueLength = 20

// Serial is a board streaming framed packets of eight readings over a serial
// link. The board paces itself, so the scan rate is whatever it was flashed with.
type Serial struct {
	port     rserial.Port
	portName string
	logger   *zap.Logger

	status atomic.Int32
	window *ScanWindow

	mu     sync.Mutex
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func NewSerial(port rserial.Port, portName string, logger *zap.Logger) *Serial {
	return &Serial{
		port:     port,
		portName: portName,
		logger:   logger,
	}
}

func (s *Serial) Info() DeviceInfo {
	return DeviceInfo{
		Name:     "serial board",
		UniqueID: s.portName,
		HasPacer: true,
		Channels: map[InputMode]int{SingleEnded: processing.NumReadingsPerPacket},
	}
}

func (s *Serial) Start(ctx context.Context, cfg ScanConfig) (float64, error) {
	cfg, err := ValidateScan(s.Info(), cfg)
	if err != nil {
		return 0, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.cancel != nil {
		return 0, fmt.Errorf("scan already running on %s", s.portName)
	}

	window := NewScanWindow(cfg.ChannelCount(), cfg.SamplesPerChannel)
	queue := make(chan []byte, messageQueueLength)
	reader := rserial.NewRSerial(s.port, s.portName, queue, s.logger, processing.RawPacketSize, processing.StopSequence)
	processor := processing.NewProcessor(queue, s.logger, window, cfg.LowChannel, cfg.HighChannel)

	runCtx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.window = window
	s.status.Store(int32(StatusRunning))

	s.wg.Add(2)
	go func() {
		defer s.wg.Done()
		reader.Run(runCtx)
	}()
	go func() {
		defer s.wg.Done()
		processor.Run(runCtx)
		// queue closed: the port went away or we were stopped
		s.status.CompareAndSwap(int32(StatusRunning), int32(StatusIdle))
	}()

	s.logger.Info("[source] serial scan started",
		zap.String("portName", s.portName),
		zap.Int("lowChannel", cfg.LowChannel),
		zap.Int("highChannel", cfg.HighChannel),
		zap.Float64("rate", cfg.Rate),
	)
	return cfg.Rate, nil
}

func (s *Serial) ScanStatus() (Status, TransferStatus, error) {
	s.mu.Lock()
	window := s.window
	s.mu.Unlock()

	if window == nil {
		return StatusIdle, TransferStatus{}, nil
	}
	return Status(s.status.Load()), window.Transfer(), nil
}

func (s *Serial) ReadScan(index int, dst []float64) error {
	s.mu.Lock()
	window := s.window
	s.mu.Unlock()

	if window == nil {
		return ErrNotRunning
	}
	return window.ReadScan(index, dst)
}

func (s *Serial) Stop() error {
	s.mu.Lock()
	cancel := s.cancel
	s.cancel = nil
	s.mu.Unlock()

	if cancel == nil {
		return nil
	}
	cancel()
	s.wg.Wait()
	s.status.Store(int32(StatusIdle))
	s.logger.Info("[source] serial scan stopped", zap.String("portName", s.portName))
	return nil
}

func (s *Serial) Release() error {
	return multierr.Append(s.Stop(), s.port.Close())
}
