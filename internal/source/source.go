// Package source adapts hardware-paced multi-channel scans to a polled interface:
// the device fills a fixed-size circular scan window in the background and the
// caller polls for the latest write index and scan count.
package source

import (
	"context"
	"errors"
	"fmt"
)

type Status int32

const (
	StatusIdle Status = iota
	StatusRunning
	StatusError
)

func (s Status) String() string {
	switch s {
	case StatusIdle:
		return "idle"
	case StatusRunning:
		return "running"
	case StatusError:
		return "error"
	}
	return fmt.Sprintf("status(%d)", int32(s))
}

type InputMode int

const (
	SingleEnded InputMode = iota
	Differential
)

func (m InputMode) String() string {
	if m == Differential {
		return "differential"
	}
	return "single-ended"
}

// TransferStatus mirrors what a paced scan reports while running.
type TransferStatus struct {
	CurrentIndex      int   // window offset of the first value of the newest complete scan
	CurrentScanCount  int64 // scans completed since Start
	CurrentTotalCount int64 // values transferred since Start (scans * channels)
}

type DeviceInfo struct {
	Name     string
	UniqueID string
	HasPacer bool
	Channels map[InputMode]int
}

type ScanConfig struct {
	LowChannel        int
	HighChannel       int
	Mode              InputMode
	Rate              float64 // scans per second
	SamplesPerChannel int     // scans held by the circular window
}

func (c ScanConfig) ChannelCount() int {
	return c.HighChannel - c.LowChannel + 1
}

var (
	ErrNoDevice     = errors.New("no compatible DAQ device found")
	ErrNoPacer      = errors.New("device does not support hardware paced analog input")
	ErrChannelRange = errors.New("invalid channel range")
	ErrNotRunning   = errors.New("scan is not running")
	ErrBadIndex     = errors.New("scan index outside window")
)

// Source is a paced scan device. ScanStatus and ReadScan are polled from a single
// acquisition goroutine while the device writes concurrently.
type Source interface {
	Info() DeviceInfo
	// Start begins a continuous scan and returns the rate actually achieved.
	Start(ctx context.Context, cfg ScanConfig) (float64, error)
	ScanStatus() (Status, TransferStatus, error)
	// ReadScan copies the scan starting at window offset index into dst.
	ReadScan(index int, dst []float64) error
	Stop() error
	Release() error
}

// ValidateScan checks cfg against what the device reports and resolves the input mode:
// single-ended unless the device has no single-ended channels.
func ValidateScan(info DeviceInfo, cfg ScanConfig) (ScanConfig, error) {
	if !info.HasPacer {
		return cfg, ErrNoPacer
	}

	cfg.Mode = SingleEnded
	if info.Channels[SingleEnded] <= 0 {
		cfg.Mode = Differential
	}
	available := info.Channels[cfg.Mode]

	if cfg.LowChannel < 0 || cfg.HighChannel < cfg.LowChannel || cfg.HighChannel >= available {
		return cfg, fmt.Errorf("%w: channels %d-%d, device has %d %s channels",
			ErrChannelRange, cfg.LowChannel, cfg.HighChannel, available, cfg.Mode)
	}
	if cfg.Rate <= 0 {
		return cfg, fmt.Errorf("invalid scan rate %v", cfg.Rate)
	}
	if cfg.SamplesPerChannel <= 0 {
		return cfg, fmt.Errorf("invalid samples per channel %d", cfg.SamplesPerChannel)
	}
	return cfg, nil
}
