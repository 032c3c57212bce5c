package source

import (
	"fmt"
	"sync"
)

// ScanWindow is the circular buffer a running scan writes into. One writer
// (the device side) and one poller share it.
type ScanWindow struct {
	data       []float64
	channels   int
	writeIndex int
	scans      int64
	mu         sync.RWMutex
}

func NewScanWindow(channels, samplesPerChannel int) *ScanWindow {
	return &ScanWindow{
		data:     make([]float64, channels*samplesPerChannel),
		channels: channels,
	}
}

// WriteScan stores one scan at the next slot, overwriting the oldest when full.
func (w *ScanWindow) WriteScan(values []float64) {
	w.mu.Lock()
	defer w.mu.Unlock()

	slot := int(w.scans%int64(len(w.data)/w.channels)) * w.channels
	copy(w.data[slot:slot+w.channels], values)
	w.writeIndex = slot
	w.scans++
}

func (w *ScanWindow) Transfer() TransferStatus {
	w.mu.RLock()
	defer w.mu.RUnlock()

	return TransferStatus{
		CurrentIndex:      w.writeIndex,
		CurrentScanCount:  w.scans,
		CurrentTotalCount: w.scans * int64(w.channels),
	}
}

func (w *ScanWindow) ReadScan(index int, dst []float64) error {
	w.mu.RLock()
	defer w.mu.RUnlock()

	if index < 0 || index%w.channels != 0 || index+w.channels > len(w.data) {
		return fmt.Errorf("%w: %d (window %d, %d channels)", ErrBadIndex, index, len(w.data), w.channels)
	}
	copy(dst, w.data[index:index+w.channels])
	return nil
}

// Len is the window size in values.
func (w *ScanWindow) Len() int {
	return len(w.data)
}

func (w *ScanWindow) Channels() int {
	return w.channels
}
