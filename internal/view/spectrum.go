package view

import (
	"context"
	"fmt"
	"math"
	"math/cmplx"
	"sync"

	"github.com/spf13/afero"
	"go.uber.org/zap"
	"gonum.org/v1/gonum/dsp/fourier"

	"sleepywoodpecker/rp-scan-windows/internal/metrics"
	"sleepywoodpecker/rp-scan-windows/internal/store"
)

// SpectrumFrame carries a one-sided power spectral density of one channel and
// the per-segment spectra it was averaged from (the spectrogram columns).
type SpectrumFrame struct {
	File        store.WindowFile
	Frequencies []float64   // Hz
	PSD         []float64   // power per Hz
	Spectrogram [][]float64 // one column per nfft-long segment
	Peak        float64     // frequency of the strongest non-DC bin
}

type Spectrum struct {
	fs           afero.Fs
	channel      int
	channelCount int
	sampleRate   float64
	nfft         int
	window       []float64
	windowPower  float64
	fft          *fourier.FFT
	logger       *zap.Logger
	metrics      *metrics.Metrics

	mu     sync.RWMutex
	latest SpectrumFrame
}

func NewSpectrum(fs afero.Fs, channel, channelCount int, sampleRate float64, nfft int, logger *zap.Logger, m *metrics.Metrics) *Spectrum {
	window := hann(nfft)
	var power float64
	for _, w := range window {
		power += w * w
	}

	return &Spectrum{
		fs:           fs,
		channel:      channel,
		channelCount: channelCount,
		sampleRate:   sampleRate,
		nfft:         nfft,
		window:       window,
		windowPower:  power,
		fft:          fourier.NewFFT(nfft),
		logger:       logger,
		metrics:      m,
	}
}

func (v *Spectrum) Name() string {
	return "spectrum-" + channelLabel(v.channel)
}

func (v *Spectrum) OnRefresh(ctx context.Context, file store.WindowFile) error {
	series, err := store.DecodeChannel(v.fs, file, v.channelCount, v.channel)
	if err != nil {
		return err
	}
	if len(series) == 0 {
		return fmt.Errorf("window %s is empty", file.Name)
	}

	frame := v.compute(series)
	frame.File = file
	v.metrics.PeakFrequency.WithLabelValues(channelLabel(v.channel)).Set(frame.Peak)

	v.mu.Lock()
	v.latest = frame
	v.mu.Unlock()

	v.logger.Debug("[view] spectrum updated",
		zap.Int("channel", v.channel),
		zap.String("file", file.Name),
		zap.Int("segments", len(frame.Spectrogram)),
		zap.Float64("peakHz", frame.Peak),
	)
	return nil
}

func (v *Spectrum) Latest() SpectrumFrame {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return v.latest
}

// compute averages Hann-windowed periodograms over non-overlapping segments.
// A series shorter than nfft is zero padded into a single segment.
func (v *Spectrum) compute(series store.ChannelSeries) SpectrumFrame {
	bins := v.nfft/2 + 1
	frame := SpectrumFrame{
		Frequencies: make([]float64, bins),
		PSD:         make([]float64, bins),
	}
	for k := range bins {
		frame.Frequencies[k] = v.fft.Freq(k) * v.sampleRate
	}

	segment := make([]float64, v.nfft)
	coeffs := make([]complex128, bins)
	scale := 1 / (v.sampleRate * v.windowPower)

	for offset := 0; offset == 0 || offset+v.nfft <= len(series); offset += v.nfft {
		clear(segment)
		n := copy(segment, series[offset:min(offset+v.nfft, len(series))])
		for i := range n {
			segment[i] *= v.window[i]
		}

		coeffs = v.fft.Coefficients(coeffs, segment)
		column := make([]float64, bins)
		for k, c := range coeffs {
			p := cmplx.Abs(c)
			p *= p * scale
			// fold negative frequencies into the one-sided spectrum
			if k != 0 && !(v.nfft%2 == 0 && k == bins-1) {
				p *= 2
			}
			column[k] = p
			frame.PSD[k] += p
		}
		frame.Spectrogram = append(frame.Spectrogram, column)
	}

	segments := float64(len(frame.Spectrogram))
	peak := 1
	for k := range frame.PSD {
		frame.PSD[k] /= segments
		if k > 0 && frame.PSD[k] > frame.PSD[peak] {
			peak = k
		}
	}
	if bins > 1 {
		frame.Peak = frame.Frequencies[peak]
	}
	return frame
}

func hann(n int) []float64 {
	w := make([]float64, n)
	if n == 1 {
		w[0] = 1
		return w
	}
	for i := range w {
		w[i] = 0.5 - 0.5*math.Cos(2*math.Pi*float64(i)/float64(n-1))
	}
	return w
}
