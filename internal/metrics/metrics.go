// Package metrics holds the Prometheus instruments shared by the acquisition
// and display sides.
package metrics

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

type Metrics struct {
	registry *prometheus.Registry

	RowsAppended        prometheus.Counter
	Rotations           prometheus.Counter
	Overruns            prometheus.Counter
	HandoffWait         prometheus.Histogram
	WindowWrites        *prometheus.CounterVec // result: ok, error
	WindowWriteDuration prometheus.Histogram

	Ticks          *prometheus.CounterVec // outcome: dispatched, no_data, error, coalesced
	ConsumerErrors *prometheus.CounterVec // consumer
	ChannelRMS     *prometheus.GaugeVec   // channel
	PeakFrequency  *prometheus.GaugeVec   // channel
}

// New creates all instruments on a private registry.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),

		RowsAppended: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "daq_rows_appended_total",
			Help: "Sample rows appended to the rotation buffer",
		}),
		Rotations: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "daq_rotations_total",
			Help: "Rotation buffer handoffs to the window writer",
		}),
		Overruns: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "daq_scan_overruns_total",
			Help: "Times the scan window wrapped past unread scans",
		}),
		HandoffWait: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "daq_handoff_wait_seconds",
			Help:    "Time the acquisition loop waited for the snapshot handoff",
			Buckets: prometheus.ExponentialBuckets(0.00001, 4, 10), // 10us to ~2.6s
		}),
		WindowWrites: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "daq_window_writes_total",
			Help: "Window files persisted, by result",
		}, []string{"result"}),
		WindowWriteDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "daq_window_write_duration_seconds",
			Help:    "Time spent writing one window file",
			Buckets: prometheus.ExponentialBuckets(0.0001, 2, 16),
		}),

		Ticks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "display_ticks_total",
			Help: "Refresh ticks, by outcome",
		}, []string{"outcome"}),
		ConsumerErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "display_consumer_errors_total",
			Help: "Consumer refresh failures",
		}, []string{"consumer"}),
		ChannelRMS: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "display_channel_rms",
			Help: "RMS of the last displayed window, per channel",
		}, []string{"channel"}),
		PeakFrequency: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "display_channel_peak_frequency_hz",
			Help: "Strongest spectral component of the last displayed window, per channel",
		}, []string{"channel"}),
	}

	m.registry.MustRegister(
		m.RowsAppended,
		m.Rotations,
		m.Overruns,
		m.HandoffWait,
		m.WindowWrites,
		m.WindowWriteDuration,
		m.Ticks,
		m.ConsumerErrors,
		m.ChannelRMS,
		m.PeakFrequency,
	)
	return m
}

func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{
		ErrorHandling: promhttp.ContinueOnError,
	})
}

// Serve exposes /metrics on addr until ctx is cancelled.
func (m *Metrics) Serve(ctx context.Context, addr string, logger *zap.Logger) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", m.Handler())

	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	logger.Info("[metrics] serving", zap.String("addr", addr))
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
