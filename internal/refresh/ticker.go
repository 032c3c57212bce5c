// Package refresh drives display consumers from the window files on a fixed tick.
package refresh

import (
	"context"
	"sync"
	"time"

	"go.uber.org/multierr"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"sleepywoodpecker/rp-scan-windows/internal/metrics"
	"sleepywoodpecker/rp-scan-windows/internal/store"
)

// Consumer renders something from a window file. Every consumer registered on a
// Ticker receives the same file within a tick.
type Consumer interface {
	Name() string
	OnRefresh(ctx context.Context, file store.WindowFile) error
}

type Ticker struct {
	interval  time.Duration
	store     *store.Store
	logger    *zap.Logger
	metrics   *metrics.Metrics
	noData    rate.Sometimes
	mu        sync.RWMutex
	consumers []Consumer
}

func NewTicker(interval time.Duration, st *store.Store, logger *zap.Logger, m *metrics.Metrics) *Ticker {
	return &Ticker{
		interval: interval,
		store:    st,
		logger:   logger,
		metrics:  m,
		noData:   rate.Sometimes{First: 1, Interval: 10 * time.Second},
	}
}

func (t *Ticker) Register(consumers ...Consumer) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.consumers = append(t.consumers, consumers...)
}

// Resolve picks the newest complete window once for this tick.
func (t *Ticker) Resolve() (store.WindowFile, bool) {
	file, ok, err := t.store.Select()
	if err != nil {
		t.metrics.Ticks.WithLabelValues("error").Inc()
		t.noData.Do(func() {
			t.logger.Warn("[refresh] cannot list window files", zap.String("dataDir", t.store.Dir()), zap.Error(err))
		})
		return store.WindowFile{}, false
	}
	if !ok {
		t.metrics.Ticks.WithLabelValues("no_data").Inc()
		t.noData.Do(func() {
			t.logger.Info("[refresh] no complete window yet", zap.String("dataDir", t.store.Dir()))
		})
		return store.WindowFile{}, false
	}
	return file, true
}

// Dispatch hands file to every consumer concurrently and waits for all of them.
// Failures are per consumer and do not affect the others.
func (t *Ticker) Dispatch(ctx context.Context, file store.WindowFile) error {
	t.mu.RLock()
	consumers := append([]Consumer(nil), t.consumers...)
	t.mu.RUnlock()

	errs := make([]error, len(consumers))
	var g errgroup.Group
	for i, c := range consumers {
		g.Go(func() error {
			if err := c.OnRefresh(ctx, file); err != nil {
				t.metrics.ConsumerErrors.WithLabelValues(c.Name()).Inc()
				t.logger.Warn("[refresh] consumer failed, retrying next tick",
					zap.String("consumer", c.Name()),
					zap.String("file", file.Name),
					zap.Error(err),
				)
				errs[i] = err
			}
			return nil
		})
	}
	_ = g.Wait()

	t.metrics.Ticks.WithLabelValues("dispatched").Inc()
	return multierr.Combine(errs...)
}

// Tick runs one resolve-and-dispatch cycle synchronously.
func (t *Ticker) Tick(ctx context.Context) {
	if file, ok := t.Resolve(); ok {
		_ = t.Dispatch(ctx, file)
	}
}

// Run ticks until ctx is cancelled. Resolution happens on every tick even while a
// previous dispatch is still running; at most one resolved file waits for
// dispatch and a newer one replaces it.
func (t *Ticker) Run(ctx context.Context) error {
	mailbox := make(chan store.WindowFile, 1)
	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		for {
			select {
			case <-ctx.Done():
				return nil
			case file := <-mailbox:
				_ = t.Dispatch(ctx, file)
			}
		}
	})

	g.Go(func() error {
		ticker := time.NewTicker(t.interval)
		defer ticker.Stop()

		t.logger.Info("[refresh] ticking", zap.Duration("interval", t.interval), zap.String("dataDir", t.store.Dir()))
		for {
			select {
			case <-ctx.Done():
				t.logger.Info("[refresh] received shutdown signal")
				return nil
			case <-ticker.C:
				file, ok := t.Resolve()
				if !ok {
					continue
				}
				select {
				case mailbox <- file:
					continue
				default:
				}
				// dispatcher is busy; swap the stale file for this one
				select {
				case <-mailbox:
					t.metrics.Ticks.WithLabelValues("coalesced").Inc()
				default:
				}
				select {
				case mailbox <- file:
				default:
				}
			}
		}
	})

	return g.Wait()
}
