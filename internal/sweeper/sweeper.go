// Package sweeper periodically purges expired refresh tokens.
package sweeper

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"
)

// DefaultInterval is the time between sweeps.
const DefaultInterval = time.Hour

// Expirer deletes refresh tokens past their expiry.
type Expirer interface {
	DeleteExpiredRefreshTokens(ctx context.Context) (int64, error)
}

// Worker sweeps expired refresh tokens on a fixed interval.
type Worker struct {
	store    Expirer
	logger   *slog.Logger
	interval time.Duration
	started  atomic.Bool
	done     chan struct{}
}

// New creates a Worker. A non-positive interval uses DefaultInterval.
func New(store Expirer, interval time.Duration, logger *slog.Logger) *Worker {
	if interval <= 0 {
		interval = DefaultInterval
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Worker{
		store:    store,
		logger:   logger.With("component", "sweeper"),
		interval: interval,
		done:     make(chan struct{}),
	}
}

// Run sweeps once immediately, then on every tick until ctx is cancelled.
func (w *Worker) Run(ctx context.Context) error {
	if !w.started.CompareAndSwap(false, true) {
		return errors.New("sweeper already started")
	}
	defer close(w.done)

	w.logger.Info("sweeper started", "interval", w.interval)

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		if _, err := w.SweepOnce(ctx); err != nil {
			if errors.Is(err, context.Canceled) {
				return nil
			}
			w.logger.Error("sweep failed", "error", err)
		}

		select {
		case <-ctx.Done():
			w.logger.Info("sweeper stopping")
			return nil
		case <-ticker.C:
		}
	}
}

// SweepOnce deletes expired refresh tokens and returns how many were removed.
func (w *Worker) SweepOnce(ctx context.Context) (int64, error) {
	n, err := w.store.DeleteExpiredRefreshTokens(ctx)
	if err != nil {
		return 0, fmt.Errorf("delete expired refresh tokens: %w", err)
	}
	if n > 0 {
		w.logger.Info("expired refresh tokens removed", "count", n)
	}
	return n, nil
}

// Wait blocks until Run returns or ctx expires. It returns immediately if
// Run was never started.
func (w *Worker) Wait(ctx context.Context) error {
	if !w.started.Load() {
		return nil
	}
	select {
	case <-w.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
