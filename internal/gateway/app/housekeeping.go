package app

import (
	"context"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/aussiebroadwan/ssogate/internal/credstore"
)

// Housekeeping periodically removes expired records from stores that do
// not expire them on their own.
type Housekeeping struct {
	Purger   credstore.Purger
	Logger   *slog.Logger
	Interval time.Duration

	started atomic.Bool
	stopCh  chan struct{}
	doneCh  chan struct{}
}

// NewHousekeeping returns a worker over purger. An interval <= 0 defaults to
// one hour.
func NewHousekeeping(purger credstore.Purger, logger *slog.Logger, interval time.Duration) *Housekeeping {
	if interval <= 0 {
		interval = time.Hour
	}
	return &Housekeeping{
		Purger:   purger,
		Logger:   logger,
		Interval: interval,
		stopCh:   make(chan struct{}),
		doneCh:   make(chan struct{}),
	}
}

// Start runs the worker in the background until Stop.
func (h *Housekeeping) Start() {
	if !h.started.CompareAndSwap(false, true) {
		return
	}
	go h.run()
	h.Logger.Info("housekeeping started", "interval", h.Interval)
}

// Stop blocks until an in-progress purge has finished. Stopping a worker
// that never started is a no-op.
func (h *Housekeeping) Stop() {
	if !h.started.CompareAndSwap(true, false) {
		return
	}
	close(h.stopCh)
	<-h.doneCh
	h.Logger.Info("housekeeping stopped")
}

func (h *Housekeeping) run() {
	defer close(h.doneCh)

	ticker := time.NewTicker(h.Interval)
	defer ticker.Stop()

	h.purge()

	for {
		select {
		case <-ticker.C:
			h.purge()
		case <-h.stopCh:
			return
		}
	}
}

func (h *Housekeeping) purge() {
	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	n, err := h.Purger.PurgeExpired(ctx)
	if err != nil {
		h.Logger.Error("purge_expired_failed", "error", err)
		return
	}
	h.Logger.Debug("purge_expired_completed", "deleted", n)
}
