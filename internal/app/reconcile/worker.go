// Package reconcile runs the ledger's periodic background work: crediting
// crypto payments once their gateway confirms them, failing the ones that
// never confirm, and returning expired approvals to their payers.
package reconcile

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/tutu-network/credits/internal/app/ledger"
)

// Ledger is the part of the ledger service the worker drives.
type Ledger interface {
	ReconcilePendingPayments(ctx context.Context) (ledger.ReconcileResult, error)
	ReturnExpiredApprovals(ctx context.Context) (int, error)
}

// Config controls worker behavior.
type Config struct {
	Interval time.Duration // time between passes (default: 30s)
	Timeout  time.Duration // bound on one pass (default: 2m)
}

// DefaultConfig returns production worker defaults.
func DefaultConfig() Config {
	return Config{
		Interval: 30 * time.Second,
		Timeout:  2 * time.Minute,
	}
}

// Worker reconciles the ledger on a fixed interval.
type Worker struct {
	mu     sync.RWMutex
	cfg    Config
	ledger Ledger
	logger *zap.Logger
	stats  Stats
}

// New creates a worker. logger may be nil.
func New(cfg Config, l Ledger, logger *zap.Logger) *Worker {
	def := DefaultConfig()
	if cfg.Interval <= 0 {
		cfg.Interval = def.Interval
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = def.Timeout
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Worker{cfg: cfg, ledger: l, logger: logger.Named("reconcile")}
}

// Run passes once immediately and then on every tick. Blocks until ctx is
// cancelled.
func (w *Worker) Run(ctx context.Context) {
	w.logger.Info("worker started", zap.Duration("interval", w.cfg.Interval))
	ticker := time.NewTicker(w.cfg.Interval)
	defer ticker.Stop()

	w.RunOnce(ctx)
	for {
		select {
		case <-ctx.Done():
			w.logger.Info("worker stopped")
			return
		case <-ticker.C:
			w.RunOnce(ctx)
		}
	}
}

// RunOnce performs a single pass. Failures are logged and retried on the
// next pass.
func (w *Worker) RunOnce(ctx context.Context) {
	ctx, cancel := context.WithTimeout(ctx, w.cfg.Timeout)
	defer cancel()

	res, err := w.ledger.ReconcilePendingPayments(ctx)
	if err != nil {
		w.logger.Error("payment reconciliation failed", zap.Error(err))
	} else if res.Checked > 0 {
		w.logger.Info("payments reconciled",
			zap.Int("checked", res.Checked),
			zap.Int("credited", res.Credited),
			zap.Int("failed", res.Failed),
			zap.Int("errors", res.Errors))
	}

	returned, aerr := w.ledger.ReturnExpiredApprovals(ctx)
	if aerr != nil {
		w.logger.Error("approval expiry failed", zap.Error(aerr))
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	w.stats.Passes++
	w.stats.Credited += int64(res.Credited)
	w.stats.Failed += int64(res.Failed)
	w.stats.ApprovalsReturned += int64(returned)
	if err != nil || aerr != nil {
		w.stats.Errors++
	}
	w.stats.Errors += int64(res.Errors)
	w.stats.LastPass = time.Now()
}

// Stats are cumulative worker counters.
type Stats struct {
	Passes            int64     `json:"passes"`
	Credited          int64     `json:"credited"`
	Failed            int64     `json:"failed"`
	ApprovalsReturned int64     `json:"approvals_returned"`
	Errors            int64     `json:"errors"`
	LastPass          time.Time `json:"last_pass"`
}

// Stats returns a snapshot of the worker counters.
func (w *Worker) Stats() Stats {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.stats
}
