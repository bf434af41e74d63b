// Package reconciliation runs a scheduled audit that cross-checks stored
// account balances against the sum of their ledger entries and verifies that
// every transfer left a balanced double-entry pair.
package reconciliation

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/ledger-service/ledger_service/internal/infrastructure/repositories"
	"github.com/ledger-service/ledger_service/pkg/logger"
	"github.com/ledger-service/ledger_service/pkg/metrics"
)

const sweepTimeout = 2 * time.Minute

// Worker periodically sweeps the ledger for drift. It never mutates data;
// findings are logged and exported so operators can investigate.
type Worker struct {
	repo     *repositories.LedgerRepository
	schedule string
	cron     *cron.Cron
	logger   *logger.Logger
	metrics  *metrics.Metrics
}

// NewWorker creates a reconciliation worker. metrics may be nil.
func NewWorker(repo *repositories.LedgerRepository, schedule string, log *logger.Logger, m *metrics.Metrics) *Worker {
	return &Worker{
		repo:     repo,
		schedule: schedule,
		cron:     cron.New(),
		logger:   log,
		metrics:  m,
	}
}

// Start schedules the sweep and begins running it
func (w *Worker) Start() error {
	if _, err := w.cron.AddFunc(w.schedule, w.sweep); err != nil {
		return err
	}
	w.cron.Start()
	w.logger.Info("Reconciliation worker started", "schedule", w.schedule)
	return nil
}

// Shutdown stops the scheduler and waits for a running sweep to finish
func (w *Worker) Shutdown(timeout time.Duration) error {
	ctx := w.cron.Stop()
	select {
	case <-ctx.Done():
	case <-time.After(timeout):
		w.logger.Warn("Reconciliation sweep did not finish before shutdown timeout")
	}
	return nil
}

func (w *Worker) sweep() {
	ctx, cancel := context.WithTimeout(context.Background(), sweepTimeout)
	defer cancel()

	start := time.Now()

	mismatches, err := w.repo.FindBalanceMismatches(ctx)
	if err != nil {
		w.logger.Error("Reconciliation balance sweep failed", "error", err)
		return
	}

	unbalanced, err := w.repo.CountUnbalancedTransfers(ctx)
	if err != nil {
		w.logger.Error("Reconciliation transfer sweep failed", "error", err)
		return
	}

	for _, m := range mismatches {
		w.logger.Error("Account balance drifted from ledger entries",
			"account_id", m.AccountID,
			"balance", m.Balance,
			"entry_sum", m.EntrySum)
	}
	if unbalanced > 0 {
		w.logger.Error("Unbalanced transfers found", "count", unbalanced)
	}

	if w.metrics != nil {
		w.metrics.ObserveReconciliation(len(mismatches), unbalanced)
	}

	w.logger.Info("Reconciliation sweep complete",
		"balance_mismatches", len(mismatches),
		"unbalanced_transfers", unbalanced,
		"duration", time.Since(start))
}
