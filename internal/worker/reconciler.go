package worker

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/learnhub/backend/internal/payments"
	"github.com/learnhub/backend/pkg/queue"
)

// sweepBatchSize bounds how many stale transactions one sweep touches.
const sweepBatchSize = 100

// Reconciler periodically finds transactions that never received a callback
// and enqueues a reconcile job for each; the Processor asks the provider
// what actually happened.
type Reconciler struct {
	payments *payments.Service
	queue    *queue.Queue
	after    time.Duration // how long a transaction may stay open before sweeping
	interval time.Duration
	logger   *zap.Logger
}

// NewReconciler creates the reconciliation sweeper.
func NewReconciler(paySvc *payments.Service, q *queue.Queue, after, interval time.Duration, logger *zap.Logger) *Reconciler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Reconciler{payments: paySvc, queue: q, after: after, interval: interval, logger: logger}
}

// Run sweeps on a fixed interval until the context is cancelled.
func (r *Reconciler) Run(ctx context.Context) {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			r.logger.Info("reconciler stopping")
			return
		case <-ticker.C:
			r.Sweep(ctx)
		}
	}
}

// Sweep runs one reconciliation pass.
func (r *Reconciler) Sweep(ctx context.Context) {
	cutoff := time.Now().Add(-r.after)
	stale, err := r.payments.StaleTransactions(ctx, cutoff, sweepBatchSize)
	if err != nil {
		r.logger.Error("stale transaction listing failed", zap.Error(err))
		return
	}
	if len(stale) == 0 {
		return
	}

	r.logger.Info("enqueueing stale transactions for reconciliation", zap.Int("count", len(stale)))
	for i := range stale {
		tx := &stale[i]
		if err := r.queue.EnqueueReconcile(ctx, queue.ReconcilePayload{TransactionID: tx.ID}); err != nil {
			r.logger.Warn("reconcile enqueue failed",
				zap.String("transaction_id", tx.TransactionID),
				zap.Error(err),
			)
		}
	}
}
