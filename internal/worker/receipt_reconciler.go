// internal/worker/receipt_reconciler.go
package worker

import (
	"context"
	"errors"
	"sync"
	"time"

	"evm-wallet/internal/domain"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"
)

const defaultReconcileBatch = 100

// JournalStore is the part of the transaction journal the reconciler uses
type JournalStore interface {
	ListUnresolved(ctx context.Context, chainID int64, limit int) ([]*domain.TransactionRecord, error)
	UpdateStatus(ctx context.Context, hash common.Hash, status domain.TxStatus, blockNumber *uint64, resolvedAt time.Time) error
}

// ReceiptReconciler settles journal entries whose waits were abandoned or timed out
type ReceiptReconciler struct {
	store     JournalStore
	client    domain.ChainClient
	chainID   int64
	interval  time.Duration
	batchSize int
	logger    *zap.Logger

	stopChan chan struct{}
	stopOnce sync.Once
}

func NewReceiptReconciler(
	store JournalStore,
	client domain.ChainClient,
	chainID int64,
	interval time.Duration,
	logger *zap.Logger,
) *ReceiptReconciler {
	return &ReceiptReconciler{
		store:     store,
		client:    client,
		chainID:   chainID,
		interval:  interval,
		batchSize: defaultReconcileBatch,
		logger:    logger,
		stopChan:  make(chan struct{}),
	}
}

// Start runs a pass immediately and then every interval until Stop or ctx is done
func (rr *ReceiptReconciler) Start(ctx context.Context) {
	rr.logger.Info("Starting receipt reconciler",
		zap.Int64("chain_id", rr.chainID),
		zap.Duration("interval", rr.interval))

	ticker := time.NewTicker(rr.interval)
	defer ticker.Stop()

	rr.runPass(ctx)

	for {
		select {
		case <-ticker.C:
			rr.runPass(ctx)

		case <-rr.stopChan:
			rr.logger.Info("Stopping receipt reconciler")
			return

		case <-ctx.Done():
			rr.logger.Info("Context cancelled, stopping receipt reconciler")
			return
		}
	}
}

// Stop ends the loop. Safe to call more than once.
func (rr *ReceiptReconciler) Stop() {
	rr.stopOnce.Do(func() { close(rr.stopChan) })
}

func (rr *ReceiptReconciler) runPass(ctx context.Context) {
	resolved, err := rr.ReconcileOnce(ctx)
	if err != nil {
		rr.logger.Error("Failed to reconcile transactions", zap.Error(err))
		return
	}
	if resolved > 0 {
		rr.logger.Info("Reconciled transactions", zap.Int("resolved", resolved))
	}
}

// ReconcileOnce checks every unresolved entry once and returns how many settled
func (rr *ReceiptReconciler) ReconcileOnce(ctx context.Context) (int, error) {
	records, err := rr.store.ListUnresolved(ctx, rr.chainID, rr.batchSize)
	if err != nil {
		return 0, err
	}

	resolved := 0
	for _, rec := range records {
		if ctx.Err() != nil {
			return resolved, ctx.Err()
		}

		receipt, err := rr.client.TransactionReceipt(ctx, rec.Hash)
		if errors.Is(err, domain.ErrReceiptNotFound) {
			continue
		}
		if err != nil {
			rr.logger.Warn("Failed to fetch receipt",
				zap.String("tx_hash", rec.Hash.Hex()),
				zap.Error(err))
			continue
		}

		status := domain.TxStatusConfirmed
		if !receipt.Success {
			status = domain.TxStatusReverted
		}
		block := receipt.BlockNumber

		if err := rr.store.UpdateStatus(ctx, rec.Hash, status, &block, time.Now()); err != nil {
			rr.logger.Error("Failed to update transaction status",
				zap.String("tx_hash", rec.Hash.Hex()),
				zap.String("status", string(status)),
				zap.Error(err))
			continue
		}

		rr.logger.Info("Transaction reconciled",
			zap.String("tx_hash", rec.Hash.Hex()),
			zap.String("status", string(status)),
			zap.Uint64("block", block))
		resolved++
	}

	return resolved, nil
}
