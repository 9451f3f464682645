// internal/wallet/watcher.go
package wallet

import (
	"context"
	"errors"
	"time"

	"evm-wallet/internal/domain"

	"go.uber.org/zap"
)

// ConfirmationWatcher polls for a receipt until the transaction is mined or
// the wait budget, measured from submission, runs out.
type ConfirmationWatcher struct {
	client       domain.ChainClient
	pollInterval time.Duration
	timeout      time.Duration
	logger       *zap.Logger
	now          func() time.Time
}

func NewConfirmationWatcher(client domain.ChainClient, pollInterval, timeout time.Duration, logger *zap.Logger) *ConfirmationWatcher {
	return &ConfirmationWatcher{
		client:       client,
		pollInterval: pollInterval,
		timeout:      timeout,
		logger:       logger,
		now:          time.Now,
	}
}

// Wait blocks until handle resolves.
//
//	success receipt  -> (receipt, nil)
//	failed receipt   -> (receipt, ErrTransactionReverted)
//	budget exhausted -> (nil, *ConfirmationTimeoutError)
//	ctx done         -> (nil, ctx.Err())
//
// Not-found and any other polling error keep the transaction pending. Each
// poll is bounded by the deadline, so a hung node still ends in a timeout.
func (w *ConfirmationWatcher) Wait(ctx context.Context, handle *domain.TransactionHandle) (*domain.Receipt, error) {
	submittedAt := handle.SubmittedAt
	if submittedAt.IsZero() {
		submittedAt = w.now()
	}
	deadline := submittedAt.Add(w.timeout)
	polls := 0

	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		polls++
		pollCtx, cancel := context.WithDeadline(ctx, deadline)
		receipt, err := w.client.TransactionReceipt(pollCtx, handle.Hash)
		pollErr := pollCtx.Err()
		cancel()

		switch {
		case err == nil && receipt == nil:
			// still pending

		case err == nil && receipt.Success:
			w.logger.Info("Transaction confirmed",
				zap.String("tx_hash", handle.Hash.Hex()),
				zap.Uint64("block", receipt.BlockNumber),
				zap.Int("polls", polls))
			return receipt, nil

		case err == nil:
			w.logger.Warn("Transaction reverted",
				zap.String("tx_hash", handle.Hash.Hex()),
				zap.Uint64("block", receipt.BlockNumber))
			return receipt, domain.ErrTransactionReverted

		case errors.Is(err, domain.ErrReceiptNotFound):
			// still pending

		case ctx.Err() != nil:
			return nil, ctx.Err()

		case pollErr != nil:
			return nil, w.timedOut(handle, polls)

		default:
			w.logger.Warn("Receipt poll failed, retrying",
				zap.String("tx_hash", handle.Hash.Hex()),
				zap.Error(err))
		}

		remaining := deadline.Sub(w.now())
		if remaining <= 0 {
			return nil, w.timedOut(handle, polls)
		}

		sleep := w.pollInterval
		if remaining < sleep {
			sleep = remaining
		}

		timer := time.NewTimer(sleep)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil, ctx.Err()
		case <-timer.C:
		}
	}
}

func (w *ConfirmationWatcher) timedOut(handle *domain.TransactionHandle, polls int) error {
	w.logger.Warn("Transaction confirmation timed out",
		zap.String("tx_hash", handle.Hash.Hex()),
		zap.Duration("timeout", w.timeout),
		zap.Int("polls", polls))
	return &domain.ConfirmationTimeoutError{Hash: handle.Hash, Timeout: w.timeout}
}
