// internal/wallet/submitter.go
package wallet

import (
	"context"
	"fmt"
	"time"

	"evm-wallet/internal/domain"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"
)

// TxSigner signs requests without exposing its key
type TxSigner interface {
	SignTx(req *domain.TransactionRequest) ([]byte, common.Hash, error)
}

// TransactionSubmitter signs and broadcasts requests. It never waits for inclusion.
type TransactionSubmitter struct {
	client domain.ChainClient
	nonces NonceSource
	logger *zap.Logger
	now    func() time.Time
}

func NewTransactionSubmitter(client domain.ChainClient, nonces NonceSource, logger *zap.Logger) *TransactionSubmitter {
	return &TransactionSubmitter{
		client: client,
		nonces: nonces,
		logger: logger,
		now:    time.Now,
	}
}

// Submit signs req through signer and sends the raw payload
func (s *TransactionSubmitter) Submit(ctx context.Context, signer TxSigner, req *domain.TransactionRequest) (*domain.TransactionHandle, error) {
	if signer == nil {
		return nil, domain.ErrUninitializedWallet
	}

	// Sign transaction
	raw, localHash, err := signer.SignTx(req)
	if err != nil {
		s.nonces.Reset(req.From)
		return nil, err
	}

	submittedAt := s.now()

	// Send transaction
	hash, err := s.client.SendRawTransaction(ctx, raw)
	if err != nil {
		s.nonces.Reset(req.From)
		s.logger.Error("Transaction broadcast failed",
			zap.String("from", req.From.Hex()),
			zap.Uint64("nonce", req.Nonce),
			zap.Error(err))
		return nil, fmt.Errorf("failed to submit transaction: %w", err)
	}

	if hash == (common.Hash{}) {
		hash = localHash
	} else if hash != localHash {
		s.logger.Warn("Node returned unexpected transaction hash",
			zap.String("expected", localHash.Hex()),
			zap.String("tx_hash", hash.Hex()))
	}

	s.logger.Info("Transaction submitted",
		zap.String("tx_hash", hash.Hex()),
		zap.String("from", req.From.Hex()),
		zap.String("to", req.To.Hex()),
		zap.Uint64("nonce", req.Nonce),
		zap.String("gas_price", req.GasPrice.String()),
		zap.Uint64("gas_limit", req.GasLimit))

	return &domain.TransactionHandle{
		Hash:        hash,
		SubmittedAt: submittedAt,
	}, nil
}
