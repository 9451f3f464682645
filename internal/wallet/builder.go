// internal/wallet/builder.go
package wallet

import (
	"context"
	"fmt"
	"math/big"

	"evm-wallet/internal/domain"

	"github.com/ethereum/go-ethereum/common"
)

// TransactionBuilder assembles unsigned requests with nonce, gas price and gas limit filled in
type TransactionBuilder struct {
	nonces  NonceSource
	gas     *GasEstimator
	chainID *big.Int
}

func NewTransactionBuilder(nonces NonceSource, gas *GasEstimator, chainID *big.Int) *TransactionBuilder {
	return &TransactionBuilder{
		nonces:  nonces,
		gas:     gas,
		chainID: new(big.Int).Set(chainID),
	}
}

// Build creates a request from "from" to "to". A nil gasPrice means the estimator decides.
func (b *TransactionBuilder) Build(ctx context.Context, from, to common.Address, value *big.Int, data []byte, gasPrice *big.Int) (*domain.TransactionRequest, error) {
	if value == nil {
		value = new(big.Int)
	}

	// Get nonce
	nonce, err := b.nonces.Next(ctx, from)
	if err != nil {
		return nil, fmt.Errorf("failed to get nonce: %w", err)
	}

	// Get gas price
	if gasPrice == nil {
		gasPrice, err = b.gas.EstimateGasPrice(ctx)
		if err != nil {
			b.nonces.Reset(from)
			return nil, fmt.Errorf("failed to get gas price: %w", err)
		}
	} else {
		gasPrice = new(big.Int).Set(gasPrice)
	}

	req := &domain.TransactionRequest{
		From:     from,
		To:       to,
		Value:    new(big.Int).Set(value),
		Data:     append([]byte(nil), data...),
		Nonce:    nonce,
		GasPrice: gasPrice,
		ChainID:  new(big.Int).Set(b.chainID),
	}

	// Estimate gas
	req.GasLimit = b.gas.EstimateGasLimit(ctx, req)

	return req, nil
}
