// internal/wallet/gas.go
package wallet

import (
	"context"
	"fmt"
	"math/big"

	"evm-wallet/internal/domain"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// GasEstimator prices and sizes transactions
type GasEstimator struct {
	client          domain.ChainClient
	multiplier      decimal.Decimal
	gasLimitDefault uint64
	logger          *zap.Logger
}

func NewGasEstimator(client domain.ChainClient, multiplier decimal.Decimal, gasLimitDefault uint64, logger *zap.Logger) *GasEstimator {
	return &GasEstimator{
		client:          client,
		multiplier:      multiplier,
		gasLimitDefault: gasLimitDefault,
		logger:          logger,
	}
}

// EstimateGasPrice returns the node suggestion scaled by the multiplier, truncated to wei
func (g *GasEstimator) EstimateGasPrice(ctx context.Context) (*big.Int, error) {
	suggested, err := g.client.SuggestGasPrice(ctx)
	if err != nil {
		return nil, err
	}
	return decimal.NewFromBigInt(suggested, 0).Mul(g.multiplier).BigInt(), nil
}

// EstimateGasLimit simulates req and adds a 10% buffer, rounded up.
// A failed simulation falls back to the configured default.
func (g *GasEstimator) EstimateGasLimit(ctx context.Context, req *domain.TransactionRequest) uint64 {
	estimated, err := g.client.EstimateGas(ctx, req)
	if err != nil {
		g.logger.Warn("Gas estimation failed, using default limit",
			zap.String("to", req.To.Hex()),
			zap.Uint64("gas_limit", g.gasLimitDefault),
			zap.Error(fmt.Errorf("%w: %v", domain.ErrGasEstimation, err)))
		return g.gasLimitDefault
	}
	return withGasBuffer(estimated)
}

// withGasBuffer returns ceil(gas * 1.1)
func withGasBuffer(gas uint64) uint64 {
	return gas + (gas+9)/10
}
