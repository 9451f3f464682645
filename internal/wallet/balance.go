// internal/wallet/balance.go
package wallet

import (
	"context"
	"sync"

	"evm-wallet/internal/domain"
	"evm-wallet/pkg/utils"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

type tokenMetadata struct {
	symbol   string
	decimals uint8
}

// BalanceReader reads native and ERC-20 balances for an account
type BalanceReader struct {
	client domain.ChainClient
	cache  *ContractCache
	logger *zap.Logger

	metaMu   sync.RWMutex
	metadata map[common.Address]tokenMetadata
}

func NewBalanceReader(client domain.ChainClient, cache *ContractCache, logger *zap.Logger) *BalanceReader {
	return &BalanceReader{
		client:   client,
		cache:    cache,
		logger:   logger,
		metadata: make(map[common.Address]tokenMetadata),
	}
}

// NativeBalance returns the balance of owner in whole native units
func (r *BalanceReader) NativeBalance(ctx context.Context, owner common.Address) (decimal.Decimal, error) {
	raw, err := r.client.BalanceAt(ctx, owner)
	if err != nil {
		return decimal.Zero, err
	}
	return utils.ToDecimal(raw, domain.NativeDecimals), nil
}

// TokenBalance resolves token and reads decimals, symbol and balanceOf.
// Metadata is kept only once all three reads have succeeded together.
func (r *BalanceReader) TokenBalance(ctx context.Context, owner, token common.Address) (*domain.TokenBalance, error) {
	contract, err := r.cache.GetOrResolve(token)
	if err != nil {
		return nil, &domain.ContractCallError{Contract: token, Method: "bind", Err: err}
	}

	r.metaMu.RLock()
	meta, known := r.metadata[token]
	r.metaMu.RUnlock()

	if !known {
		decimals, err := contract.Decimals(ctx, r.client)
		if err != nil {
			return nil, &domain.ContractCallError{Contract: token, Method: "decimals", Err: err}
		}

		symbol, err := contract.Symbol(ctx, r.client)
		if err != nil {
			return nil, &domain.ContractCallError{Contract: token, Method: "symbol", Err: err}
		}
		meta = tokenMetadata{symbol: symbol, decimals: decimals}
	}

	raw, err := contract.BalanceOf(ctx, r.client, owner)
	if err != nil {
		return nil, &domain.ContractCallError{Contract: token, Method: "balanceOf", Err: err}
	}

	if !known {
		r.metaMu.Lock()
		r.metadata[token] = meta
		r.metaMu.Unlock()

		r.logger.Debug("Token metadata cached",
			zap.String("token", token.Hex()),
			zap.String("symbol", meta.symbol),
			zap.Uint8("decimals", meta.decimals))
	}

	return &domain.TokenBalance{
		TokenAddress: token,
		Symbol:       meta.symbol,
		Decimals:     meta.decimals,
		RawBalance:   raw,
		Balance:      utils.ToDecimal(raw, meta.decimals),
	}, nil
}
