// internal/domain/chain.go
package domain

import (
	"context"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

//go:generate mockgen -source=chain.go -destination=mocks/chain_client.go -package=mocks

// ChainClient is the capability set the wallet needs from an EVM RPC endpoint.
// Implementations must return ErrReceiptNotFound from TransactionReceipt when the
// node has no receipt for the hash yet.
type ChainClient interface {
	// BalanceAt returns the native balance (wei) at the latest block
	BalanceAt(ctx context.Context, account common.Address) (*big.Int, error)

	// PendingNonceAt returns the next nonce for account, pending pool included
	PendingNonceAt(ctx context.Context, account common.Address) (uint64, error)

	// SuggestGasPrice returns the node's legacy gas price suggestion
	SuggestGasPrice(ctx context.Context) (*big.Int, error)

	// EstimateGas simulates req and returns the gas it would use
	EstimateGas(ctx context.Context, req *TransactionRequest) (uint64, error)

	// SendRawTransaction broadcasts an RLP encoded signed transaction
	SendRawTransaction(ctx context.Context, raw []byte) (common.Hash, error)

	// TransactionReceipt returns the receipt for a mined transaction
	TransactionReceipt(ctx context.Context, hash common.Hash) (*Receipt, error)

	// CallContract executes a read-only call against contract
	CallContract(ctx context.Context, contract common.Address, data []byte) ([]byte, error)
}

// Receipt is the outcome of a mined transaction
type Receipt struct {
	TxHash      common.Hash
	Success     bool
	BlockNumber uint64
	GasUsed     uint64
}
