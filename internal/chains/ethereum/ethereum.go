// internal/chains/ethereum/ethereum.go
package ethereum

import (
	"context"
	"errors"
	"fmt"
	"math/big"

	"evm-wallet/internal/domain"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/ethclient"
	"go.uber.org/zap"
)

// RPCClient implements domain.ChainClient over a JSON-RPC endpoint
type RPCClient struct {
	client  *ethclient.Client
	chainID *big.Int
	logger  *zap.Logger
}

var _ domain.ChainClient = (*RPCClient)(nil)

// NewRPCClient dials rpcURL and checks that the node serves the expected chain
func NewRPCClient(ctx context.Context, rpcURL string, expectedChainID *big.Int, logger *zap.Logger) (*RPCClient, error) {
	client, err := ethclient.DialContext(ctx, rpcURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to Ethereum: %w", err)
	}

	chainID, err := client.ChainID(ctx)
	if err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to get chain ID: %w", err)
	}

	if expectedChainID != nil && chainID.Cmp(expectedChainID) != 0 {
		client.Close()
		return nil, fmt.Errorf("chain ID mismatch: node reports %s, configured %s", chainID, expectedChainID)
	}

	logger.Info("Ethereum RPC client connected",
		zap.String("rpc", rpcURL),
		zap.String("chain_id", chainID.String()))

	return &RPCClient{
		client:  client,
		chainID: chainID,
		logger:  logger,
	}, nil
}

// ChainID returns the chain id reported by the node at dial time
func (c *RPCClient) ChainID() *big.Int {
	return new(big.Int).Set(c.chainID)
}

// Close releases the underlying connection
func (c *RPCClient) Close() {
	c.client.Close()
}

func (c *RPCClient) BalanceAt(ctx context.Context, account common.Address) (*big.Int, error) {
	balance, err := c.client.BalanceAt(ctx, account, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to get balance: %w", err)
	}
	return balance, nil
}

func (c *RPCClient) PendingNonceAt(ctx context.Context, account common.Address) (uint64, error) {
	nonce, err := c.client.PendingNonceAt(ctx, account)
	if err != nil {
		return 0, fmt.Errorf("failed to get nonce: %w", err)
	}
	return nonce, nil
}

func (c *RPCClient) SuggestGasPrice(ctx context.Context) (*big.Int, error) {
	gasPrice, err := c.client.SuggestGasPrice(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get gas price: %w", err)
	}
	return gasPrice, nil
}

func (c *RPCClient) EstimateGas(ctx context.Context, req *domain.TransactionRequest) (uint64, error) {
	to := req.To
	msg := ethereum.CallMsg{
		From:     req.From,
		To:       &to,
		GasPrice: req.GasPrice,
		Value:    req.Value,
		Data:     req.Data,
	}

	gas, err := c.client.EstimateGas(ctx, msg)
	if err != nil {
		return 0, fmt.Errorf("failed to estimate gas: %w", err)
	}
	return gas, nil
}

func (c *RPCClient) SendRawTransaction(ctx context.Context, raw []byte) (common.Hash, error) {
	tx := new(types.Transaction)
	if err := tx.UnmarshalBinary(raw); err != nil {
		return common.Hash{}, fmt.Errorf("failed to decode signed transaction: %w", err)
	}

	if err := c.client.SendTransaction(ctx, tx); err != nil {
		return common.Hash{}, fmt.Errorf("failed to send transaction: %w", err)
	}

	return tx.Hash(), nil
}

func (c *RPCClient) TransactionReceipt(ctx context.Context, hash common.Hash) (*domain.Receipt, error) {
	receipt, err := c.client.TransactionReceipt(ctx, hash)
	if errors.Is(err, ethereum.NotFound) {
		return nil, domain.ErrReceiptNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get receipt: %w", err)
	}

	return toDomainReceipt(receipt), nil
}

func (c *RPCClient) CallContract(ctx context.Context, contract common.Address, data []byte) ([]byte, error) {
	msg := ethereum.CallMsg{
		To:   &contract,
		Data: data,
	}

	result, err := c.client.CallContract(ctx, msg, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to call contract: %w", err)
	}
	return result, nil
}

func toDomainReceipt(receipt *types.Receipt) *domain.Receipt {
	out := &domain.Receipt{
		TxHash:  receipt.TxHash,
		Success: receipt.Status == types.ReceiptStatusSuccessful,
		GasUsed: receipt.GasUsed,
	}
	if receipt.BlockNumber != nil {
		out.BlockNumber = receipt.BlockNumber.Uint64()
	}
	return out
}
