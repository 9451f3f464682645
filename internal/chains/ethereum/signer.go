// internal/chains/ethereum/signer.go
package ethereum

import (
	"crypto/ecdsa"
	"fmt"
	"math/big"

	"evm-wallet/internal/domain"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
)

// NewLegacyTransaction converts a request into an unsigned legacy transaction
func NewLegacyTransaction(req *domain.TransactionRequest) *types.Transaction {
	to := req.To
	value := req.Value
	if value == nil {
		value = new(big.Int)
	}

	return types.NewTx(&types.LegacyTx{
		Nonce:    req.Nonce,
		GasPrice: req.GasPrice,
		Gas:      req.GasLimit,
		To:       &to,
		Value:    value,
		Data:     req.Data,
	})
}

// SignTransaction signs an Ethereum transaction
func SignTransaction(tx *types.Transaction, privateKey *ecdsa.PrivateKey, chainID *big.Int) (*types.Transaction, error) {
	if privateKey == nil {
		return nil, domain.ErrUninitializedWallet
	}

	signer := types.NewEIP155Signer(chainID)
	signedTx, err := types.SignTx(tx, signer, privateKey)
	if err != nil {
		return nil, fmt.Errorf("failed to sign transaction: %w", err)
	}

	return signedTx, nil
}

// RecoverSigner recovers the sender address from a signed transaction
func RecoverSigner(tx *types.Transaction, chainID *big.Int) (common.Address, error) {
	signer := types.NewEIP155Signer(chainID)

	sender, err := types.Sender(signer, tx)
	if err != nil {
		return common.Address{}, fmt.Errorf("failed to recover sender: %w", err)
	}

	return sender, nil
}
