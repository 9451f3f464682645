// internal/domain/transaction.go
package domain

import (
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
)

// TransactionRequest is an unsigned legacy (EIP-155) transaction
type TransactionRequest struct {
	From     common.Address
	To       common.Address
	Value    *big.Int
	Data     []byte
	Nonce    uint64
	GasPrice *big.Int
	GasLimit uint64
	ChainID  *big.Int
}

// TransactionHandle identifies a submitted transaction
type TransactionHandle struct {
	Hash        common.Hash
	SubmittedAt time.Time
}

type TxStatus string

const (
	TxStatusPending     TxStatus = "pending"
	TxStatusConfirmed   TxStatus = "confirmed"
	TxStatusReverted    TxStatus = "reverted"
	TxStatusNotFoundYet TxStatus = "not_found"
	TxStatusTimedOut    TxStatus = "timed_out"
)

// IsTerminal reports whether the chain has settled the transaction
func (s TxStatus) IsTerminal() bool {
	return s == TxStatusConfirmed || s == TxStatusReverted
}

// TransactionRecord is the journal entry for a submitted transaction
type TransactionRecord struct {
	Hash        common.Hash
	ChainID     int64
	From        common.Address
	To          common.Address
	Nonce       uint64
	Value       *big.Int
	GasPrice    *big.Int
	GasLimit    uint64
	Status      TxStatus
	BlockNumber *uint64
	SubmittedAt time.Time
	ResolvedAt  *time.Time
}

// NewTransactionRecord builds a pending journal entry from a submitted request
func NewTransactionRecord(req *TransactionRequest, handle *TransactionHandle) *TransactionRecord {
	rec := &TransactionRecord{
		Hash:        handle.Hash,
		From:        req.From,
		To:          req.To,
		Nonce:       req.Nonce,
		Value:       req.Value,
		GasPrice:    req.GasPrice,
		GasLimit:    req.GasLimit,
		Status:      TxStatusPending,
		SubmittedAt: handle.SubmittedAt,
	}
	if req.ChainID != nil {
		rec.ChainID = req.ChainID.Int64()
	}
	return rec
}
