// internal/domain/errors.go
package domain

import (
	"errors"
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum/common"
)

var (
	ErrUninitializedWallet = errors.New("wallet not initialized")
	ErrInvalidKeyFormat    = errors.New("invalid private key format")
	ErrKeystoreDecryption  = errors.New("keystore decryption failed")
	ErrContractCall        = errors.New("contract call failed")
	ErrGasEstimation       = errors.New("gas estimation failed")
	ErrReceiptNotFound     = errors.New("transaction receipt not found")
	ErrTransactionReverted = errors.New("transaction reverted")
	ErrConfirmationTimeout = errors.New("transaction confirmation timed out")
	ErrTokenNotInitialized = errors.New("token not initialized")
	ErrRecordNotFound      = errors.New("transaction record not found")
	ErrSenderMismatch      = errors.New("request sender does not match wallet address")
)

// ContractCallError reports a failed token interface read
type ContractCallError struct {
	Contract common.Address
	Method   string
	Err      error
}

func (e *ContractCallError) Error() string {
	return fmt.Sprintf("contract call %s on %s failed: %v", e.Method, e.Contract.Hex(), e.Err)
}

func (e *ContractCallError) Unwrap() error { return e.Err }

func (e *ContractCallError) Is(target error) bool { return target == ErrContractCall }

// ConfirmationTimeoutError is returned when a transaction is still pending once the
// wait budget is spent. It is distinct from a revert.
type ConfirmationTimeoutError struct {
	Hash    common.Hash
	Timeout time.Duration
}

func (e *ConfirmationTimeoutError) Error() string {
	return fmt.Sprintf("transaction %s not confirmed after %s", e.Hash.Hex(), e.Timeout)
}

func (e *ConfirmationTimeoutError) Is(target error) bool { return target == ErrConfirmationTimeout }
