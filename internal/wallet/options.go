// internal/wallet/options.go
package wallet

import (
	"context"
	"time"

	"evm-wallet/internal/chains/ethereum"
	"evm-wallet/internal/domain"

	"github.com/ethereum/go-ethereum/common"
	"github.com/spf13/afero"
)

// Recorder journals submitted transactions
type Recorder interface {
	Create(ctx context.Context, rec *domain.TransactionRecord) error
	UpdateStatus(ctx context.Context, hash common.Hash, status domain.TxStatus, blockNumber *uint64, resolvedAt time.Time) error
}

// Auditor receives security relevant events
type Auditor interface {
	Record(eventType string, payload map[string]string)
}

type Option func(*Wallet)

// WithRecorder journals every submission and its resolution
func WithRecorder(r Recorder) Option {
	return func(w *Wallet) { w.recorder = r }
}

// WithAuditor sends key and transaction lifecycle events to an audit sink
func WithAuditor(a Auditor) Option {
	return func(w *Wallet) { w.auditor = a }
}

// WithNonceSequencer reserves nonces in-process instead of asking the node per build
func WithNonceSequencer() Option {
	return func(w *Wallet) { w.sequenceNonces = true }
}

// WithFilesystem sets the filesystem used for keystore files
func WithFilesystem(fs afero.Fs) Option {
	return func(w *Wallet) { w.fs = fs }
}

// WithKeystoreCodec overrides the keystore KDF parameters
func WithKeystoreCodec(codec *ethereum.KeystoreCodec) Option {
	return func(w *Wallet) { w.codec = codec }
}
