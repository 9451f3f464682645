// internal/wallet/wallet.go
package wallet

import (
	"context"
	"crypto/ecdsa"
	"errors"
	"fmt"
	"math/big"
	"path/filepath"
	"sync"
	"time"

	"evm-wallet/internal/chains/ethereum"
	"evm-wallet/internal/domain"
	"evm-wallet/internal/security"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/math"
	"github.com/shopspring/decimal"
	"github.com/spf13/afero"
	"go.uber.org/zap"
)

// Wallet is the execution core for a single account on one EVM chain
type Wallet struct {
	cfg    domain.WalletConfig
	client domain.ChainClient
	logger *zap.Logger

	fs             afero.Fs
	codec          *ethereum.KeystoreCodec
	recorder       Recorder
	auditor        Auditor
	sequenceNonces bool

	cache     *ContractCache
	balances  *BalanceReader
	gas       *GasEstimator
	nonces    NonceSource
	builder   *TransactionBuilder
	submitter *TransactionSubmitter
	watcher   *ConfirmationWatcher

	mu       sync.RWMutex
	identity *Identity
}

// New creates an uninitialized wallet. Call Initialize before signing.
func New(cfg domain.WalletConfig, client domain.ChainClient, binder ContractBinder, logger *zap.Logger, opts ...Option) (*Wallet, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid wallet config: %w", err)
	}
	if client == nil {
		return nil, fmt.Errorf("chain client is required")
	}
	if binder == nil {
		binder = ethereum.NewERC20Binder()
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	w := &Wallet{
		cfg:     cfg.Clone(),
		client:  client,
		logger:  logger,
		fs:      afero.NewOsFs(),
		codec:   ethereum.NewKeystoreCodec(),
		auditor: security.NopAuditor{},
	}
	for _, opt := range opts {
		opt(w)
	}

	if w.sequenceNonces {
		w.nonces = NewNonceSequencer(client, logger)
	} else {
		w.nonces = NewChainNonceSource(client)
	}

	w.cache = NewContractCache(binder)
	w.balances = NewBalanceReader(client, w.cache, logger)
	w.gas = NewGasEstimator(client, w.cfg.GasPriceMultiplier, w.cfg.GasLimitDefault, logger)
	w.builder = NewTransactionBuilder(w.nonces, w.gas, w.cfg.ChainID)
	w.submitter = NewTransactionSubmitter(client, w.nonces, logger)
	w.watcher = NewConfirmationWatcher(client, w.cfg.PollInterval, w.cfg.ConfirmationTimeout, logger)

	return w, nil
}

// FromEncryptedKeystore builds a wallet whose identity is loaded from a keystore file
func FromEncryptedKeystore(cfg domain.WalletConfig, client domain.ChainClient, binder ContractBinder, logger *zap.Logger, path, password string, opts ...Option) (*Wallet, error) {
	w, err := New(cfg, client, binder, logger, opts...)
	if err != nil {
		return nil, err
	}
	if err := w.LoadEncryptedKeystore(path, password); err != nil {
		return nil, err
	}
	return w, nil
}

// Initialize sets the signing key. An empty rawKey generates a fresh one.
func (w *Wallet) Initialize(rawKey string) error {
	if rawKey == "" {
		key, err := ethereum.GenerateKey()
		if err != nil {
			return err
		}
		w.setIdentity(NewIdentity(key, w.cfg.ChainID), "generated")
		return nil
	}

	key, err := ethereum.ParsePrivateKey(rawKey)
	if err != nil {
		return err
	}
	w.setIdentity(NewIdentity(key, w.cfg.ChainID), "imported")
	return nil
}

// InitializeWithKey takes ownership of an already parsed key
func (w *Wallet) InitializeWithKey(key *ecdsa.PrivateKey) error {
	if key == nil {
		return domain.ErrInvalidKeyFormat
	}
	w.setIdentity(NewIdentity(key, w.cfg.ChainID), "imported")
	return nil
}

func (w *Wallet) setIdentity(id *Identity, source string) {
	w.mu.Lock()
	previous := w.identity
	w.identity = id
	w.mu.Unlock()

	if previous != nil {
		previous.Destroy()
	}

	address, _ := id.Address()
	w.logger.Info("Wallet initialized",
		zap.String("address", address.Hex()),
		zap.String("source", source),
		zap.String("chain_id", w.cfg.ChainID.String()))
	w.auditor.Record(security.EventWalletInitialized, map[string]string{
		"address": address.Hex(),
		"source":  source,
	})
}

func (w *Wallet) currentIdentity() (*Identity, error) {
	w.mu.RLock()
	defer w.mu.RUnlock()

	if w.identity == nil {
		return nil, domain.ErrUninitializedWallet
	}
	return w.identity, nil
}

// Address returns the wallet account address
func (w *Wallet) Address() (common.Address, error) {
	id, err := w.currentIdentity()
	if err != nil {
		return common.Address{}, err
	}
	return id.Address()
}

// Config returns a copy of the wallet settings
func (w *Wallet) Config() domain.WalletConfig {
	return w.cfg.Clone()
}

// NativeBalance returns the account balance in whole native units
func (w *Wallet) NativeBalance(ctx context.Context) (decimal.Decimal, error) {
	address, err := w.Address()
	if err != nil {
		return decimal.Zero, err
	}
	return w.balances.NativeBalance(ctx, address)
}

// TokenBalance returns the account balance of an ERC-20 token. It also
// registers the token so it can be approved later.
func (w *Wallet) TokenBalance(ctx context.Context, token common.Address) (*domain.TokenBalance, error) {
	address, err := w.Address()
	if err != nil {
		return nil, err
	}
	return w.balances.TokenBalance(ctx, address, token)
}

// BuildTransaction fills nonce and gas for a transfer or call from the wallet account
func (w *Wallet) BuildTransaction(ctx context.Context, to common.Address, value *big.Int, data []byte, gasPrice *big.Int) (*domain.TransactionRequest, error) {
	address, err := w.Address()
	if err != nil {
		return nil, err
	}
	return w.builder.Build(ctx, address, to, value, data, gasPrice)
}

// Submit signs and broadcasts a built request
func (w *Wallet) Submit(ctx context.Context, req *domain.TransactionRequest) (*domain.TransactionHandle, error) {
	id, err := w.currentIdentity()
	if err != nil {
		return nil, err
	}
	address, err := id.Address()
	if err != nil {
		return nil, err
	}

	// The identity always signs, so the recorded sender must be its address
	switch req.From {
	case address:
	case common.Address{}:
		stamped := *req
		stamped.From = address
		req = &stamped
	default:
		return nil, fmt.Errorf("%w: request from %s, wallet %s", domain.ErrSenderMismatch, req.From.Hex(), address.Hex())
	}

	handle, err := w.submitter.Submit(ctx, id, req)
	if err != nil {
		return nil, err
	}

	w.auditor.Record(security.EventTransactionSubmitted, map[string]string{
		"tx_hash": handle.Hash.Hex(),
		"from":    req.From.Hex(),
		"to":      req.To.Hex(),
	})

	if w.recorder != nil {
		if err := w.recorder.Create(ctx, domain.NewTransactionRecord(req, handle)); err != nil {
			w.logger.Warn("Failed to journal transaction",
				zap.String("tx_hash", handle.Hash.Hex()),
				zap.Error(err))
		}
	}

	return handle, nil
}

// SendTransaction builds, signs and broadcasts. It returns once the node accepts the payload.
func (w *Wallet) SendTransaction(ctx context.Context, to common.Address, value *big.Int, data []byte, gasPrice *big.Int) (*domain.TransactionHandle, error) {
	req, err := w.BuildTransaction(ctx, to, value, data, gasPrice)
	if err != nil {
		return nil, err
	}
	return w.Submit(ctx, req)
}

// WaitForTransaction polls until the transaction is mined, reverted or timed out
func (w *Wallet) WaitForTransaction(ctx context.Context, handle *domain.TransactionHandle) (*domain.Receipt, error) {
	receipt, err := w.watcher.Wait(ctx, handle)

	status, blockNumber := resolvedStatus(receipt, err)
	if status != "" {
		w.auditor.Record(security.EventTransactionResolved, map[string]string{
			"tx_hash": handle.Hash.Hex(),
			"status":  string(status),
		})
		w.journalStatus(handle.Hash, status, blockNumber)
	}

	return receipt, err
}

func resolvedStatus(receipt *domain.Receipt, err error) (domain.TxStatus, *uint64) {
	switch {
	case err == nil && receipt != nil:
		block := receipt.BlockNumber
		return domain.TxStatusConfirmed, &block
	case errors.Is(err, domain.ErrTransactionReverted) && receipt != nil:
		block := receipt.BlockNumber
		return domain.TxStatusReverted, &block
	case errors.Is(err, domain.ErrConfirmationTimeout):
		return domain.TxStatusTimedOut, nil
	}
	return "", nil
}

func (w *Wallet) journalStatus(hash common.Hash, status domain.TxStatus, blockNumber *uint64) {
	if w.recorder == nil {
		return
	}

	// The caller's context may already be cancelled
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := w.recorder.UpdateStatus(ctx, hash, status, blockNumber, time.Now()); err != nil {
		w.logger.Warn("Failed to update transaction journal",
			zap.String("tx_hash", hash.Hex()),
			zap.String("status", string(status)),
			zap.Error(err))
	}
}

// ApproveToken lets spender move amount of token. A nil amount approves 2^256-1.
// The token must already be resolved by a previous TokenBalance call.
func (w *Wallet) ApproveToken(ctx context.Context, token, spender common.Address, amount *big.Int) (*domain.TransactionHandle, error) {
	contract, ok := w.cache.Lookup(token)
	if !ok {
		return nil, fmt.Errorf("%w: %s", domain.ErrTokenNotInitialized, token.Hex())
	}

	if amount == nil {
		amount = new(big.Int).Set(math.MaxBig256)
		w.logger.Warn("Approving unlimited token allowance",
			zap.String("token", token.Hex()),
			zap.String("spender", spender.Hex()))
	}

	data, err := contract.ApproveData(spender, amount)
	if err != nil {
		return nil, err
	}

	handle, err := w.SendTransaction(ctx, token, big.NewInt(0), data, nil)
	if err != nil {
		return nil, err
	}

	w.auditor.Record(security.EventTokenApproved, map[string]string{
		"tx_hash": handle.Hash.Hex(),
		"token":   token.Hex(),
		"spender": spender.Hex(),
		"amount":  amount.String(),
	})
	return handle, nil
}

// TransferToken sends amount base units of a token read through TokenBalance
func (w *Wallet) TransferToken(ctx context.Context, token, to common.Address, amount *big.Int) (*domain.TransactionHandle, error) {
	contract, ok := w.cache.Lookup(token)
	if !ok {
		return nil, fmt.Errorf("%w: %s", domain.ErrTokenNotInitialized, token.Hex())
	}
	if amount == nil || amount.Sign() <= 0 {
		return nil, fmt.Errorf("invalid transfer amount: %v", amount)
	}

	data, err := contract.TransferData(to, amount)
	if err != nil {
		return nil, err
	}

	handle, err := w.SendTransaction(ctx, token, big.NewInt(0), data, nil)
	if err != nil {
		return nil, err
	}

	w.auditor.Record(security.EventTokenTransferred, map[string]string{
		"tx_hash": handle.Hash.Hex(),
		"token":   token.Hex(),
		"to":      to.Hex(),
		"amount":  amount.String(),
	})
	return handle, nil
}

// ExportEncryptedKeystore writes the key to path as a v3 keystore
func (w *Wallet) ExportEncryptedKeystore(password, path string) error {
	id, err := w.currentIdentity()
	if err != nil {
		return err
	}

	blob, err := id.EncryptKeystore(w.codec, password)
	if err != nil {
		return err
	}

	if err := w.fs.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return fmt.Errorf("failed to create keystore directory: %w", err)
	}
	if err := afero.WriteFile(w.fs, path, blob, 0o600); err != nil {
		return fmt.Errorf("failed to write keystore: %w", err)
	}

	address, _ := id.Address()
	w.logger.Info("Keystore exported",
		zap.String("address", address.Hex()),
		zap.String("path", path))
	w.auditor.Record(security.EventKeystoreExported, map[string]string{
		"address": address.Hex(),
		"path":    path,
	})
	return nil
}

// LoadEncryptedKeystore replaces the identity with the key stored at path
func (w *Wallet) LoadEncryptedKeystore(path, password string) error {
	blob, err := afero.ReadFile(w.fs, path)
	if err != nil {
		return fmt.Errorf("%w: failed to read keystore: %v", domain.ErrKeystoreDecryption, err)
	}

	key, err := w.codec.Decrypt(blob, password)
	if err != nil {
		return err
	}

	id := NewIdentity(key, w.cfg.ChainID)
	w.setIdentity(id, "keystore")

	address, _ := id.Address()
	w.auditor.Record(security.EventKeystoreImported, map[string]string{
		"address": address.Hex(),
		"path":    path,
	})
	return nil
}

// Close wipes the signing key
func (w *Wallet) Close() {
	w.mu.Lock()
	id := w.identity
	w.identity = nil
	w.mu.Unlock()

	id.Destroy()
}
