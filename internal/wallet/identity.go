// internal/wallet/identity.go
package wallet

import (
	"crypto/ecdsa"
	"fmt"
	"math/big"
	"sync"

	"evm-wallet/internal/chains/ethereum"
	"evm-wallet/internal/domain"

	"github.com/ethereum/go-ethereum/common"
)

// Identity exclusively owns one signing key. The key never leaves this type;
// callers hand requests in and get signed payloads out.
type Identity struct {
	mu      sync.RWMutex
	key     *ecdsa.PrivateKey
	address common.Address
	chainID *big.Int
}

// NewIdentity takes ownership of key
func NewIdentity(key *ecdsa.PrivateKey, chainID *big.Int) *Identity {
	return &Identity{
		key:     key,
		address: ethereum.PrivateKeyToAddress(key),
		chainID: new(big.Int).Set(chainID),
	}
}

// GenerateIdentity creates an identity around a fresh random key
func GenerateIdentity(chainID *big.Int) (*Identity, error) {
	key, err := ethereum.GenerateKey()
	if err != nil {
		return nil, err
	}
	return NewIdentity(key, chainID), nil
}

// Address returns the account address, or ErrUninitializedWallet after Destroy
func (i *Identity) Address() (common.Address, error) {
	if i == nil {
		return common.Address{}, domain.ErrUninitializedWallet
	}

	i.mu.RLock()
	defer i.mu.RUnlock()

	if i.key == nil {
		return common.Address{}, domain.ErrUninitializedWallet
	}
	return i.address, nil
}

// SignTx signs req for the identity's chain and returns the RLP payload and hash
func (i *Identity) SignTx(req *domain.TransactionRequest) ([]byte, common.Hash, error) {
	if i == nil {
		return nil, common.Hash{}, domain.ErrUninitializedWallet
	}

	i.mu.RLock()
	defer i.mu.RUnlock()

	if i.key == nil {
		return nil, common.Hash{}, domain.ErrUninitializedWallet
	}
	if req.ChainID != nil && req.ChainID.Cmp(i.chainID) != 0 {
		return nil, common.Hash{}, fmt.Errorf("request chain id %s does not match identity chain id %s", req.ChainID, i.chainID)
	}

	signed, err := ethereum.SignTransaction(ethereum.NewLegacyTransaction(req), i.key, i.chainID)
	if err != nil {
		return nil, common.Hash{}, err
	}

	raw, err := signed.MarshalBinary()
	if err != nil {
		return nil, common.Hash{}, fmt.Errorf("failed to encode signed transaction: %w", err)
	}
	return raw, signed.Hash(), nil
}

// EncryptKeystore serializes the key as a password protected keystore document
func (i *Identity) EncryptKeystore(codec *ethereum.KeystoreCodec, password string) ([]byte, error) {
	if i == nil {
		return nil, domain.ErrUninitializedWallet
	}

	i.mu.RLock()
	defer i.mu.RUnlock()

	if i.key == nil {
		return nil, domain.ErrUninitializedWallet
	}
	return codec.Encrypt(i.key, password)
}

// Destroy wipes the key. The identity is unusable afterwards.
func (i *Identity) Destroy() {
	if i == nil {
		return
	}

	i.mu.Lock()
	defer i.mu.Unlock()

	ethereum.ZeroKey(i.key)
	i.key = nil
}
