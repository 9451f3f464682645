// internal/chains/ethereum/keystore.go
package ethereum

import (
	"crypto/ecdsa"
	"encoding/json"
	"fmt"
	"strings"

	"evm-wallet/internal/domain"

	"github.com/ethereum/go-ethereum/accounts/keystore"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/google/uuid"
)

const keystoreVersion = 3

// keystoreFile is the Web3 Secret Storage v3 document
type keystoreFile struct {
	Address string              `json:"address"`
	Crypto  keystore.CryptoJSON `json:"crypto"`
	ID      string              `json:"id"`
	Version int                 `json:"version"`
}

// KeystoreCodec encrypts keys with scrypt + AES-128-CTR and a keccak MAC
type KeystoreCodec struct {
	scryptN int
	scryptP int
}

// NewKeystoreCodec uses the standard (slow) scrypt parameters
func NewKeystoreCodec() *KeystoreCodec {
	return &KeystoreCodec{scryptN: keystore.StandardScryptN, scryptP: keystore.StandardScryptP}
}

// NewLightKeystoreCodec uses the light scrypt parameters, for tests and dev setups
func NewLightKeystoreCodec() *KeystoreCodec {
	return &KeystoreCodec{scryptN: keystore.LightScryptN, scryptP: keystore.LightScryptP}
}

// Encrypt serializes privateKey into a password protected keystore document
func (c *KeystoreCodec) Encrypt(privateKey *ecdsa.PrivateKey, password string) ([]byte, error) {
	if privateKey == nil {
		return nil, domain.ErrUninitializedWallet
	}

	keyBytes := crypto.FromECDSA(privateKey)
	defer zeroBytes(keyBytes)

	cryptoJSON, err := keystore.EncryptDataV3(keyBytes, []byte(password), c.scryptN, c.scryptP)
	if err != nil {
		return nil, fmt.Errorf("failed to encrypt key: %w", err)
	}

	address := PrivateKeyToAddress(privateKey)
	doc := keystoreFile{
		Address: strings.ToLower(strings.TrimPrefix(address.Hex(), "0x")),
		Crypto:  cryptoJSON,
		ID:      uuid.NewString(),
		Version: keystoreVersion,
	}

	blob, err := json.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("failed to encode keystore: %w", err)
	}
	return blob, nil
}

// Decrypt recovers the private key. Any failure, including a wrong password,
// returns domain.ErrKeystoreDecryption.
func (c *KeystoreCodec) Decrypt(blob []byte, password string) (*ecdsa.PrivateKey, error) {
	var doc keystoreFile
	if err := json.Unmarshal(blob, &doc); err != nil {
		return nil, fmt.Errorf("%w: malformed keystore: %v", domain.ErrKeystoreDecryption, err)
	}

	if doc.Version != keystoreVersion {
		return nil, fmt.Errorf("%w: unsupported keystore version %d", domain.ErrKeystoreDecryption, doc.Version)
	}

	keyBytes, err := keystore.DecryptDataV3(doc.Crypto, password)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrKeystoreDecryption, err)
	}
	defer zeroBytes(keyBytes)

	privateKey, err := crypto.ToECDSA(keyBytes)
	if err != nil {
		return nil, fmt.Errorf("%w: invalid key material", domain.ErrKeystoreDecryption)
	}

	if doc.Address != "" {
		if !common.IsHexAddress(doc.Address) || common.HexToAddress(doc.Address) != PrivateKeyToAddress(privateKey) {
			ZeroKey(privateKey)
			return nil, fmt.Errorf("%w: address does not match key", domain.ErrKeystoreDecryption)
		}
	}

	return privateKey, nil
}
