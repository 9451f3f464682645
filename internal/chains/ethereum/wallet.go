// internal/chains/ethereum/wallet.go
package ethereum

import (
	"crypto/ecdsa"
	"fmt"
	"strings"

	"evm-wallet/internal/domain"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
)

const privateKeyHexLen = 64

// GenerateKey creates a new secp256k1 private key from crypto/rand
func GenerateKey() (*ecdsa.PrivateKey, error) {
	privateKey, err := crypto.GenerateKey()
	if err != nil {
		return nil, fmt.Errorf("failed to generate private key: %w", err)
	}
	return privateKey, nil
}

// ParsePrivateKey normalizes a hex encoded key (optional 0x prefix) and parses it.
// Errors never include the input.
func ParsePrivateKey(privateKeyHex string) (*ecdsa.PrivateKey, error) {
	privateKeyHex = strings.TrimSpace(privateKeyHex)

	// Remove 0x prefix if present
	if len(privateKeyHex) > 2 && (privateKeyHex[:2] == "0x" || privateKeyHex[:2] == "0X") {
		privateKeyHex = privateKeyHex[2:]
	}

	if len(privateKeyHex) != privateKeyHexLen {
		return nil, fmt.Errorf("%w: expected %d hex characters, got %d", domain.ErrInvalidKeyFormat, privateKeyHexLen, len(privateKeyHex))
	}

	privateKey, err := crypto.HexToECDSA(privateKeyHex)
	if err != nil {
		return nil, fmt.Errorf("%w: not a valid secp256k1 key", domain.ErrInvalidKeyFormat)
	}

	return privateKey, nil
}

// PrivateKeyToAddress derives the account address of a key
func PrivateKeyToAddress(privateKey *ecdsa.PrivateKey) common.Address {
	return crypto.PubkeyToAddress(privateKey.PublicKey)
}

// ZeroKey overwrites the private scalar in place
func ZeroKey(privateKey *ecdsa.PrivateKey) {
	if privateKey == nil || privateKey.D == nil {
		return
	}
	words := privateKey.D.Bits()
	for i := range words {
		words[i] = 0
	}
	privateKey.D.SetInt64(0)
}

// zeroBytes wipes a serialized key buffer
func zeroBytes(b []byte) {
	for i := range b {
		b[i] = 0
	}
}
