// internal/security/keyfile.go
package security

import (
	"crypto/rand"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"path/filepath"

	"github.com/spf13/afero"
	"golang.org/x/crypto/scrypt"
)

const (
	sealedKeyVersion = 1
	sealedKeyKDF     = "scrypt"
	saltLen          = 16

	standardScryptN = 1 << 15
	lightScryptN    = 1 << 12
	scryptR         = 8
	scryptP         = 1
)

// ErrSealedKeyOpen is returned for a wrong passphrase or a damaged file
var ErrSealedKeyOpen = errors.New("failed to open sealed key")

type sealedKeyFile struct {
	Version    int       `json:"version"`
	KDF        string    `json:"kdf"`
	KDFParams  kdfParams `json:"kdfparams"`
	Salt       string    `json:"salt"`
	Ciphertext string    `json:"ciphertext"`
}

type kdfParams struct {
	N int `json:"n"`
	R int `json:"r"`
	P int `json:"p"`
}

// KeySealer stores raw key bytes on disk under a passphrase derived AES-256-GCM key
type KeySealer struct {
	fs      afero.Fs
	scryptN int
}

func NewKeySealer(fs afero.Fs) *KeySealer {
	return &KeySealer{fs: fs, scryptN: standardScryptN}
}

// NewLightKeySealer trades KDF cost for speed
func NewLightKeySealer(fs afero.Fs) *KeySealer {
	return &KeySealer{fs: fs, scryptN: lightScryptN}
}

// SealKey encrypts key and writes it to path (0600, parent dir 0700)
func (s *KeySealer) SealKey(path string, key []byte, passphrase string) error {
	if passphrase == "" {
		return fmt.Errorf("passphrase is required")
	}

	salt := make([]byte, saltLen)
	if _, err := io.ReadFull(rand.Reader, salt); err != nil {
		return fmt.Errorf("failed to generate salt: %w", err)
	}

	params := kdfParams{N: s.scryptN, R: scryptR, P: scryptP}
	enc, err := deriveEncryption(passphrase, salt, params)
	if err != nil {
		return err
	}

	ciphertext, err := enc.EncryptBytes(key)
	if err != nil {
		return fmt.Errorf("failed to seal key: %w", err)
	}

	blob, err := json.Marshal(sealedKeyFile{
		Version:    sealedKeyVersion,
		KDF:        sealedKeyKDF,
		KDFParams:  params,
		Salt:       base64.StdEncoding.EncodeToString(salt),
		Ciphertext: base64.StdEncoding.EncodeToString(ciphertext),
	})
	if err != nil {
		return fmt.Errorf("failed to encode sealed key: %w", err)
	}

	if err := s.fs.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return fmt.Errorf("failed to create key directory: %w", err)
	}
	if err := afero.WriteFile(s.fs, path, blob, 0o600); err != nil {
		return fmt.Errorf("failed to write sealed key: %w", err)
	}
	return nil
}

// OpenKey reads and decrypts a file written by SealKey. The caller owns the
// returned buffer and should wipe it.
func (s *KeySealer) OpenKey(path string, passphrase string) ([]byte, error) {
	blob, err := afero.ReadFile(s.fs, path)
	if err != nil {
		return nil, fmt.Errorf("failed to read sealed key: %w", err)
	}

	var doc sealedKeyFile
	if err := json.Unmarshal(blob, &doc); err != nil {
		return nil, fmt.Errorf("%w: malformed file", ErrSealedKeyOpen)
	}
	if doc.Version != sealedKeyVersion || doc.KDF != sealedKeyKDF {
		return nil, fmt.Errorf("%w: unsupported format v%d/%s", ErrSealedKeyOpen, doc.Version, doc.KDF)
	}

	salt, err := base64.StdEncoding.DecodeString(doc.Salt)
	if err != nil {
		return nil, fmt.Errorf("%w: bad salt", ErrSealedKeyOpen)
	}
	ciphertext, err := base64.StdEncoding.DecodeString(doc.Ciphertext)
	if err != nil {
		return nil, fmt.Errorf("%w: bad ciphertext", ErrSealedKeyOpen)
	}

	enc, err := deriveEncryption(passphrase, salt, doc.KDFParams)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSealedKeyOpen, err)
	}

	key, err := enc.DecryptBytes(ciphertext)
	if err != nil {
		return nil, ErrSealedKeyOpen
	}
	return key, nil
}

func deriveEncryption(passphrase string, salt []byte, params kdfParams) (*Encryption, error) {
	derived, err := scrypt.Key([]byte(passphrase), salt, params.N, params.R, params.P, aes256KeyLen)
	if err != nil {
		return nil, fmt.Errorf("failed to derive key: %w", err)
	}
	defer zeroBytes(derived)

	return NewEncryption(derived)
}
