// internal/security/vault.go
package security

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Secret paths. The at-rest passphrase and the keystore password are kept apart.
const (
	KeyPassphrasePath    = "wallet/key-passphrase"
	KeystorePasswordPath = "wallet/keystore-password"
)

const defaultSecretTTL = 5 * time.Minute

// ErrSecretNotFound is returned when a provider has no value for a path
var ErrSecretNotFound = errors.New("secret not found")

// VaultProvider is a secret storage backend
type VaultProvider interface {
	GetSecret(ctx context.Context, path string) (string, error)
	SetSecret(ctx context.Context, path, value string) error
	DeleteSecret(ctx context.Context, path string) error
}

// Vault fronts a provider with a short-lived cache
type Vault struct {
	provider   VaultProvider
	cache      map[string]*cachedSecret
	cacheMutex sync.RWMutex
	cacheTTL   time.Duration
	now        func() time.Time
	logger     *zap.Logger
}

type cachedSecret struct {
	value     string
	expiresAt time.Time
}

// NewVault creates a vault with the default cache TTL
func NewVault(provider VaultProvider, logger *zap.Logger) *Vault {
	return &Vault{
		provider: provider,
		cache:    make(map[string]*cachedSecret),
		cacheTTL: defaultSecretTTL,
		now:      time.Now,
		logger:   logger,
	}
}

// GetKeyPassphrase returns the passphrase used to seal the signing key
func (v *Vault) GetKeyPassphrase(ctx context.Context) (string, error) {
	return v.GetSecret(ctx, KeyPassphrasePath)
}

// GetKeystorePassword returns the password of the v3 keystore file
func (v *Vault) GetKeystorePassword(ctx context.Context) (string, error) {
	return v.GetSecret(ctx, KeystorePasswordPath)
}

// GetSecret retrieves a secret, serving it from cache while fresh
func (v *Vault) GetSecret(ctx context.Context, path string) (string, error) {
	v.cacheMutex.RLock()
	cached, ok := v.cache[path]
	v.cacheMutex.RUnlock()
	if ok && v.now().Before(cached.expiresAt) {
		v.logger.Debug("Secret retrieved from cache", zap.String("path", path))
		return cached.value, nil
	}

	v.logger.Debug("Fetching secret from provider", zap.String("path", path))
	secret, err := v.provider.GetSecret(ctx, path)
	if err != nil {
		return "", fmt.Errorf("failed to get secret from vault: %w", err)
	}

	v.cacheMutex.Lock()
	v.cache[path] = &cachedSecret{
		value:     secret,
		expiresAt: v.now().Add(v.cacheTTL),
	}
	v.cacheMutex.Unlock()

	return secret, nil
}

// SetSecret stores a secret and drops the cached copy
func (v *Vault) SetSecret(ctx context.Context, path, value string) error {
	if err := v.provider.SetSecret(ctx, path, value); err != nil {
		return fmt.Errorf("failed to set secret in vault: %w", err)
	}

	v.invalidate(path)
	v.logger.Info("Secret updated in vault", zap.String("path", path))
	return nil
}

// DeleteSecret removes a secret
func (v *Vault) DeleteSecret(ctx context.Context, path string) error {
	if err := v.provider.DeleteSecret(ctx, path); err != nil {
		return fmt.Errorf("failed to delete secret: %w", err)
	}

	v.invalidate(path)
	v.logger.Info("Secret deleted from vault", zap.String("path", path))
	return nil
}

// ClearCache drops every cached secret. Call it once the wallet is unlocked.
func (v *Vault) ClearCache() {
	v.cacheMutex.Lock()
	v.cache = make(map[string]*cachedSecret)
	v.cacheMutex.Unlock()
}

func (v *Vault) invalidate(path string) {
	v.cacheMutex.Lock()
	delete(v.cache, path)
	v.cacheMutex.Unlock()
}

// EnvVaultProvider reads secrets from environment variables
type EnvVaultProvider struct{}

func NewEnvVaultProvider() *EnvVaultProvider {
	return &EnvVaultProvider{}
}

func (p *EnvVaultProvider) GetSecret(ctx context.Context, path string) (string, error) {
	envKey := pathToEnvKey(path)

	value := os.Getenv(envKey)
	if value == "" {
		return "", fmt.Errorf("%w: %s (env: %s)", ErrSecretNotFound, path, envKey)
	}
	return value, nil
}

func (p *EnvVaultProvider) SetSecret(ctx context.Context, path, value string) error {
	return os.Setenv(pathToEnvKey(path), value)
}

func (p *EnvVaultProvider) DeleteSecret(ctx context.Context, path string) error {
	return os.Unsetenv(pathToEnvKey(path))
}
