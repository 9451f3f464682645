// internal/config/config.go
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"evm-wallet/internal/domain"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

type Config struct {
	Ethereum EthereumConfig
	Wallet   WalletConfig
	Database DatabaseConfig
	Worker   WorkerConfig
}

type EthereumConfig struct {
	Network string // mainnet, goerli, sepolia, or any custom name
	RPCURL  string
	ChainID int64
}

type WalletConfig struct {
	GasLimitDefault     uint64
	GasPriceMultiplier  decimal.Decimal
	PollInterval        time.Duration
	ConfirmationTimeout time.Duration
	NonceSequencer      bool
	KeystorePath        string
	SealedKeyPath       string
	AuditLogPath        string
	ERC20ABIPath        string
}

type DatabaseConfig struct {
	URL string // empty disables the transaction journal
}

type WorkerConfig struct {
	ReconcileInterval time.Duration
}

func Load(logger *zap.Logger) (*Config, error) {
	// ============================================================================
	// Ethereum Configuration
	// ============================================================================
	ethNetwork := getEnv("ETHEREUM_NETWORK", "sepolia")
	ethRPCURL := getEnv("ETHEREUM_RPC_URL", "")

	// Default RPC URLs based on network
	if ethRPCURL == "" {
		switch ethNetwork {
		case "mainnet":
			ethRPCURL = "https://ethereum-rpc.publicnode.com"
		case "goerli":
			ethRPCURL = "https://ethereum-goerli-rpc.publicnode.com"
		case "sepolia":
			ethRPCURL = "https://ethereum-sepolia-rpc.publicnode.com"
		default:
			return nil, fmt.Errorf("ETHEREUM_RPC_URL is required for network %q", ethNetwork)
		}
		logger.Warn("ETHEREUM_RPC_URL not set, using public endpoint",
			zap.String("network", ethNetwork),
			zap.String("rpc", ethRPCURL))
	}

	// Chain ID based on network
	var ethChainID int64
	switch ethNetwork {
	case "mainnet":
		ethChainID = 1
	case "goerli":
		ethChainID = 5
	case "sepolia":
		ethChainID = 11155111
	default:
		ethChainID = getEnvAsInt64("ETHEREUM_CHAIN_ID", 0)
		if ethChainID <= 0 {
			return nil, fmt.Errorf("ETHEREUM_CHAIN_ID is required for network %q", ethNetwork)
		}
	}

	// ============================================================================
	// Wallet Configuration
	// ============================================================================
	multiplier, err := getEnvAsDecimal("WALLET_GAS_PRICE_MULTIPLIER", domain.DefaultGasPriceMultiplier)
	if err != nil {
		return nil, err
	}

	walletCfg := WalletConfig{
		GasLimitDefault:     getEnvAsUint64("WALLET_GAS_LIMIT_DEFAULT", domain.DefaultGasLimit),
		GasPriceMultiplier:  multiplier,
		PollInterval:        getEnvAsSeconds("WALLET_POLL_INTERVAL_SECONDS", domain.DefaultPollInterval),
		ConfirmationTimeout: getEnvAsSeconds("WALLET_CONFIRMATION_TIMEOUT_SECONDS", domain.DefaultConfirmationTimeout),
		NonceSequencer:      getEnvAsBool("WALLET_NONCE_SEQUENCER", false),
		KeystorePath:        getEnv("WALLET_KEYSTORE_PATH", ""),
		SealedKeyPath:       getEnv("WALLET_SEALED_KEY_PATH", "./keys/signer.json"),
		AuditLogPath:        getEnv("WALLET_AUDIT_LOG_PATH", "./logs/audit.log"),
		ERC20ABIPath:        getEnv("ERC20_ABI_PATH", ""),
	}

	cfg := &Config{
		Ethereum: EthereumConfig{
			Network: ethNetwork,
			RPCURL:  ethRPCURL,
			ChainID: ethChainID,
		},
		Wallet: walletCfg,
		Database: DatabaseConfig{
			URL: os.Getenv("DATABASE_URL"),
		},
		Worker: WorkerConfig{
			ReconcileInterval: getEnvAsSeconds("RECONCILE_INTERVAL_SECONDS", 30*time.Second),
		},
	}

	if _, err := cfg.WalletSettings(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// WalletSettings converts the env config into validated wallet settings
func (c *Config) WalletSettings() (domain.WalletConfig, error) {
	settings := domain.NewWalletConfig(c.Ethereum.ChainID, c.Ethereum.RPCURL)
	settings.GasLimitDefault = c.Wallet.GasLimitDefault
	settings.GasPriceMultiplier = c.Wallet.GasPriceMultiplier
	settings.PollInterval = c.Wallet.PollInterval
	settings.ConfirmationTimeout = c.Wallet.ConfirmationTimeout

	if err := settings.Validate(); err != nil {
		return domain.WalletConfig{}, fmt.Errorf("invalid wallet config: %w", err)
	}
	return settings, nil
}

// ============================================================================
// Helper Functions
// ============================================================================

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt64(key string, defaultValue int64) int64 {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.ParseInt(valueStr, 10, 64)
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvAsUint64(key string, defaultValue uint64) uint64 {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.ParseUint(valueStr, 10, 64)
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.ParseBool(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

// getEnvAsSeconds reads fractional seconds, e.g. "0.5"
func getEnvAsSeconds(key string, defaultValue time.Duration) time.Duration {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	seconds, err := strconv.ParseFloat(valueStr, 64)
	if err != nil || seconds <= 0 {
		return defaultValue
	}
	return time.Duration(seconds * float64(time.Second))
}

func getEnvAsDecimal(key string, defaultValue decimal.Decimal) (decimal.Decimal, error) {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue, nil
	}
	value, err := decimal.NewFromString(valueStr)
	if err != nil {
		return decimal.Decimal{}, fmt.Errorf("invalid %s: %w", key, err)
	}
	return value, nil
}
