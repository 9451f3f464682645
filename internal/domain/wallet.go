// internal/domain/wallet.go
package domain

import (
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"
)

const (
	DefaultGasLimit            uint64 = 250000
	DefaultPollInterval               = 500 * time.Millisecond
	DefaultConfirmationTimeout        = 180 * time.Second

	// NativeDecimals is the fixed precision of the chain's native coin
	NativeDecimals uint8 = 18
)

// DefaultGasPriceMultiplier biases the suggested gas price toward faster inclusion
var DefaultGasPriceMultiplier = decimal.RequireFromString("1.1")

// WalletConfig holds the per-wallet chain settings
type WalletConfig struct {
	ChainID             *big.Int
	RPCURL              string
	GasLimitDefault     uint64
	GasPriceMultiplier  decimal.Decimal
	PollInterval        time.Duration
	ConfirmationTimeout time.Duration
}

// NewWalletConfig returns a config with the default gas and polling settings
func NewWalletConfig(chainID int64, rpcURL string) WalletConfig {
	return WalletConfig{
		ChainID:             big.NewInt(chainID),
		RPCURL:              rpcURL,
		GasLimitDefault:     DefaultGasLimit,
		GasPriceMultiplier:  DefaultGasPriceMultiplier,
		PollInterval:        DefaultPollInterval,
		ConfirmationTimeout: DefaultConfirmationTimeout,
	}
}

// Validate checks the config invariants
func (c WalletConfig) Validate() error {
	if c.ChainID == nil || c.ChainID.Sign() <= 0 {
		return fmt.Errorf("chain id must be positive")
	}
	if c.RPCURL == "" {
		return fmt.Errorf("rpc url is required")
	}
	if c.GasLimitDefault == 0 {
		return fmt.Errorf("default gas limit must be positive")
	}
	if c.GasPriceMultiplier.LessThan(decimal.NewFromInt(1)) {
		return fmt.Errorf("gas price multiplier must be >= 1.0, got %s", c.GasPriceMultiplier)
	}
	if c.PollInterval <= 0 {
		return fmt.Errorf("poll interval must be positive")
	}
	if c.ConfirmationTimeout <= 0 {
		return fmt.Errorf("confirmation timeout must be positive")
	}
	return nil
}

// Clone returns a deep copy so callers cannot mutate a wallet's settings
func (c WalletConfig) Clone() WalletConfig {
	out := c
	if c.ChainID != nil {
		out.ChainID = new(big.Int).Set(c.ChainID)
	}
	return out
}

// TokenBalance represents an ERC20 balance for the wallet address
type TokenBalance struct {
	TokenAddress common.Address
	Symbol       string
	Decimals     uint8
	RawBalance   *big.Int
	Balance      decimal.Decimal // RawBalance / 10^Decimals
}
