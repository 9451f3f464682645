// pkg/utils/units.go
package utils

import (
	"fmt"
	"math/big"
	"strings"

	"github.com/shopspring/decimal"
)

// ToDecimal converts a raw integer amount to whole units: raw / 10^decimals
func ToDecimal(raw *big.Int, decimals uint8) decimal.Decimal {
	if raw == nil {
		return decimal.Zero
	}
	return decimal.NewFromBigInt(raw, -int32(decimals))
}

// ParseUnits converts a human amount such as "1.5" to the smallest unit.
// Digits beyond the token precision are truncated.
func ParseUnits(amount string, decimals uint8) (*big.Int, error) {
	amount = strings.TrimSpace(amount)
	if amount == "" {
		return nil, fmt.Errorf("amount is required")
	}

	value, err := decimal.NewFromString(amount)
	if err != nil {
		return nil, fmt.Errorf("invalid amount format: %w", err)
	}
	if value.IsNegative() {
		return nil, fmt.Errorf("amount cannot be negative")
	}

	return value.Shift(int32(decimals)).BigInt(), nil
}

// FormatBalance renders raw as "<amount> <symbol>" with trailing zeros removed
func FormatBalance(raw *big.Int, decimals uint8, symbol string) string {
	formatted := ToDecimal(raw, decimals).String()
	if symbol == "" {
		return formatted
	}
	return fmt.Sprintf("%s %s", formatted, symbol)
}
