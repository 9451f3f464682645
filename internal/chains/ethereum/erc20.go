// internal/chains/ethereum/erc20.go
package ethereum

import (
	"bytes"
	"context"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/spf13/afero"
)

// ERC-20 ABI for the read and approval functions the wallet uses
const erc20ABI = `[
	{
		"constant": true,
		"inputs": [{"name": "_owner", "type": "address"}],
		"name": "balanceOf",
		"outputs": [{"name": "balance", "type": "uint256"}],
		"type": "function"
	},
	{
		"constant": false,
		"inputs": [
			{"name": "_to", "type": "address"},
			{"name": "_value", "type": "uint256"}
		],
		"name": "transfer",
		"outputs": [{"name": "", "type": "bool"}],
		"type": "function"
	},
	{
		"constant": false,
		"inputs": [
			{"name": "_spender", "type": "address"},
			{"name": "_value", "type": "uint256"}
		],
		"name": "approve",
		"outputs": [{"name": "", "type": "bool"}],
		"type": "function"
	},
	{
		"constant": true,
		"inputs": [],
		"name": "decimals",
		"outputs": [{"name": "", "type": "uint8"}],
		"type": "function"
	},
	{
		"constant": true,
		"inputs": [],
		"name": "symbol",
		"outputs": [{"name": "", "type": "string"}],
		"type": "function"
	}
]`

var requiredERC20Methods = []string{"decimals", "symbol", "balanceOf", "approve"}

// ContractCaller executes read-only contract calls
type ContractCaller interface {
	CallContract(ctx context.Context, contract common.Address, data []byte) ([]byte, error)
}

// ERC20ABI returns the parsed built-in ERC-20 ABI
func ERC20ABI() abi.ABI {
	parsed, err := abi.JSON(strings.NewReader(erc20ABI))
	if err != nil {
		panic(fmt.Sprintf("built-in ERC-20 ABI is invalid: %v", err))
	}
	return parsed
}

// ERC20Binder turns a token address into a callable contract handle
type ERC20Binder struct {
	abi abi.ABI
}

// NewERC20Binder uses the built-in ERC-20 ABI
func NewERC20Binder() *ERC20Binder {
	return &ERC20Binder{abi: ERC20ABI()}
}

// NewERC20BinderFromFile loads a token ABI definition from a JSON file
func NewERC20BinderFromFile(fs afero.Fs, path string) (*ERC20Binder, error) {
	raw, err := afero.ReadFile(fs, path)
	if err != nil {
		return nil, fmt.Errorf("failed to read ABI file: %w", err)
	}

	parsed, err := abi.JSON(bytes.NewReader(raw))
	if err != nil {
		return nil, fmt.Errorf("failed to parse ABI: %w", err)
	}

	for _, name := range requiredERC20Methods {
		if _, ok := parsed.Methods[name]; !ok {
			return nil, fmt.Errorf("ABI file %s is missing method %s", path, name)
		}
	}

	return &ERC20Binder{abi: parsed}, nil
}

// Bind returns a handle for the token at address
func (b *ERC20Binder) Bind(address common.Address) (*TokenContract, error) {
	if address == (common.Address{}) {
		return nil, fmt.Errorf("token address is required")
	}
	return &TokenContract{address: address, abi: b.abi}, nil
}

// TokenContract encodes ERC-20 calls and decodes their results for one token
type TokenContract struct {
	address common.Address
	abi     abi.ABI
}

// Address returns the token contract address
func (t *TokenContract) Address() common.Address {
	return t.address
}

// Decimals reads the token precision
func (t *TokenContract) Decimals(ctx context.Context, caller ContractCaller) (uint8, error) {
	out, err := t.call(ctx, caller, "decimals")
	if err != nil {
		return 0, err
	}

	decimals, ok := out[0].(uint8)
	if !ok {
		return 0, fmt.Errorf("unexpected decimals type %T", out[0])
	}
	return decimals, nil
}

// Symbol reads the token ticker
func (t *TokenContract) Symbol(ctx context.Context, caller ContractCaller) (string, error) {
	out, err := t.call(ctx, caller, "symbol")
	if err != nil {
		return "", err
	}

	symbol, ok := out[0].(string)
	if !ok {
		return "", fmt.Errorf("unexpected symbol type %T", out[0])
	}
	return symbol, nil
}

// BalanceOf reads the raw token balance of owner
func (t *TokenContract) BalanceOf(ctx context.Context, caller ContractCaller, owner common.Address) (*big.Int, error) {
	data, err := t.abi.Pack("balanceOf", owner)
	if err != nil {
		return nil, fmt.Errorf("failed to pack balanceOf: %w", err)
	}

	result, err := caller.CallContract(ctx, t.address, data)
	if err != nil {
		return nil, err
	}

	// Address never interacted with the token
	if len(result) == 0 {
		return big.NewInt(0), nil
	}

	out, err := t.abi.Unpack("balanceOf", result)
	if err != nil {
		return nil, fmt.Errorf("failed to unpack balance: %w", err)
	}

	balance, ok := out[0].(*big.Int)
	if !ok || balance == nil {
		return big.NewInt(0), nil
	}
	return balance, nil
}

// ApproveData encodes approve(spender, amount)
func (t *TokenContract) ApproveData(spender common.Address, amount *big.Int) ([]byte, error) {
	data, err := t.abi.Pack("approve", spender, amount)
	if err != nil {
		return nil, fmt.Errorf("failed to pack approve: %w", err)
	}
	return data, nil
}

// TransferData encodes transfer(to, amount)
func (t *TokenContract) TransferData(to common.Address, amount *big.Int) ([]byte, error) {
	data, err := t.abi.Pack("transfer", to, amount)
	if err != nil {
		return nil, fmt.Errorf("failed to pack transfer: %w", err)
	}
	return data, nil
}

func (t *TokenContract) call(ctx context.Context, caller ContractCaller, method string) ([]interface{}, error) {
	data, err := t.abi.Pack(method)
	if err != nil {
		return nil, fmt.Errorf("failed to pack %s: %w", method, err)
	}

	result, err := caller.CallContract(ctx, t.address, data)
	if err != nil {
		return nil, err
	}

	out, err := t.abi.Unpack(method, result)
	if err != nil {
		return nil, fmt.Errorf("failed to unpack %s: %w", method, err)
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("empty %s result", method)
	}
	return out, nil
}
