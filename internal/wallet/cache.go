// internal/wallet/cache.go
package wallet

import (
	"sync"

	"evm-wallet/internal/chains/ethereum"

	"github.com/ethereum/go-ethereum/common"
)

// ContractBinder resolves a token address into a contract handle
type ContractBinder interface {
	Bind(address common.Address) (*ethereum.TokenContract, error)
}

// ContractCache holds one handle per token address for the life of the wallet.
// Entries are never evicted.
type ContractCache struct {
	binder    ContractBinder
	mu        sync.RWMutex
	contracts map[common.Address]*ethereum.TokenContract
}

func NewContractCache(binder ContractBinder) *ContractCache {
	return &ContractCache{
		binder:    binder,
		contracts: make(map[common.Address]*ethereum.TokenContract),
	}
}

// GetOrResolve returns the cached handle, binding and storing it on first use.
// Two goroutines racing on a cold address may both bind; the first store wins
// and both get that handle.
func (c *ContractCache) GetOrResolve(token common.Address) (*ethereum.TokenContract, error) {
	if contract, ok := c.Lookup(token); ok {
		return contract, nil
	}

	contract, err := c.binder.Bind(token)
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if existing, ok := c.contracts[token]; ok {
		return existing, nil
	}
	c.contracts[token] = contract
	return contract, nil
}

// Lookup returns a handle only if it is already resolved
func (c *ContractCache) Lookup(token common.Address) (*ethereum.TokenContract, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	contract, ok := c.contracts[token]
	return contract, ok
}

// Len returns the number of resolved tokens
func (c *ContractCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.contracts)
}
