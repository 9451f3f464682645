// internal/wallet/nonce.go
package wallet

import (
	"context"
	"sync"

	"evm-wallet/internal/domain"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"
)

// NonceSource hands out nonces for new transactions
type NonceSource interface {
	Next(ctx context.Context, account common.Address) (uint64, error)
	// Reset forgets local state for account after a failed submission
	Reset(account common.Address)
}

// ChainNonceSource asks the node every time. Two concurrent builds for the
// same account can observe the same nonce.
type ChainNonceSource struct {
	client domain.ChainClient
}

func NewChainNonceSource(client domain.ChainClient) *ChainNonceSource {
	return &ChainNonceSource{client: client}
}

func (s *ChainNonceSource) Next(ctx context.Context, account common.Address) (uint64, error) {
	return s.client.PendingNonceAt(ctx, account)
}

func (s *ChainNonceSource) Reset(common.Address) {}

// NonceSequencer reserves nonces in-process. It seeds from the node once per
// account and then counts locally, so concurrent builds never share a nonce.
type NonceSequencer struct {
	client domain.ChainClient
	logger *zap.Logger

	mu   sync.Mutex
	next map[common.Address]uint64
}

func NewNonceSequencer(client domain.ChainClient, logger *zap.Logger) *NonceSequencer {
	return &NonceSequencer{
		client: client,
		logger: logger,
		next:   make(map[common.Address]uint64),
	}
}

func (s *NonceSequencer) Next(ctx context.Context, account common.Address) (uint64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	nonce, ok := s.next[account]
	if !ok {
		seed, err := s.client.PendingNonceAt(ctx, account)
		if err != nil {
			return 0, err
		}
		nonce = seed
		s.logger.Debug("Nonce sequencer seeded",
			zap.String("address", account.Hex()),
			zap.Uint64("nonce", seed))
	}

	s.next[account] = nonce + 1
	return nonce, nil
}

// Reset drops the local counter; the next reservation reseeds from the node
func (s *NonceSequencer) Reset(account common.Address) {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.next, account)
}
