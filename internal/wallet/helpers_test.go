package wallet

import (
	"context"
	"errors"
	"math/big"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"evm-wallet/internal/chains/ethereum"
	"evm-wallet/internal/domain"
	"evm-wallet/internal/domain/mocks"

	"github.com/ethereum/go-ethereum/common"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
	"go.uber.org/zap"
)

const testKeyHex = "4c0883a69102937d6231471b5dbb6204fe5129617082792ae468d01a3f362318"

var (
	testToken   = common.HexToAddress("0xA0b86991c6218b36c1d19D4a2e9Eb0cE3606eB48")
	testSpender = common.HexToAddress("0x7a250d5630B4cF539739dF2C5dAcb4c659F2488D")
	testTo      = common.HexToAddress("0x000000000000000000000000000000000000dEaD")
)

func testConfig() domain.WalletConfig {
	cfg := domain.NewWalletConfig(1, "http://localhost:8545")
	cfg.GasLimitDefault = 21000
	cfg.PollInterval = 2 * time.Millisecond
	cfg.ConfirmationTimeout = 60 * time.Millisecond
	return cfg
}

func newTestWallet(t *testing.T, client domain.ChainClient, opts ...Option) *Wallet {
	t.Helper()

	base := []Option{
		WithFilesystem(afero.NewMemMapFs()),
		WithKeystoreCodec(ethereum.NewLightKeystoreCodec()),
	}
	w, err := New(testConfig(), client, nil, zap.NewNop(), append(base, opts...)...)
	require.NoError(t, err)
	return w
}

// countingBinder counts Bind calls
type countingBinder struct {
	inner *ethereum.ERC20Binder
	calls atomic.Int32
}

func newCountingBinder() *countingBinder {
	return &countingBinder{inner: ethereum.NewERC20Binder()}
}

func (b *countingBinder) Bind(address common.Address) (*ethereum.TokenContract, error) {
	b.calls.Add(1)
	return b.inner.Bind(address)
}

// tokenNode answers ERC-20 reads for a single token
type tokenNode struct {
	decimals uint8
	symbol   string
	balance  *big.Int

	failSymbol atomic.Bool
	mu         sync.Mutex
	calls      map[string]int
}

func newTokenNode(decimals uint8, symbol string, balance int64) *tokenNode {
	return &tokenNode{
		decimals: decimals,
		symbol:   symbol,
		balance:  big.NewInt(balance),
		calls:    make(map[string]int),
	}
}

func (n *tokenNode) CallContract(_ context.Context, _ common.Address, data []byte) ([]byte, error) {
	parsed := ethereum.ERC20ABI()
	method, err := parsed.MethodById(data[:4])
	if err != nil {
		return nil, err
	}

	n.mu.Lock()
	n.calls[method.Name]++
	n.mu.Unlock()

	switch method.Name {
	case "decimals":
		return method.Outputs.Pack(n.decimals)
	case "symbol":
		if n.failSymbol.Load() {
			return nil, errors.New("execution reverted")
		}
		return method.Outputs.Pack(n.symbol)
	case "balanceOf":
		return method.Outputs.Pack(n.balance)
	}
	return nil, errors.New("unsupported method " + method.Name)
}

func (n *tokenNode) count(method string) int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.calls[method]
}

// fakeRecorder keeps journal writes in memory
type fakeRecorder struct {
	mu       sync.Mutex
	created  []*domain.TransactionRecord
	statuses map[common.Hash]domain.TxStatus
	err      error
}

func newFakeRecorder() *fakeRecorder {
	return &fakeRecorder{statuses: make(map[common.Hash]domain.TxStatus)}
}

func (r *fakeRecorder) Create(_ context.Context, rec *domain.TransactionRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.created = append(r.created, rec)
	return r.err
}

func (r *fakeRecorder) UpdateStatus(_ context.Context, hash common.Hash, status domain.TxStatus, _ *uint64, _ time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.statuses[hash] = status
	return r.err
}

// fakeAuditor collects event types
type fakeAuditor struct {
	mu     sync.Mutex
	events []string
	last   map[string]map[string]string
}

func (a *fakeAuditor) Record(eventType string, payload map[string]string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.events = append(a.events, eventType)
	if a.last == nil {
		a.last = make(map[string]map[string]string)
	}
	a.last[eventType] = payload
}

func newMockClient(t *testing.T) *mocks.MockChainClient {
	ctrl := gomock.NewController(t)
	return mocks.NewMockChainClient(ctrl)
}

// asClient exposes the node as a ChainClient that only serves contract calls
func (n *tokenNode) asClient(t *testing.T) *mocks.MockChainClient {
	client := newMockClient(t)
	client.EXPECT().CallContract(gomock.Any(), gomock.Any(), gomock.Any()).DoAndReturn(n.CallContract).AnyTimes()
	return client
}
