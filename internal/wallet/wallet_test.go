package wallet

import (
	"context"
	"errors"
	"math/big"
	"strings"
	"testing"
	"time"

	"evm-wallet/internal/chains/ethereum"
	"evm-wallet/internal/domain"
	"evm-wallet/internal/security"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/math"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestNew_RejectsInvalidConfig(t *testing.T) {
	cfg := testConfig()
	cfg.GasLimitDefault = 0
	_, err := New(cfg, newMockClient(t), nil, zap.NewNop())
	assert.Error(t, err)

	_, err = New(testConfig(), nil, nil, zap.NewNop())
	assert.Error(t, err)
}

func TestNew_CopiesConfig(t *testing.T) {
	cfg := testConfig()
	w, err := New(cfg, newMockClient(t), nil, zap.NewNop())
	require.NoError(t, err)

	cfg.ChainID.SetInt64(999)
	assert.Equal(t, int64(1), w.Config().ChainID.Int64())
}

func TestWallet_UninitializedOperations(t *testing.T) {
	w := newTestWallet(t, newMockClient(t))

	_, err := w.Address()
	assert.ErrorIs(t, err, domain.ErrUninitializedWallet)

	_, err = w.NativeBalance(context.Background())
	assert.ErrorIs(t, err, domain.ErrUninitializedWallet)

	_, err = w.SendTransaction(context.Background(), testTo, big.NewInt(1), nil, nil)
	assert.ErrorIs(t, err, domain.ErrUninitializedWallet)

	_, err = w.Submit(context.Background(), &domain.TransactionRequest{})
	assert.ErrorIs(t, err, domain.ErrUninitializedWallet)

	assert.ErrorIs(t, w.ExportEncryptedKeystore("pw", "/ks/key.json"), domain.ErrUninitializedWallet)
}

func TestWallet_InitializeFreshIdentity(t *testing.T) {
	w := newTestWallet(t, newMockClient(t))
	require.NoError(t, w.Initialize(""))

	address, err := w.Address()
	require.NoError(t, err)
	assert.NotEqual(t, common.Address{}, address)
	assert.True(t, common.IsHexAddress(address.Hex()))
}

func TestWallet_InitializeFromRawKey(t *testing.T) {
	w := newTestWallet(t, newMockClient(t))
	require.NoError(t, w.Initialize("0x"+testKeyHex))

	key, err := ethereum.ParsePrivateKey(testKeyHex)
	require.NoError(t, err)

	address, err := w.Address()
	require.NoError(t, err)
	assert.Equal(t, ethereum.PrivateKeyToAddress(key), address)
}

func TestWallet_InitializeInvalidKey(t *testing.T) {
	w := newTestWallet(t, newMockClient(t))

	err := w.Initialize("0xdeadbeef")
	assert.ErrorIs(t, err, domain.ErrInvalidKeyFormat)

	_, err = w.Address()
	assert.ErrorIs(t, err, domain.ErrUninitializedWallet)
}

func TestWallet_KeyNeverLogged(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	fs := afero.NewMemMapFs()
	w, err := New(testConfig(), newMockClient(t), nil, zap.New(core),
		WithFilesystem(fs), WithKeystoreCodec(ethereum.NewLightKeystoreCodec()))
	require.NoError(t, err)

	require.NoError(t, w.Initialize(testKeyHex))
	require.NoError(t, w.ExportEncryptedKeystore("pw", "/ks/key.json"))
	require.NoError(t, w.LoadEncryptedKeystore("/ks/key.json", "pw"))
	require.Error(t, w.Initialize(testKeyHex+"ff"))

	require.NotZero(t, logs.Len())
	for _, entry := range logs.All() {
		assert.NotContains(t, entry.Message, testKeyHex)
		for key, value := range entry.ContextMap() {
			assert.NotContains(t, strings.ToLower(toString(value)), testKeyHex, "field %s", key)
		}
	}
}

func toString(v interface{}) string {
	if s, ok := v.(string); ok {
		return s
	}
	return ""
}

func TestWallet_KeystoreRoundTrip(t *testing.T) {
	fs := afero.NewMemMapFs()
	auditor := &fakeAuditor{}
	opts := []Option{WithFilesystem(fs), WithKeystoreCodec(ethereum.NewLightKeystoreCodec()), WithAuditor(auditor)}

	client := newMockClient(t)
	original, err := New(testConfig(), client, nil, zap.NewNop(), opts...)
	require.NoError(t, err)
	require.NoError(t, original.Initialize(""))
	require.NoError(t, original.ExportEncryptedKeystore("s3cret", "/data/keystore/wallet.json"))

	info, err := fs.Stat("/data/keystore")
	require.NoError(t, err)
	assert.True(t, info.IsDir())

	restored, err := FromEncryptedKeystore(testConfig(), client, nil, zap.NewNop(), "/data/keystore/wallet.json", "s3cret", opts...)
	require.NoError(t, err)

	want, err := original.Address()
	require.NoError(t, err)
	got, err := restored.Address()
	require.NoError(t, err)
	assert.Equal(t, want, got)

	assert.Contains(t, auditor.events, security.EventKeystoreExported)
	assert.Contains(t, auditor.events, security.EventKeystoreImported)
}

func TestWallet_KeystoreWrongPassword(t *testing.T) {
	fs := afero.NewMemMapFs()
	opts := []Option{WithFilesystem(fs), WithKeystoreCodec(ethereum.NewLightKeystoreCodec())}

	client := newMockClient(t)
	w, err := New(testConfig(), client, nil, zap.NewNop(), opts...)
	require.NoError(t, err)
	require.NoError(t, w.Initialize(""))
	require.NoError(t, w.ExportEncryptedKeystore("right", "/ks/w.json"))

	_, err = FromEncryptedKeystore(testConfig(), client, nil, zap.NewNop(), "/ks/w.json", "wrong", opts...)
	assert.ErrorIs(t, err, domain.ErrKeystoreDecryption)

	_, err = FromEncryptedKeystore(testConfig(), client, nil, zap.NewNop(), "/ks/missing.json", "right", opts...)
	assert.ErrorIs(t, err, domain.ErrKeystoreDecryption)
}

func TestWallet_SignedTransactionRecoversToWallet(t *testing.T) {
	client := newMockClient(t)
	w := newTestWallet(t, client)
	require.NoError(t, w.Initialize(testKeyHex))
	address, err := w.Address()
	require.NoError(t, err)

	client.EXPECT().PendingNonceAt(gomock.Any(), address).Return(uint64(5), nil)
	client.EXPECT().EstimateGas(gomock.Any(), gomock.Any()).Return(uint64(0), errors.New("cannot simulate"))

	var broadcast *types.Transaction
	client.EXPECT().SendRawTransaction(gomock.Any(), gomock.Any()).DoAndReturn(
		func(_ context.Context, raw []byte) (common.Hash, error) {
			broadcast = new(types.Transaction)
			require.NoError(t, broadcast.UnmarshalBinary(raw))
			return broadcast.Hash(), nil
		})

	req, err := w.BuildTransaction(context.Background(), testTo, big.NewInt(0), nil, big.NewInt(100))
	require.NoError(t, err)
	assert.Equal(t, uint64(5), req.Nonce)
	assert.Equal(t, big.NewInt(100), req.GasPrice)
	assert.Equal(t, uint64(21000), req.GasLimit)

	handle, err := w.Submit(context.Background(), req)
	require.NoError(t, err)
	require.NotNil(t, broadcast)
	assert.Equal(t, broadcast.Hash(), handle.Hash)
	assert.False(t, handle.SubmittedAt.IsZero())

	signer, err := ethereum.RecoverSigner(broadcast, big.NewInt(1))
	require.NoError(t, err)
	assert.Equal(t, address, signer)
	assert.Equal(t, uint64(5), broadcast.Nonce())
	assert.Equal(t, uint64(21000), broadcast.Gas())
	assert.Equal(t, big.NewInt(100), broadcast.GasPrice())
	assert.Equal(t, testTo, *broadcast.To())
}

func TestWallet_TokenBalanceAndApproveDefault(t *testing.T) {
	node := newTokenNode(6, "USDC", 1500000)
	client := newMockClient(t)
	client.EXPECT().CallContract(gomock.Any(), testToken, gomock.Any()).DoAndReturn(node.CallContract).AnyTimes()

	auditor := &fakeAuditor{}
	w := newTestWallet(t, client, WithAuditor(auditor))
	require.NoError(t, w.Initialize(testKeyHex))
	address, _ := w.Address()

	_, err := w.ApproveToken(context.Background(), testToken, testSpender, nil)
	require.ErrorIs(t, err, domain.ErrTokenNotInitialized)

	balance, err := w.TokenBalance(context.Background(), testToken)
	require.NoError(t, err)
	assert.Equal(t, "1.5", balance.Balance.String())

	client.EXPECT().PendingNonceAt(gomock.Any(), address).Return(uint64(0), nil)
	client.EXPECT().SuggestGasPrice(gomock.Any()).Return(big.NewInt(1000), nil)
	client.EXPECT().EstimateGas(gomock.Any(), gomock.Any()).Return(uint64(46000), nil)

	var broadcast *types.Transaction
	client.EXPECT().SendRawTransaction(gomock.Any(), gomock.Any()).DoAndReturn(
		func(_ context.Context, raw []byte) (common.Hash, error) {
			broadcast = new(types.Transaction)
			require.NoError(t, broadcast.UnmarshalBinary(raw))
			return broadcast.Hash(), nil
		})

	handle, err := w.ApproveToken(context.Background(), testToken, testSpender, nil)
	require.NoError(t, err)
	require.NotNil(t, broadcast)

	assert.Equal(t, testToken, *broadcast.To())
	assert.Equal(t, 0, broadcast.Value().Sign())
	assert.Equal(t, big.NewInt(1100), broadcast.GasPrice())
	assert.Equal(t, uint64(50600), broadcast.Gas())

	approve := ethereum.ERC20ABI().Methods["approve"]
	assert.Equal(t, approve.ID, broadcast.Data()[:4])
	args, err := approve.Inputs.Unpack(broadcast.Data()[4:])
	require.NoError(t, err)
	assert.Equal(t, testSpender, args[0])
	assert.Equal(t, 0, math.MaxBig256.Cmp(args[1].(*big.Int)))

	assert.Equal(t, handle.Hash.Hex(), auditor.last[security.EventTokenApproved]["tx_hash"])
	assert.Equal(t, math.MaxBig256.String(), auditor.last[security.EventTokenApproved]["amount"])
}

func TestWallet_ApproveExplicitAmount(t *testing.T) {
	node := newTokenNode(18, "DAI", 0)
	client := newMockClient(t)
	client.EXPECT().CallContract(gomock.Any(), testToken, gomock.Any()).DoAndReturn(node.CallContract).AnyTimes()
	client.EXPECT().PendingNonceAt(gomock.Any(), gomock.Any()).Return(uint64(1), nil)
	client.EXPECT().SuggestGasPrice(gomock.Any()).Return(big.NewInt(10), nil)
	client.EXPECT().EstimateGas(gomock.Any(), gomock.Any()).Return(uint64(30000), nil)

	var data []byte
	client.EXPECT().SendRawTransaction(gomock.Any(), gomock.Any()).DoAndReturn(
		func(_ context.Context, raw []byte) (common.Hash, error) {
			tx := new(types.Transaction)
			require.NoError(t, tx.UnmarshalBinary(raw))
			data = tx.Data()
			return tx.Hash(), nil
		})

	w := newTestWallet(t, client)
	require.NoError(t, w.Initialize(""))
	_, err := w.TokenBalance(context.Background(), testToken)
	require.NoError(t, err)

	_, err = w.ApproveToken(context.Background(), testToken, testSpender, big.NewInt(500))
	require.NoError(t, err)

	args, err := ethereum.ERC20ABI().Methods["approve"].Inputs.Unpack(data[4:])
	require.NoError(t, err)
	assert.Equal(t, big.NewInt(500), args[1])
}

func TestWallet_JournalsAndAuditsLifecycle(t *testing.T) {
	client := newMockClient(t)
	recorder := newFakeRecorder()
	auditor := &fakeAuditor{}
	w := newTestWallet(t, client, WithRecorder(recorder), WithAuditor(auditor))
	require.NoError(t, w.Initialize(testKeyHex))

	client.EXPECT().PendingNonceAt(gomock.Any(), gomock.Any()).Return(uint64(2), nil)
	client.EXPECT().SuggestGasPrice(gomock.Any()).Return(big.NewInt(100), nil)
	client.EXPECT().EstimateGas(gomock.Any(), gomock.Any()).Return(uint64(21000), nil)
	client.EXPECT().SendRawTransaction(gomock.Any(), gomock.Any()).DoAndReturn(
		func(_ context.Context, raw []byte) (common.Hash, error) {
			tx := new(types.Transaction)
			require.NoError(t, tx.UnmarshalBinary(raw))
			return tx.Hash(), nil
		})

	handle, err := w.SendTransaction(context.Background(), testTo, big.NewInt(10), nil, nil)
	require.NoError(t, err)

	client.EXPECT().TransactionReceipt(gomock.Any(), handle.Hash).
		Return(&domain.Receipt{TxHash: handle.Hash, Success: true, BlockNumber: 77}, nil)

	receipt, err := w.WaitForTransaction(context.Background(), handle)
	require.NoError(t, err)
	assert.Equal(t, uint64(77), receipt.BlockNumber)

	require.Len(t, recorder.created, 1)
	rec := recorder.created[0]
	assert.Equal(t, handle.Hash, rec.Hash)
	assert.Equal(t, uint64(2), rec.Nonce)
	assert.Equal(t, domain.TxStatusPending, rec.Status)
	assert.Equal(t, int64(1), rec.ChainID)
	assert.Equal(t, domain.TxStatusConfirmed, recorder.statuses[handle.Hash])

	assert.Equal(t, []string{
		security.EventWalletInitialized,
		security.EventTransactionSubmitted,
		security.EventTransactionResolved,
	}, auditor.events)
}

func TestWallet_TimeoutRecordedAsTimedOut(t *testing.T) {
	client := newMockClient(t)
	recorder := newFakeRecorder()
	w := newTestWallet(t, client, WithRecorder(recorder))

	client.EXPECT().TransactionReceipt(gomock.Any(), testHash).Return(nil, domain.ErrReceiptNotFound).AnyTimes()

	_, err := w.WaitForTransaction(context.Background(), &domain.TransactionHandle{Hash: testHash, SubmittedAt: time.Now()})
	require.ErrorIs(t, err, domain.ErrConfirmationTimeout)
	assert.Equal(t, domain.TxStatusTimedOut, recorder.statuses[testHash])
}

func TestWallet_JournalFailureDoesNotFailSubmission(t *testing.T) {
	client := newMockClient(t)
	recorder := newFakeRecorder()
	recorder.err = errors.New("db down")
	w := newTestWallet(t, client, WithRecorder(recorder))
	require.NoError(t, w.Initialize(""))

	client.EXPECT().PendingNonceAt(gomock.Any(), gomock.Any()).Return(uint64(0), nil)
	client.EXPECT().EstimateGas(gomock.Any(), gomock.Any()).Return(uint64(21000), nil)
	client.EXPECT().SendRawTransaction(gomock.Any(), gomock.Any()).Return(testHash, nil)

	handle, err := w.SendTransaction(context.Background(), testTo, nil, nil, big.NewInt(1))
	require.NoError(t, err)
	assert.Equal(t, testHash, handle.Hash)
}

func TestWallet_SequencerResetsAfterFailedBroadcast(t *testing.T) {
	client := newMockClient(t)
	w := newTestWallet(t, client, WithNonceSequencer())
	require.NoError(t, w.Initialize(""))

	client.EXPECT().PendingNonceAt(gomock.Any(), gomock.Any()).Return(uint64(4), nil).Times(2)
	client.EXPECT().EstimateGas(gomock.Any(), gomock.Any()).Return(uint64(21000), nil).Times(3)

	var nonces []uint64
	record := func(_ context.Context, raw []byte) (common.Hash, error) {
		tx := new(types.Transaction)
		require.NoError(t, tx.UnmarshalBinary(raw))
		nonces = append(nonces, tx.Nonce())
		return tx.Hash(), nil
	}
	gomock.InOrder(
		client.EXPECT().SendRawTransaction(gomock.Any(), gomock.Any()).DoAndReturn(record),
		client.EXPECT().SendRawTransaction(gomock.Any(), gomock.Any()).Return(common.Hash{}, errors.New("nonce too low")),
		client.EXPECT().SendRawTransaction(gomock.Any(), gomock.Any()).DoAndReturn(record),
	)

	ctx := context.Background()
	_, err := w.SendTransaction(ctx, testTo, nil, nil, big.NewInt(1))
	require.NoError(t, err)
	_, err = w.SendTransaction(ctx, testTo, nil, nil, big.NewInt(1))
	require.Error(t, err)
	_, err = w.SendTransaction(ctx, testTo, nil, nil, big.NewInt(1))
	require.NoError(t, err)

	assert.Equal(t, []uint64{4, 4}, nonces)
}

func TestWallet_CloseWipesIdentity(t *testing.T) {
	w := newTestWallet(t, newMockClient(t))
	require.NoError(t, w.Initialize(""))

	w.Close()
	_, err := w.Address()
	assert.ErrorIs(t, err, domain.ErrUninitializedWallet)

	w.Close()
}

func TestWallet_SubmitRejectsForeignSender(t *testing.T) {
	client := newMockClient(t)
	recorder := newFakeRecorder()
	w := newTestWallet(t, client, WithRecorder(recorder))
	require.NoError(t, w.Initialize(testKeyHex))

	_, err := w.Submit(context.Background(), &domain.TransactionRequest{
		From:     testSpender,
		To:       testTo,
		GasPrice: big.NewInt(1),
		GasLimit: 21000,
		ChainID:  big.NewInt(1),
	})
	assert.ErrorIs(t, err, domain.ErrSenderMismatch)
	assert.Empty(t, recorder.created)
}

func TestWallet_SubmitStampsMissingSender(t *testing.T) {
	client := newMockClient(t)
	recorder := newFakeRecorder()
	w := newTestWallet(t, client, WithRecorder(recorder))
	require.NoError(t, w.Initialize(testKeyHex))
	address, err := w.Address()
	require.NoError(t, err)

	client.EXPECT().SendRawTransaction(gomock.Any(), gomock.Any()).Return(testHash, nil)

	req := &domain.TransactionRequest{To: testTo, GasPrice: big.NewInt(1), GasLimit: 21000, ChainID: big.NewInt(1)}
	_, err = w.Submit(context.Background(), req)
	require.NoError(t, err)

	require.Len(t, recorder.created, 1)
	assert.Equal(t, address, recorder.created[0].From)
	assert.Equal(t, common.Address{}, req.From)
}

func TestWallet_TransferToken(t *testing.T) {
	node := newTokenNode(6, "USDC", 1500000)
	client := newMockClient(t)
	client.EXPECT().CallContract(gomock.Any(), testToken, gomock.Any()).DoAndReturn(node.CallContract).AnyTimes()

	auditor := &fakeAuditor{}
	w := newTestWallet(t, client, WithAuditor(auditor))
	require.NoError(t, w.Initialize(testKeyHex))

	_, err := w.TransferToken(context.Background(), testToken, testTo, big.NewInt(1))
	require.ErrorIs(t, err, domain.ErrTokenNotInitialized)

	_, err = w.TokenBalance(context.Background(), testToken)
	require.NoError(t, err)

	_, err = w.TransferToken(context.Background(), testToken, testTo, big.NewInt(0))
	assert.Error(t, err)

	client.EXPECT().PendingNonceAt(gomock.Any(), gomock.Any()).Return(uint64(3), nil)
	client.EXPECT().SuggestGasPrice(gomock.Any()).Return(big.NewInt(10), nil)
	client.EXPECT().EstimateGas(gomock.Any(), gomock.Any()).Return(uint64(50000), nil)

	var broadcast *types.Transaction
	client.EXPECT().SendRawTransaction(gomock.Any(), gomock.Any()).DoAndReturn(
		func(_ context.Context, raw []byte) (common.Hash, error) {
			broadcast = new(types.Transaction)
			require.NoError(t, broadcast.UnmarshalBinary(raw))
			return broadcast.Hash(), nil
		})

	handle, err := w.TransferToken(context.Background(), testToken, testTo, big.NewInt(250000))
	require.NoError(t, err)
	require.NotNil(t, broadcast)

	assert.Equal(t, testToken, *broadcast.To())
	assert.Equal(t, 0, broadcast.Value().Sign())

	transfer := ethereum.ERC20ABI().Methods["transfer"]
	assert.Equal(t, transfer.ID, broadcast.Data()[:4])
	args, err := transfer.Inputs.Unpack(broadcast.Data()[4:])
	require.NoError(t, err)
	assert.Equal(t, testTo, args[0])
	assert.Equal(t, big.NewInt(250000), args[1])

	assert.Equal(t, handle.Hash.Hex(), auditor.last[security.EventTokenTransferred]["tx_hash"])
}
