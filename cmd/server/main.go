// cmd/server/main.go
package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"evm-wallet/internal/chains/ethereum"
	"evm-wallet/internal/config"
	"evm-wallet/internal/domain"
	"evm-wallet/internal/repository"
	"evm-wallet/internal/security"
	"evm-wallet/internal/wallet"
	"evm-wallet/internal/worker"

	"github.com/ethereum/go-ethereum/crypto"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
	"github.com/spf13/afero"
	"go.uber.org/zap"
)

func main() {
	// Load .env
	_ = godotenv.Load()

	logger, _ := zap.NewProduction()
	defer logger.Sync()

	cfg, err := config.Load(logger)
	if err != nil {
		logger.Fatal("failed to load config", zap.Error(err))
	}

	settings, err := cfg.WalletSettings()
	if err != nil {
		logger.Fatal("invalid wallet settings", zap.Error(err))
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Connect to the chain
	rpc, err := ethereum.NewRPCClient(ctx, settings.RPCURL, settings.ChainID, logger)
	if err != nil {
		logger.Fatal("failed to initialize Ethereum client", zap.Error(err))
	}
	defer rpc.Close()

	fs := afero.NewOsFs()

	binder := ethereum.NewERC20Binder()
	if cfg.Wallet.ERC20ABIPath != "" {
		binder, err = ethereum.NewERC20BinderFromFile(fs, cfg.Wallet.ERC20ABIPath)
		if err != nil {
			logger.Fatal("failed to load ERC-20 ABI", zap.Error(err))
		}
	}

	audit, err := security.NewAuditLogger(fs, cfg.Wallet.AuditLogPath)
	if err != nil {
		logger.Fatal("failed to open audit log", zap.Error(err))
	}
	defer audit.Close()

	opts := []wallet.Option{
		wallet.WithFilesystem(fs),
		wallet.WithAuditor(audit),
	}
	if cfg.Wallet.NonceSequencer {
		opts = append(opts, wallet.WithNonceSequencer())
	}

	// Transaction journal
	var journal *repository.TransactionRepository
	if cfg.Database.URL != "" {
		pool, err := pgxpool.New(ctx, cfg.Database.URL)
		if err != nil {
			logger.Fatal("failed to connect to database", zap.Error(err))
		}
		defer pool.Close()

		journal = repository.NewTransactionRepository(pool)
		if err := journal.EnsureSchema(ctx); err != nil {
			logger.Fatal("failed to prepare journal schema", zap.Error(err))
		}
		opts = append(opts, wallet.WithRecorder(journal))
	}

	vault := security.NewVault(security.NewEnvVaultProvider(), logger)
	w, err := openWallet(ctx, settings, rpc, binder, logger, fs, cfg.Wallet, vault, opts)
	if err != nil {
		logger.Fatal("failed to open wallet", zap.Error(err))
	}
	defer w.Close()
	vault.ClearCache()

	address, _ := w.Address()
	balance, err := w.NativeBalance(ctx)
	if err != nil {
		logger.Warn("Failed to read native balance", zap.Error(err))
	} else {
		logger.Info("Wallet ready",
			zap.String("address", address.Hex()),
			zap.String("network", cfg.Ethereum.Network),
			zap.String("balance", balance.String()))
	}

	if journal != nil {
		reconciler := worker.NewReceiptReconciler(journal, rpc, rpc.ChainID().Int64(), cfg.Worker.ReconcileInterval, logger)
		go reconciler.Start(ctx)
		defer reconciler.Stop()
	}

	<-ctx.Done()
	logger.Info("Shutting down")
}

// openWallet prefers a v3 keystore when configured, otherwise the sealed key file
func openWallet(
	ctx context.Context,
	settings domain.WalletConfig,
	client domain.ChainClient,
	binder wallet.ContractBinder,
	logger *zap.Logger,
	fs afero.Fs,
	walletCfg config.WalletConfig,
	vault *security.Vault,
	opts []wallet.Option,
) (*wallet.Wallet, error) {
	if walletCfg.KeystorePath != "" {
		password, err := vault.GetKeystorePassword(ctx)
		if err != nil {
			return nil, err
		}
		return wallet.FromEncryptedKeystore(settings, client, binder, logger, walletCfg.KeystorePath, password, opts...)
	}

	passphrase, err := vault.GetKeyPassphrase(ctx)
	if err != nil {
		return nil, err
	}
	raw, err := security.NewKeySealer(fs).OpenKey(walletCfg.SealedKeyPath, passphrase)
	if err != nil {
		return nil, err
	}
	key, err := crypto.ToECDSA(raw)
	for i := range raw {
		raw[i] = 0
	}
	if err != nil {
		return nil, errors.Join(domain.ErrInvalidKeyFormat, err)
	}

	w, err := wallet.New(settings, client, binder, logger, opts...)
	if err != nil {
		return nil, err
	}
	if err := w.InitializeWithKey(key); err != nil {
		return nil, err
	}
	return w, nil
}
