// cmd/security/key_gen.go
package main

import (
	"context"
	"fmt"
	"log"

	"evm-wallet/internal/chains/ethereum"
	"evm-wallet/internal/config"
	"evm-wallet/internal/security"

	"github.com/ethereum/go-ethereum/crypto"
	"github.com/joho/godotenv"
	"github.com/spf13/afero"
	"go.uber.org/zap"
)

// Generates a signing key and seals it under WALLET_KEY_PASSPHRASE
func main() {
	_ = godotenv.Load()

	logger, _ := zap.NewProduction()
	defer logger.Sync()

	cfg, err := config.Load(logger)
	if err != nil {
		log.Fatal(err)
	}

	vault := security.NewVault(security.NewEnvVaultProvider(), logger)
	passphrase, err := vault.GetKeyPassphrase(context.Background())
	if err != nil {
		log.Fatal(err)
	}

	fs := afero.NewOsFs()
	if exists, _ := afero.Exists(fs, cfg.Wallet.SealedKeyPath); exists {
		log.Fatalf("refusing to overwrite %s", cfg.Wallet.SealedKeyPath)
	}

	key, err := ethereum.GenerateKey()
	if err != nil {
		log.Fatal(err)
	}
	defer ethereum.ZeroKey(key)

	raw := crypto.FromECDSA(key)
	err = security.NewKeySealer(fs).SealKey(cfg.Wallet.SealedKeyPath, raw, passphrase)
	for i := range raw {
		raw[i] = 0
	}
	if err != nil {
		log.Fatal(err)
	}

	fmt.Println("==============================================")
	fmt.Println("Generated signing key")
	fmt.Println("==============================================")
	fmt.Println("Address:    " + ethereum.PrivateKeyToAddress(key).Hex())
	fmt.Println("Sealed at:  " + cfg.Wallet.SealedKeyPath)
	fmt.Println("==============================================")
	fmt.Println("Fund this address before sending transactions.")
	fmt.Println("Keep WALLET_KEY_PASSPHRASE out of version control.")
	fmt.Println("==============================================")
}
