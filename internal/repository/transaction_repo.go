// internal/repository/transaction_repo.go
package repository

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"time"

	"evm-wallet/internal/domain"

	"github.com/ethereum/go-ethereum/common"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// DBTX is the subset of *pgxpool.Pool the repository needs
type DBTX interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

const schemaSQL = `
	CREATE TABLE IF NOT EXISTS wallet_transactions (
		tx_hash      TEXT PRIMARY KEY,
		chain_id     BIGINT NOT NULL,
		from_address TEXT NOT NULL,
		to_address   TEXT NOT NULL,
		nonce        BIGINT NOT NULL,
		value        NUMERIC(78, 0) NOT NULL,
		gas_price    NUMERIC(78, 0) NOT NULL,
		gas_limit    BIGINT NOT NULL,
		status       TEXT NOT NULL,
		block_number BIGINT,
		submitted_at TIMESTAMPTZ NOT NULL,
		resolved_at  TIMESTAMPTZ,
		updated_at   TIMESTAMPTZ NOT NULL DEFAULT NOW()
	);
	CREATE INDEX IF NOT EXISTS idx_wallet_transactions_status
		ON wallet_transactions (chain_id, status, submitted_at);
`

const selectColumns = `
	tx_hash, chain_id, from_address, to_address, nonce,
	value::text, gas_price::text, gas_limit, status,
	block_number, submitted_at, resolved_at
`

type TransactionRepository struct {
	db DBTX
}

func NewTransactionRepository(db DBTX) *TransactionRepository {
	return &TransactionRepository{db: db}
}

// EnsureSchema creates the journal table if it does not exist
func (r *TransactionRepository) EnsureSchema(ctx context.Context) error {
	if _, err := r.db.Exec(ctx, schemaSQL); err != nil {
		return fmt.Errorf("failed to create schema: %w", err)
	}
	return nil
}

// Create journals a submitted transaction. Re-inserting the same hash is a no-op.
func (r *TransactionRepository) Create(ctx context.Context, rec *domain.TransactionRecord) error {
	query := `
		INSERT INTO wallet_transactions (
			tx_hash, chain_id, from_address, to_address, nonce,
			value, gas_price, gas_limit, status, submitted_at
		) VALUES (
			$1, $2, $3, $4, $5,
			$6::numeric, $7::numeric, $8, $9, $10
		)
		ON CONFLICT (tx_hash) DO NOTHING
	`

	_, err := r.db.Exec(ctx, query,
		rec.Hash.Hex(),
		rec.ChainID,
		rec.From.Hex(),
		rec.To.Hex(),
		int64(rec.Nonce),
		bigString(rec.Value),
		bigString(rec.GasPrice),
		int64(rec.GasLimit),
		string(rec.Status),
		rec.SubmittedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create transaction record: %w", err)
	}
	return nil
}

// UpdateStatus records the latest known state of a transaction
func (r *TransactionRepository) UpdateStatus(ctx context.Context, hash common.Hash, status domain.TxStatus, blockNumber *uint64, resolvedAt time.Time) error {
	query := `
		UPDATE wallet_transactions
		SET status = $1, block_number = $2, resolved_at = $3, updated_at = NOW()
		WHERE tx_hash = $4
	`

	var block *int64
	if blockNumber != nil {
		b := int64(*blockNumber)
		block = &b
	}

	var resolved *time.Time
	if status.IsTerminal() {
		resolved = &resolvedAt
	}

	result, err := r.db.Exec(ctx, query, string(status), block, resolved, hash.Hex())
	if err != nil {
		return fmt.Errorf("failed to update status: %w", err)
	}

	if result.RowsAffected() == 0 {
		return domain.ErrRecordNotFound
	}
	return nil
}

// GetByHash loads one journal entry
func (r *TransactionRepository) GetByHash(ctx context.Context, hash common.Hash) (*domain.TransactionRecord, error) {
	query := `SELECT ` + selectColumns + ` FROM wallet_transactions WHERE tx_hash = $1`

	rec, err := scanRecord(r.db.QueryRow(ctx, query, hash.Hex()))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrRecordNotFound
	}
	if err != nil {
		return nil, err
	}
	return rec, nil
}

// ListUnresolved returns pending and timed out entries for a chain, oldest first
func (r *TransactionRepository) ListUnresolved(ctx context.Context, chainID int64, limit int) ([]*domain.TransactionRecord, error) {
	query := `SELECT ` + selectColumns + `
		FROM wallet_transactions
		WHERE chain_id = $1 AND status IN ($2, $3)
		ORDER BY submitted_at ASC
		LIMIT $4
	`

	rows, err := r.db.Query(ctx, query, chainID, string(domain.TxStatusPending), string(domain.TxStatusTimedOut), limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list unresolved transactions: %w", err)
	}
	defer rows.Close()

	var records []*domain.TransactionRecord
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate transactions: %w", err)
	}
	return records, nil
}

func scanRecord(row pgx.Row) (*domain.TransactionRecord, error) {
	var (
		hash, from, to, valueStr, gasPriceStr, status string
		nonce, gasLimit                               int64
		blockNumber                                   *int64
		rec                                           domain.TransactionRecord
	)

	err := row.Scan(
		&hash,
		&rec.ChainID,
		&from,
		&to,
		&nonce,
		&valueStr,
		&gasPriceStr,
		&gasLimit,
		&status,
		&blockNumber,
		&rec.SubmittedAt,
		&rec.ResolvedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, err
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan transaction: %w", err)
	}

	rec.Hash = common.HexToHash(hash)
	rec.From = common.HexToAddress(from)
	rec.To = common.HexToAddress(to)
	rec.Nonce = uint64(nonce)
	rec.GasLimit = uint64(gasLimit)
	rec.Status = domain.TxStatus(status)
	if rec.Value, err = parseNumeric("value", valueStr); err != nil {
		return nil, err
	}
	if rec.GasPrice, err = parseNumeric("gas_price", gasPriceStr); err != nil {
		return nil, err
	}

	if blockNumber != nil {
		b := uint64(*blockNumber)
		rec.BlockNumber = &b
	}

	return &rec, nil
}

func parseNumeric(column, text string) (*big.Int, error) {
	v, ok := new(big.Int).SetString(text, 10)
	if !ok {
		return nil, fmt.Errorf("failed to scan transaction: invalid %s %q", column, text)
	}
	return v, nil
}

func bigString(v *big.Int) string {
	if v == nil {
		return "0"
	}
	return v.String()
}
