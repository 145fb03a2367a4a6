package readmodel

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/akriventsev/vouchers/internal/core"
)

// PostgresStoreConfig конфигурация PostgreSQL read-модели
type PostgresStoreConfig struct {
	DSN string
}

// PostgresStore реализация Store поверх PostgreSQL
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore создает новое хранилище read-модели
func NewPostgresStore(ctx context.Context, config PostgresStoreConfig) (*PostgresStore, error) {
	if config.DSN == "" {
		return nil, core.NewError(core.CodeInvalidConfig, "read model DSN cannot be empty")
	}

	pool, err := pgxpool.New(ctx, config.DSN)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to PostgreSQL: %w", err)
	}

	return &PostgresStore{pool: pool}, nil
}

// Close закрывает пул соединений
func (s *PostgresStore) Close() {
	s.pool.Close()
}

// InsertVoucher добавляет спроецированный ваучер. ON CONFLICT по
// voucher_id делает повторную доставку события no-op; уникальный индекс
// (estate_id, voucher_code) отлавливает коллизию кодов.
func (s *PostgresStore) InsertVoucher(ctx context.Context, record VoucherRecord) error {
	query := `
		INSERT INTO vouchers (voucher_id, estate_id, transaction_id, voucher_code, value,
		                      issued_date_time, expiry_date_time, is_redeemed)
		VALUES ($1, $2, $3, $4, $5, $6, $7, false)
		ON CONFLICT (voucher_id) DO NOTHING
	`
	_, err := s.pool.Exec(ctx, query,
		record.VoucherID,
		record.EstateID,
		record.TransactionID,
		record.VoucherCode,
		record.Value,
		record.IssuedDateTime,
		record.ExpiryDateTime,
	)
	if err != nil {
		return fmt.Errorf("failed to insert voucher %s: %w", record.VoucherID, err)
	}
	return nil
}

// MarkVoucherRedeemed отмечает ваучер погашенным
func (s *PostgresStore) MarkVoucherRedeemed(ctx context.Context, voucherID uuid.UUID, redeemedAt time.Time) error {
	query := `
		UPDATE vouchers
		SET redeemed_date_time = $2, is_redeemed = true
		WHERE voucher_id = $1
	`
	tag, err := s.pool.Exec(ctx, query, voucherID, redeemedAt)
	if err != nil {
		return fmt.Errorf("failed to mark voucher %s redeemed: %w", voucherID, err)
	}
	if tag.RowsAffected() == 0 {
		return core.NewError(core.CodeNotFound, "voucher %s not projected", voucherID)
	}
	return nil
}

// GetVoucherByCode ищет ваучер по коду в рамках estate
func (s *PostgresStore) GetVoucherByCode(ctx context.Context, estateID uuid.UUID, voucherCode string) (VoucherRecord, error) {
	query := `
		SELECT voucher_id, estate_id, transaction_id, voucher_code, value,
		       issued_date_time, expiry_date_time, redeemed_date_time, is_redeemed
		FROM vouchers
		WHERE estate_id = $1 AND voucher_code = $2
	`
	var record VoucherRecord
	err := s.pool.QueryRow(ctx, query, estateID, voucherCode).Scan(
		&record.VoucherID,
		&record.EstateID,
		&record.TransactionID,
		&record.VoucherCode,
		&record.Value,
		&record.IssuedDateTime,
		&record.ExpiryDateTime,
		&record.RedeemedDateTime,
		&record.IsRedeemed,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return VoucherRecord{}, core.NewError(core.CodeNotFound,
				"voucher with code %s not found in estate %s", voucherCode, estateID)
		}
		return VoucherRecord{}, fmt.Errorf("failed to query voucher by code: %w", err)
	}
	return record, nil
}

// UpsertTransaction сохраняет справочную запись транзакции
func (s *PostgresStore) UpsertTransaction(ctx context.Context, record TransactionRecord) error {
	query := `
		INSERT INTO transactions (transaction_id, estate_id, contract_id)
		VALUES ($1, $2, $3)
		ON CONFLICT (transaction_id) DO UPDATE SET estate_id = $2, contract_id = $3
	`
	if _, err := s.pool.Exec(ctx, query, record.TransactionID, record.EstateID, record.ContractID); err != nil {
		return fmt.Errorf("failed to upsert transaction %s: %w", record.TransactionID, err)
	}
	return nil
}

// GetTransaction возвращает справочную запись транзакции
func (s *PostgresStore) GetTransaction(ctx context.Context, estateID, transactionID uuid.UUID) (TransactionRecord, error) {
	query := `
		SELECT transaction_id, estate_id, contract_id
		FROM transactions
		WHERE estate_id = $1 AND transaction_id = $2
	`
	var record TransactionRecord
	err := s.pool.QueryRow(ctx, query, estateID, transactionID).Scan(
		&record.TransactionID,
		&record.EstateID,
		&record.ContractID,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return TransactionRecord{}, core.NewError(core.CodeNotFound,
				"transaction %s not found in estate %s", transactionID, estateID)
		}
		return TransactionRecord{}, fmt.Errorf("failed to query transaction: %w", err)
	}
	return record, nil
}

// UpsertContract сохраняет справочную запись контракта
func (s *PostgresStore) UpsertContract(ctx context.Context, record ContractRecord) error {
	query := `
		INSERT INTO contracts (contract_id, estate_id, description)
		VALUES ($1, $2, $3)
		ON CONFLICT (contract_id) DO UPDATE SET estate_id = $2, description = $3
	`
	if _, err := s.pool.Exec(ctx, query, record.ContractID, record.EstateID, record.Description); err != nil {
		return fmt.Errorf("failed to upsert contract %s: %w", record.ContractID, err)
	}
	return nil
}

// GetContract возвращает справочную запись контракта
func (s *PostgresStore) GetContract(ctx context.Context, estateID, contractID uuid.UUID) (ContractRecord, error) {
	query := `
		SELECT contract_id, estate_id, description
		FROM contracts
		WHERE estate_id = $1 AND contract_id = $2
	`
	var record ContractRecord
	err := s.pool.QueryRow(ctx, query, estateID, contractID).Scan(
		&record.ContractID,
		&record.EstateID,
		&record.Description,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ContractRecord{}, core.NewError(core.CodeNotFound,
				"contract %s not found in estate %s", contractID, estateID)
		}
		return ContractRecord{}, fmt.Errorf("failed to query contract: %w", err)
	}
	return record, nil
}

// Reset очищает спроецированные записи ваучеров
func (s *PostgresStore) Reset(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, "TRUNCATE TABLE vouchers"); err != nil {
		return fmt.Errorf("failed to reset vouchers projection: %w", err)
	}
	return nil
}
