// Package readmodel поддерживает денормализованную read-модель ваучеров.
//
// Проекция это eventually consistent реплика журнала событий, оптимизированная
// для поиска по коду ваучера. Она пополняется проектором асинхронно
// относительно записи в журнал и может быть перестроена replay'ем журнала.
package readmodel

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// VoucherRecord спроецированная запись ваучера
type VoucherRecord struct {
	VoucherID        uuid.UUID
	EstateID         uuid.UUID
	TransactionID    uuid.UUID
	VoucherCode      string
	Value            float64
	IssuedDateTime   time.Time
	ExpiryDateTime   time.Time
	RedeemedDateTime *time.Time
	IsRedeemed       bool
}

// TransactionRecord справочная запись транзакции. Записи принадлежат
// другим сервисам; ядро ваучеров их только читает.
type TransactionRecord struct {
	TransactionID uuid.UUID
	EstateID      uuid.UUID
	ContractID    uuid.UUID
}

// ContractRecord справочная запись контракта
type ContractRecord struct {
	ContractID  uuid.UUID
	EstateID    uuid.UUID
	Description string
}

// Store хранилище read-модели
type Store interface {
	// InsertVoucher добавляет спроецированный ваучер; нарушение
	// уникальности (estate_id, voucher_code) возвращает ошибку
	InsertVoucher(ctx context.Context, record VoucherRecord) error

	// MarkVoucherRedeemed отмечает ваучер погашенным
	MarkVoucherRedeemed(ctx context.Context, voucherID uuid.UUID, redeemedAt time.Time) error

	// GetVoucherByCode ищет ваучер по коду в рамках estate;
	// промах возвращает ошибку с кодом NOT_FOUND
	GetVoucherByCode(ctx context.Context, estateID uuid.UUID, voucherCode string) (VoucherRecord, error)

	// UpsertTransaction сохраняет справочную запись транзакции
	UpsertTransaction(ctx context.Context, record TransactionRecord) error

	// GetTransaction возвращает справочную запись транзакции
	GetTransaction(ctx context.Context, estateID, transactionID uuid.UUID) (TransactionRecord, error)

	// UpsertContract сохраняет справочную запись контракта
	UpsertContract(ctx context.Context, record ContractRecord) error

	// GetContract возвращает справочную запись контракта
	GetContract(ctx context.Context, estateID, contractID uuid.UUID) (ContractRecord, error)

	// Reset очищает спроецированные записи ваучеров (для rebuild)
	Reset(ctx context.Context) error
}
