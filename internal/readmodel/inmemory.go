package readmodel

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/akriventsev/vouchers/internal/core"
)

// InMemoryStore реализация Store в памяти для тестов и разработки
type InMemoryStore struct {
	mu           sync.RWMutex
	vouchers     map[uuid.UUID]VoucherRecord
	byCode       map[string]uuid.UUID // ключ estateID/voucherCode
	transactions map[uuid.UUID]TransactionRecord
	contracts    map[uuid.UUID]ContractRecord
}

// NewInMemoryStore создает новое хранилище read-модели в памяти
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{
		vouchers:     make(map[uuid.UUID]VoucherRecord),
		byCode:       make(map[string]uuid.UUID),
		transactions: make(map[uuid.UUID]TransactionRecord),
		contracts:    make(map[uuid.UUID]ContractRecord),
	}
}

func codeKey(estateID uuid.UUID, voucherCode string) string {
	return fmt.Sprintf("%s/%s", estateID, voucherCode)
}

// InsertVoucher добавляет спроецированный ваучер
func (s *InMemoryStore) InsertVoucher(ctx context.Context, record VoucherRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := codeKey(record.EstateID, record.VoucherCode)
	if existing, ok := s.byCode[key]; ok {
		// Повторная доставка того же события не считается ошибкой
		if existing == record.VoucherID {
			return nil
		}
		return fmt.Errorf("voucher code %s already exists in estate %s", record.VoucherCode, record.EstateID)
	}

	s.vouchers[record.VoucherID] = record
	s.byCode[key] = record.VoucherID
	return nil
}

// MarkVoucherRedeemed отмечает ваучер погашенным
func (s *InMemoryStore) MarkVoucherRedeemed(ctx context.Context, voucherID uuid.UUID, redeemedAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	record, ok := s.vouchers[voucherID]
	if !ok {
		return core.NewError(core.CodeNotFound, "voucher %s not projected", voucherID)
	}

	record.RedeemedDateTime = &redeemedAt
	record.IsRedeemed = true
	s.vouchers[voucherID] = record
	return nil
}

// GetVoucherByCode ищет ваучер по коду в рамках estate
func (s *InMemoryStore) GetVoucherByCode(ctx context.Context, estateID uuid.UUID, voucherCode string) (VoucherRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	voucherID, ok := s.byCode[codeKey(estateID, voucherCode)]
	if !ok {
		return VoucherRecord{}, core.NewError(core.CodeNotFound,
			"voucher with code %s not found in estate %s", voucherCode, estateID)
	}
	return s.vouchers[voucherID], nil
}

// UpsertTransaction сохраняет справочную запись транзакции
func (s *InMemoryStore) UpsertTransaction(ctx context.Context, record TransactionRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.transactions[record.TransactionID] = record
	return nil
}

// GetTransaction возвращает справочную запись транзакции
func (s *InMemoryStore) GetTransaction(ctx context.Context, estateID, transactionID uuid.UUID) (TransactionRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	record, ok := s.transactions[transactionID]
	if !ok || record.EstateID != estateID {
		return TransactionRecord{}, core.NewError(core.CodeNotFound,
			"transaction %s not found in estate %s", transactionID, estateID)
	}
	return record, nil
}

// UpsertContract сохраняет справочную запись контракта
func (s *InMemoryStore) UpsertContract(ctx context.Context, record ContractRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.contracts[record.ContractID] = record
	return nil
}

// GetContract возвращает справочную запись контракта
func (s *InMemoryStore) GetContract(ctx context.Context, estateID, contractID uuid.UUID) (ContractRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	record, ok := s.contracts[contractID]
	if !ok || record.EstateID != estateID {
		return ContractRecord{}, core.NewError(core.CodeNotFound,
			"contract %s not found in estate %s", contractID, estateID)
	}
	return record, nil
}

// Reset очищает спроецированные записи ваучеров
func (s *InMemoryStore) Reset(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.vouchers = make(map[uuid.UUID]VoucherRecord)
	s.byCode = make(map[string]uuid.UUID)
	return nil
}
