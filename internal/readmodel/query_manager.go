package readmodel

import (
	"context"

	"github.com/google/uuid"
)

// QueryManager обслуживает запросы по read-модели. Окно eventual
// consistency между журналом и проекцией является частью контракта:
// запрос сразу после выпуска может вернуть NOT_FOUND,
// пока проектор не догнал журнал.
type QueryManager struct {
	store Store
}

// NewQueryManager создает новый менеджер запросов
func NewQueryManager(store Store) *QueryManager {
	return &QueryManager{store: store}
}

// GetVoucherByCode возвращает спроецированный ваучер по коду в рамках
// estate; промах возвращает ошибку с кодом NOT_FOUND
func (m *QueryManager) GetVoucherByCode(ctx context.Context, estateID uuid.UUID, voucherCode string) (VoucherRecord, error) {
	return m.store.GetVoucherByCode(ctx, estateID, voucherCode)
}

// GetTransactionContext возвращает транзакцию и контракт, связанные с
// выпуском ваучера. Используется обработчиком нотификаций для
// обогащения текста сообщения.
func (m *QueryManager) GetTransactionContext(ctx context.Context, estateID, transactionID uuid.UUID) (TransactionRecord, ContractRecord, error) {
	transaction, err := m.store.GetTransaction(ctx, estateID, transactionID)
	if err != nil {
		return TransactionRecord{}, ContractRecord{}, err
	}

	contract, err := m.store.GetContract(ctx, estateID, transaction.ContractID)
	if err != nil {
		return TransactionRecord{}, ContractRecord{}, err
	}

	return transaction, contract, nil
}
