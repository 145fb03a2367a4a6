package eventhandling

import (
	"fmt"

	"github.com/akriventsev/vouchers/internal/domain"
	"github.com/akriventsev/vouchers/internal/events"
)

// Registry закрытое множество обработчиков доменных событий.
// Набор типов известен на этапе компиляции: новый тип события
// добавляется сюда явно, динамической регистрации нет.
type Registry struct {
	handlers map[string]events.Handler
}

// NewRegistry собирает полный набор обработчиков сервиса.
// Событие voucher.redeemed нотификаций не порождает и обработчика
// не имеет.
func NewRegistry(issuedHandler *VoucherDomainEventHandler) *Registry {
	return &Registry{
		handlers: map[string]events.Handler{
			domain.EventTypeVoucherIssued: issuedHandler,
		},
	}
}

// HandlerFor возвращает обработчик для типа события, nil если тип
// нотификаций не порождает
func (r *Registry) HandlerFor(eventType string) events.Handler {
	return r.handlers[eventType]
}

// Bind подписывает все обработчики на шину
func (r *Registry) Bind(bus events.Subscriber) error {
	for eventType, handler := range r.handlers {
		if err := bus.Subscribe(eventType, handler); err != nil {
			return fmt.Errorf("failed to bind handler for %s: %w", eventType, err)
		}
	}
	return nil
}
