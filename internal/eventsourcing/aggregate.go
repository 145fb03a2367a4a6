package eventsourcing

import (
	"fmt"

	"github.com/akriventsev/vouchers/internal/events"
)

// Applier интерфейс для агрегатов, применяющих события к своему состоянию
type Applier interface {
	// Apply применяет конкретное событие к состоянию агрегата
	Apply(event events.Event) error
}

// AggregateRoot базовая часть Event Sourced агрегата: идентификатор,
// версия и накопленные несохраненные события. Конкретный агрегат
// встраивает AggregateRoot и регистрирует себя через SetApplier.
type AggregateRoot struct {
	id      string
	version int64
	pending []events.Event
	applier Applier
}

// NewAggregateRoot создает корень агрегата
func NewAggregateRoot(id string) *AggregateRoot {
	return &AggregateRoot{id: id}
}

// SetApplier устанавливает применитель событий
func (a *AggregateRoot) SetApplier(applier Applier) {
	a.applier = applier
}

// ID возвращает идентификатор агрегата
func (a *AggregateRoot) ID() string {
	return a.id
}

// Version возвращает текущую версию агрегата
func (a *AggregateRoot) Version() int64 {
	return a.version
}

// RaiseEvent применяет новое событие и ставит его в очередь на сохранение
func (a *AggregateRoot) RaiseEvent(event events.Event) error {
	if err := a.Apply(event); err != nil {
		return fmt.Errorf("failed to apply event %s: %w", event.EventType(), err)
	}
	a.pending = append(a.pending, event)
	a.version++
	return nil
}

// Apply применяет событие к состоянию агрегата без изменения версии
func (a *AggregateRoot) Apply(event events.Event) error {
	if a.applier == nil {
		return fmt.Errorf("event applier not set for aggregate %s", a.id)
	}
	return a.applier.Apply(event)
}

// LoadFromHistory восстанавливает состояние из упорядоченного потока событий
func (a *AggregateRoot) LoadFromHistory(history []events.Event) error {
	for i, event := range history {
		if err := a.Apply(event); err != nil {
			return fmt.Errorf("failed to apply event at index %d: %w", i, err)
		}
		a.version++
	}
	return nil
}

// UncommittedEvents возвращает несохраненные события
func (a *AggregateRoot) UncommittedEvents() []events.Event {
	return a.pending
}

// ClearUncommittedEvents очищает очередь после сохранения
func (a *AggregateRoot) ClearUncommittedEvents() {
	a.pending = nil
}

// SetVersion устанавливает версию агрегата (используется при загрузке)
func (a *AggregateRoot) SetVersion(version int64) {
	a.version = version
}
