package eventsourcing

import (
	"context"
	"errors"
	"fmt"

	"github.com/akriventsev/vouchers/internal/events"
)

// Aggregate интерфейс Event Sourced агрегата
type Aggregate interface {
	ID() string
	Version() int64
	UncommittedEvents() []events.Event
	ClearUncommittedEvents()
	SetVersion(int64)
	Apply(events.Event) error
}

// AggregateFactory фабричная функция для создания пустого агрегата
type AggregateFactory[T Aggregate] func(id string) T

// Repository generic репозиторий Event Sourced агрегатов: загрузка через
// полный replay потока и сохранение с проверкой expected version.
// Кэш агрегатов не ведется: поток загружается, сворачивается через
// Apply и отбрасывается.
type Repository[T Aggregate] struct {
	store   EventStore
	factory AggregateFactory[T]
}

// NewRepository создает новый репозиторий
func NewRepository[T Aggregate](store EventStore, factory AggregateFactory[T]) *Repository[T] {
	return &Repository[T]{store: store, factory: factory}
}

// GetLatestVersion загружает агрегат по ID, восстанавливая состояние из
// потока событий. Для неизвестного ID возвращается пустой агрегат с
// версией 0, это валидный результат, по которому вызывающий определяет
// отсутствие сущности.
func (r *Repository[T]) GetLatestVersion(ctx context.Context, aggregateID string) (T, error) {
	aggregate := r.factory(aggregateID)

	stored, err := r.store.GetEvents(ctx, aggregateID, 0)
	if err != nil {
		if errors.Is(err, ErrStreamNotFound) {
			return aggregate, nil
		}
		var zero T
		return zero, fmt.Errorf("failed to read stream %s: %w", aggregateID, err)
	}

	history := make([]events.Event, 0, len(stored))
	for _, s := range stored {
		if s.EventData != nil {
			history = append(history, s.EventData)
		}
	}

	for _, event := range history {
		if err := aggregate.Apply(event); err != nil {
			var zero T
			return zero, fmt.Errorf("failed to replay stream %s: %w", aggregateID, err)
		}
		aggregate.SetVersion(aggregate.Version() + 1)
	}

	return aggregate, nil
}

// Save добавляет несохраненные события агрегата в журнал под expected
// version. При конфликте версий возвращается ошибка с кодом
// CONCURRENCY_CONFLICT: вызывающий перечитывает агрегат и повторяет
// попытку по своей политике.
func (r *Repository[T]) Save(ctx context.Context, aggregate T) error {
	pending := aggregate.UncommittedEvents()
	if len(pending) == 0 {
		return nil
	}

	expectedVersion := aggregate.Version() - int64(len(pending))
	if expectedVersion < 0 {
		expectedVersion = 0
	}

	if err := r.store.AppendEvents(ctx, aggregate.ID(), expectedVersion, pending); err != nil {
		return fmt.Errorf("failed to append events for %s: %w", aggregate.ID(), err)
	}

	aggregate.ClearUncommittedEvents()
	return nil
}
