// Package eventsourcing предоставляет журнал событий и репозиторий агрегатов.
//
// Журнал событий является единственным источником истины: append-only потоки,
// упорядоченные по версии внутри агрегата, с оптимистичной конкурентностью
// по expected version на записи.
package eventsourcing

import (
	"context"
	"errors"
	"time"

	"github.com/akriventsev/vouchers/internal/core"
	"github.com/akriventsev/vouchers/internal/events"
)

var (
	// ErrConcurrencyConflict возникает при несовпадении expected version на записи
	ErrConcurrencyConflict = core.NewError(core.CodeConcurrencyConflict,
		"expected version does not match current stream version")
	// ErrStoreUnavailable возникает при транспортной ошибке хранилища
	ErrStoreUnavailable = core.NewError(core.CodeStoreUnavailable, "event store unavailable")
	// ErrStreamNotFound возникает когда поток событий агрегата не найден
	ErrStreamNotFound = errors.New("event stream not found")
)

// StoredEvent представляет сохраненное событие с метаданными журнала
type StoredEvent struct {
	ID          string
	AggregateID string
	EventType   string
	EventData   events.Event
	Version     int64
	Position    int64
	OccurredAt  time.Time
	CreatedAt   time.Time
}

// Deserializer восстанавливает конкретный тип события из сохраненных данных
type Deserializer interface {
	// DeserializeEvent десериализует JSON данные в конкретный тип события
	DeserializeEvent(eventType string, data []byte) (events.Event, error)
}

// EventStore интерфейс журнала событий
type EventStore interface {
	// AppendEvents добавляет события в поток агрегата с проверкой версии
	AppendEvents(ctx context.Context, aggregateID string, expectedVersion int64, evts []events.Event) error

	// GetEvents возвращает события агрегата начиная с указанной версии
	GetEvents(ctx context.Context, aggregateID string, fromVersion int64) ([]StoredEvent, error)

	// GetEventsByType возвращает события определенного типа начиная
	// с указанного времени в порядке глобальной позиции
	GetEventsByType(ctx context.Context, eventType string, fromTimestamp time.Time) ([]StoredEvent, error)

	// GetAllEvents возвращает все события начиная с указанной позиции
	// в порядке глобальной позиции (для проекций и rebuild)
	GetAllEvents(ctx context.Context, fromPosition int64) (<-chan StoredEvent, error)
}
