package eventsourcing

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/akriventsev/vouchers/internal/events"
)

// InMemoryEventStore реализация EventStore в памяти для тестов и разработки
type InMemoryEventStore struct {
	mu        sync.RWMutex
	streams   map[string][]StoredEvent
	allEvents []StoredEvent
	position  int64
}

// NewInMemoryEventStore создает новый InMemory Event Store
func NewInMemoryEventStore() *InMemoryEventStore {
	return &InMemoryEventStore{
		streams: make(map[string][]StoredEvent),
	}
}

// AppendEvents добавляет события в поток агрегата
func (s *InMemoryEventStore) AppendEvents(ctx context.Context, aggregateID string, expectedVersion int64, evts []events.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	stream := s.streams[aggregateID]
	currentVersion := int64(0)
	if len(stream) > 0 {
		currentVersion = stream[len(stream)-1].Version
	}

	if expectedVersion != currentVersion {
		return fmt.Errorf("%w: expected %d, got %d", ErrConcurrencyConflict, expectedVersion, currentVersion)
	}

	for i, event := range evts {
		s.position++
		stored := StoredEvent{
			ID:          event.EventID(),
			AggregateID: aggregateID,
			EventType:   event.EventType(),
			EventData:   event,
			Version:     expectedVersion + int64(i) + 1,
			Position:    s.position,
			OccurredAt:  event.OccurredAt(),
			CreatedAt:   time.Now(),
		}
		stream = append(stream, stored)
		s.allEvents = append(s.allEvents, stored)
	}

	s.streams[aggregateID] = stream
	return nil
}

// GetEvents возвращает события агрегата начиная с указанной версии
func (s *InMemoryEventStore) GetEvents(ctx context.Context, aggregateID string, fromVersion int64) ([]StoredEvent, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stream, exists := s.streams[aggregateID]
	if !exists {
		return nil, ErrStreamNotFound
	}

	var result []StoredEvent
	for _, event := range stream {
		if event.Version >= fromVersion {
			result = append(result, event)
		}
	}

	return result, nil
}

// GetEventsByType возвращает события определенного типа начиная с указанного времени
func (s *InMemoryEventStore) GetEventsByType(ctx context.Context, eventType string, fromTimestamp time.Time) ([]StoredEvent, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []StoredEvent
	for _, event := range s.allEvents {
		if event.EventType == eventType && !event.OccurredAt.Before(fromTimestamp) {
			result = append(result, event)
		}
	}

	return result, nil
}

// GetAllEvents возвращает все события начиная с указанной позиции
func (s *InMemoryEventStore) GetAllEvents(ctx context.Context, fromPosition int64) (<-chan StoredEvent, error) {
	s.mu.RLock()
	snapshot := make([]StoredEvent, 0, len(s.allEvents))
	for _, event := range s.allEvents {
		if event.Position >= fromPosition {
			snapshot = append(snapshot, event)
		}
	}
	s.mu.RUnlock()

	ch := make(chan StoredEvent, 100)
	go func() {
		defer close(ch)
		for _, event := range snapshot {
			select {
			case ch <- event:
			case <-ctx.Done():
				return
			}
		}
	}()

	return ch, nil
}

// Clear очищает все события (для тестов)
func (s *InMemoryEventStore) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.streams = make(map[string][]StoredEvent)
	s.allEvents = nil
	s.position = 0
}
