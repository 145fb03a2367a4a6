// Package events предоставляет контракт доменных событий и шину доставки.
package events

import (
	"context"
	"time"
)

// Event представляет доменное событие
type Event interface {
	// EventID возвращает уникальный идентификатор события
	EventID() string
	// EventType возвращает тип события
	EventType() string
	// AggregateID возвращает идентификатор агрегата
	AggregateID() string
	// OccurredAt возвращает время возникновения события
	OccurredAt() time.Time
}

// Handler обработчик доменных событий. Доставка at-least-once:
// реализация обязана быть безопасной при повторном вызове.
type Handler interface {
	// Handle обрабатывает событие
	Handle(ctx context.Context, event Event) error
	// EventType возвращает тип события, который обрабатывает этот handler
	EventType() string
}

// Publisher публикатор событий во внешний брокер
type Publisher interface {
	// Publish публикует событие
	Publish(ctx context.Context, event Event) error
}

// Subscriber подписчик на события
type Subscriber interface {
	// Subscribe подписывается на тип события
	Subscribe(eventType string, handler Handler) error
}

// Bus объединяет публикацию и подписку
type Bus interface {
	Publisher
	Subscriber
	// Shutdown дожидается завершения активных доставок
	Shutdown(ctx context.Context) error
}

// HandlerFunc адаптер функции к интерфейсу Handler
func HandlerFunc(eventType string, fn func(ctx context.Context, event Event) error) Handler {
	return &funcHandler{eventType: eventType, fn: fn}
}

type funcHandler struct {
	eventType string
	fn        func(ctx context.Context, event Event) error
}

func (h *funcHandler) Handle(ctx context.Context, event Event) error { return h.fn(ctx, event) }
func (h *funcHandler) EventType() string                             { return h.eventType }

// RetryConfig политика повторной доставки события обработчику
type RetryConfig struct {
	MaxAttempts       int
	InitialDelay      time.Duration
	MaxDelay          time.Duration
	BackoffMultiplier float64
}

// DefaultRetryConfig возвращает политику повторной доставки по умолчанию
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxAttempts:       3,
		InitialDelay:      100 * time.Millisecond,
		MaxDelay:          5 * time.Second,
		BackoffMultiplier: 2.0,
	}
}

// NextDelay возвращает задержку перед указанной попыткой (нумерация с 1)
func (c RetryConfig) NextDelay(attempt int) time.Duration {
	delay := c.InitialDelay
	for i := 1; i < attempt; i++ {
		delay = time.Duration(float64(delay) * c.BackoffMultiplier)
		if delay >= c.MaxDelay {
			return c.MaxDelay
		}
	}
	if delay > c.MaxDelay {
		return c.MaxDelay
	}
	return delay
}
