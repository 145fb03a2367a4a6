package events

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
)

// InMemoryBus шина событий в памяти. Каждый подписчик получает событие
// в собственной горутине: обработчик нотификаций и проектор read-модели
// потребляют один и тот же поток независимо и без взаимного порядка.
type InMemoryBus struct {
	handlers map[string][]Handler
	retry    RetryConfig
	logger   *zap.Logger
	mu       sync.RWMutex
	wg       sync.WaitGroup
	stopped  bool
	stopMu   sync.Mutex
}

// NewInMemoryBus создает новую шину событий
func NewInMemoryBus(retry RetryConfig, logger *zap.Logger) *InMemoryBus {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &InMemoryBus{
		handlers: make(map[string][]Handler),
		retry:    retry,
		logger:   logger,
	}
}

// Subscribe подписывается на тип события
func (b *InMemoryBus) Subscribe(eventType string, handler Handler) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	for _, h := range b.handlers[eventType] {
		if h == handler {
			return fmt.Errorf("handler already subscribed to event type %s", eventType)
		}
	}

	b.handlers[eventType] = append(b.handlers[eventType], handler)
	return nil
}

// Publish доставляет событие всем подписчикам типа. Ошибки обработчиков
// не возвращаются публикатору: шина владеет политикой redelivery и
// исчерпав попытки, оставляет событие за обработчиком.
//
// Контекст публикатора обычно привязан к HTTP-запросу и отменяется
// сразу после записи ответа, а событие к этому моменту уже записано в
// журнал. Доставка поэтому отвязывается от отмены контекста публикатора
// и ограничивается только жизненным циклом шины через Shutdown.
func (b *InMemoryBus) Publish(ctx context.Context, event Event) error {
	b.stopMu.Lock()
	if b.stopped {
		b.stopMu.Unlock()
		return fmt.Errorf("event bus is stopped")
	}
	b.wg.Add(1)
	b.stopMu.Unlock()
	defer b.wg.Done()

	ctx = context.WithoutCancel(ctx)

	b.mu.RLock()
	handlers := make([]Handler, len(b.handlers[event.EventType()]))
	copy(handlers, b.handlers[event.EventType()])
	b.mu.RUnlock()

	for _, handler := range handlers {
		b.wg.Add(1)
		go func(h Handler) {
			defer b.wg.Done()
			b.deliver(ctx, h, event)
		}(handler)
	}

	return nil
}

// deliver доставляет событие одному обработчику с повторами по политике
func (b *InMemoryBus) deliver(ctx context.Context, handler Handler, event Event) {
	attempts := b.retry.MaxAttempts
	if attempts < 1 {
		attempts = 1
	}

	var err error
	for attempt := 1; attempt <= attempts; attempt++ {
		if attempt > 1 {
			select {
			case <-time.After(b.retry.NextDelay(attempt - 1)):
			case <-ctx.Done():
				return
			}
		}

		if err = handler.Handle(ctx, event); err == nil {
			return
		}

		b.logger.Warn("event delivery failed",
			zap.String("event_type", event.EventType()),
			zap.String("event_id", event.EventID()),
			zap.Int("attempt", attempt),
			zap.Error(err))
	}

	b.logger.Error("event delivery abandoned after retries",
		zap.String("event_type", event.EventType()),
		zap.String("event_id", event.EventID()),
		zap.Error(err))
}

// Shutdown дожидается завершения активных доставок
func (b *InMemoryBus) Shutdown(ctx context.Context) error {
	b.stopMu.Lock()
	if b.stopped {
		b.stopMu.Unlock()
		return nil
	}
	b.stopped = true
	b.stopMu.Unlock()

	done := make(chan struct{})
	go func() {
		b.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
