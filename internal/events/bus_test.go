package events

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
)

type busTestEvent struct {
	id  string
	agg string
	at  time.Time
}

func (e *busTestEvent) EventID() string       { return e.id }
func (e *busTestEvent) EventType() string     { return "test.happened" }
func (e *busTestEvent) AggregateID() string   { return e.agg }
func (e *busTestEvent) OccurredAt() time.Time { return e.at }

func newBusTestEvent() Event {
	return &busTestEvent{id: uuid.NewString(), agg: "agg-1", at: time.Now().UTC()}
}

type countingHandler struct {
	mu       sync.Mutex
	calls    int
	failures int
	done     chan struct{}
}

func newCountingHandler(failures int) *countingHandler {
	return &countingHandler{failures: failures, done: make(chan struct{})}
}

func (h *countingHandler) EventType() string { return "test.happened" }

func (h *countingHandler) Handle(ctx context.Context, event Event) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.calls++
	if h.calls <= h.failures {
		return errors.New("transient failure")
	}
	close(h.done)
	return nil
}

func (h *countingHandler) callCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.calls
}

func testRetryConfig() RetryConfig {
	return RetryConfig{
		MaxAttempts:       3,
		InitialDelay:      time.Millisecond,
		MaxDelay:          10 * time.Millisecond,
		BackoffMultiplier: 2.0,
	}
}

func TestInMemoryBus_Delivers(t *testing.T) {
	bus := NewInMemoryBus(testRetryConfig(), nil)
	handler := newCountingHandler(0)
	if err := bus.Subscribe("test.happened", handler); err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}

	if err := bus.Publish(context.Background(), newBusTestEvent()); err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}

	select {
	case <-handler.done:
	case <-time.After(time.Second):
		t.Fatal("Expected handler to receive event")
	}
}

func TestInMemoryBus_RetriesUntilSuccess(t *testing.T) {
	bus := NewInMemoryBus(testRetryConfig(), nil)
	handler := newCountingHandler(2)
	if err := bus.Subscribe("test.happened", handler); err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}

	if err := bus.Publish(context.Background(), newBusTestEvent()); err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}

	select {
	case <-handler.done:
	case <-time.After(time.Second):
		t.Fatal("Expected delivery to succeed after retries")
	}
	if handler.callCount() != 3 {
		t.Errorf("Expected 3 attempts, got %d", handler.callCount())
	}
}

func TestInMemoryBus_IndependentSubscribers(t *testing.T) {
	bus := NewInMemoryBus(testRetryConfig(), nil)
	first := newCountingHandler(0)
	second := newCountingHandler(0)
	if err := bus.Subscribe("test.happened", first); err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if err := bus.Subscribe("test.happened", second); err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}

	if err := bus.Publish(context.Background(), newBusTestEvent()); err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}

	for _, h := range []*countingHandler{first, second} {
		select {
		case <-h.done:
		case <-time.After(time.Second):
			t.Fatal("Expected both subscribers to receive event")
		}
	}
}

type contextCheckingHandler struct {
	gate chan struct{}
	done chan struct{}
	mu   sync.Mutex
	err  error
}

func newContextCheckingHandler() *contextCheckingHandler {
	return &contextCheckingHandler{gate: make(chan struct{}), done: make(chan struct{})}
}

func (h *contextCheckingHandler) EventType() string { return "test.happened" }

func (h *contextCheckingHandler) Handle(ctx context.Context, event Event) error {
	<-h.gate
	h.mu.Lock()
	h.err = ctx.Err()
	h.mu.Unlock()
	close(h.done)
	return h.err
}

func TestInMemoryBus_DeliveryOutlivesPublisherContext(t *testing.T) {
	bus := NewInMemoryBus(testRetryConfig(), nil)
	handler := newContextCheckingHandler()
	if err := bus.Subscribe("test.happened", handler); err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	if err := bus.Publish(ctx, newBusTestEvent()); err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	cancel()
	close(handler.gate)

	select {
	case <-handler.done:
	case <-time.After(time.Second):
		t.Fatal("Expected delivery to proceed past publisher cancellation")
	}
	handler.mu.Lock()
	defer handler.mu.Unlock()
	if handler.err != nil {
		t.Errorf("Expected handler context to survive publisher cancellation, got %v", handler.err)
	}
}

func TestInMemoryBus_DuplicateSubscribe(t *testing.T) {
	bus := NewInMemoryBus(testRetryConfig(), nil)
	handler := newCountingHandler(0)
	if err := bus.Subscribe("test.happened", handler); err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if err := bus.Subscribe("test.happened", handler); err == nil {
		t.Fatal("Expected error on duplicate subscription")
	}
}

func TestInMemoryBus_ShutdownWaitsForDeliveries(t *testing.T) {
	bus := NewInMemoryBus(testRetryConfig(), nil)
	handler := newCountingHandler(0)
	if err := bus.Subscribe("test.happened", handler); err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if err := bus.Publish(context.Background(), newBusTestEvent()); err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := bus.Shutdown(ctx); err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if handler.callCount() != 1 {
		t.Errorf("Expected delivery to complete before shutdown, got %d calls", handler.callCount())
	}

	if err := bus.Publish(context.Background(), newBusTestEvent()); err == nil {
		t.Fatal("Expected publish after shutdown to fail")
	}
}

func TestRetryConfig_NextDelay(t *testing.T) {
	c := RetryConfig{
		InitialDelay:      100 * time.Millisecond,
		MaxDelay:          time.Second,
		BackoffMultiplier: 2.0,
	}

	if got := c.NextDelay(1); got != 100*time.Millisecond {
		t.Errorf("Expected 100ms for attempt 1, got %s", got)
	}
	if got := c.NextDelay(2); got != 200*time.Millisecond {
		t.Errorf("Expected 200ms for attempt 2, got %s", got)
	}
	if got := c.NextDelay(10); got != time.Second {
		t.Errorf("Expected cap at 1s, got %s", got)
	}
}
