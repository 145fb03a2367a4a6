package events

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisPublisherConfig конфигурация Redis Streams публикатора
type RedisPublisherConfig struct {
	Addr         string
	Password     string
	DB           int
	StreamName   string
	StreamMaxLen int64 // 0 = без ограничений
}

// DefaultRedisPublisherConfig возвращает конфигурацию Redis по умолчанию
func DefaultRedisPublisherConfig() RedisPublisherConfig {
	return RedisPublisherConfig{
		Addr:         "localhost:6379",
		StreamName:   "voucher-events",
		StreamMaxLen: 10000,
	}
}

// RedisPublisher публикует доменные события в Redis Stream
type RedisPublisher struct {
	config RedisPublisherConfig
	client *redis.Client
}

// NewRedisPublisher создает новый Redis публикатор
func NewRedisPublisher(config RedisPublisherConfig) (*RedisPublisher, error) {
	if config.Addr == "" {
		return nil, fmt.Errorf("Redis addr is required")
	}
	if config.StreamName == "" {
		return nil, fmt.Errorf("Redis stream name is required")
	}

	client := redis.NewClient(&redis.Options{
		Addr:     config.Addr,
		Password: config.Password,
		DB:       config.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return &RedisPublisher{config: config, client: client}, nil
}

// Publish добавляет событие в stream через XADD
func (p *RedisPublisher) Publish(ctx context.Context, event Event) error {
	data, err := Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to serialize event: %w", err)
	}

	args := &redis.XAddArgs{
		Stream: p.config.StreamName,
		Values: map[string]interface{}{
			"event_type":   event.EventType(),
			"event_id":     event.EventID(),
			"aggregate_id": event.AggregateID(),
			"data":         data,
		},
	}
	if p.config.StreamMaxLen > 0 {
		args.MaxLen = p.config.StreamMaxLen
		args.Approx = true
	}

	if err := p.client.XAdd(ctx, args).Err(); err != nil {
		return fmt.Errorf("failed to XADD to stream %s: %w", p.config.StreamName, err)
	}

	return nil
}

// Close закрывает клиент Redis
func (p *RedisPublisher) Close() error {
	return p.client.Close()
}
