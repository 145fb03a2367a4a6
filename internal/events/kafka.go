package events

import (
	"context"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"
)

// KafkaPublisherConfig конфигурация Kafka публикатора
type KafkaPublisherConfig struct {
	Brokers       []string
	Topic         string
	BatchSize     int
	FlushInterval time.Duration
}

// DefaultKafkaPublisherConfig возвращает конфигурацию Kafka по умолчанию
func DefaultKafkaPublisherConfig() KafkaPublisherConfig {
	return KafkaPublisherConfig{
		Brokers:       []string{"localhost:9092"},
		Topic:         "voucher-events",
		BatchSize:     100,
		FlushInterval: 10 * time.Millisecond,
	}
}

// KafkaPublisher публикует доменные события в Kafka.
// Ключом сообщения служит aggregate ID: hash partitioning сохраняет порядок
// событий внутри одного агрегата.
type KafkaPublisher struct {
	config KafkaPublisherConfig
	writer *kafka.Writer
}

// NewKafkaPublisher создает новый Kafka публикатор
func NewKafkaPublisher(config KafkaPublisherConfig) (*KafkaPublisher, error) {
	if len(config.Brokers) == 0 {
		return nil, fmt.Errorf("at least one Kafka broker is required")
	}
	if config.Topic == "" {
		return nil, fmt.Errorf("Kafka topic is required")
	}

	writer := &kafka.Writer{
		Addr:         kafka.TCP(config.Brokers...),
		Topic:        config.Topic,
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireAll,
		BatchSize:    config.BatchSize,
		BatchTimeout: config.FlushInterval,
		WriteTimeout: 10 * time.Second,
	}

	return &KafkaPublisher{config: config, writer: writer}, nil
}

// Publish публикует событие
func (p *KafkaPublisher) Publish(ctx context.Context, event Event) error {
	data, err := Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to serialize event: %w", err)
	}

	msg := kafka.Message{
		Key:   []byte(event.AggregateID()),
		Value: data,
		Headers: []kafka.Header{
			{Key: "event_type", Value: []byte(event.EventType())},
			{Key: "event_id", Value: []byte(event.EventID())},
		},
	}

	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("failed to write to topic %s: %w", p.config.Topic, err)
	}

	return nil
}

// Close закрывает writer
func (p *KafkaPublisher) Close() error {
	return p.writer.Close()
}
