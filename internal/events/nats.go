package events

import (
	"context"
	"fmt"

	"github.com/nats-io/nats.go"
)

// NATSPublisherConfig конфигурация NATS публикатора
type NATSPublisherConfig struct {
	URL           string
	SubjectPrefix string
}

// DefaultNATSPublisherConfig возвращает конфигурацию NATS по умолчанию
func DefaultNATSPublisherConfig() NATSPublisherConfig {
	return NATSPublisherConfig{
		URL:           nats.DefaultURL,
		SubjectPrefix: "vouchers.events",
	}
}

// NATSPublisher публикует доменные события в NATS
type NATSPublisher struct {
	config NATSPublisherConfig
	conn   *nats.Conn
}

// NewNATSPublisher создает новый NATS публикатор
func NewNATSPublisher(config NATSPublisherConfig) (*NATSPublisher, error) {
	if config.URL == "" {
		return nil, fmt.Errorf("NATS URL is required")
	}

	conn, err := nats.Connect(config.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}

	return &NATSPublisher{config: config, conn: conn}, nil
}

// Publish публикует событие в subject {prefix}.{event_type}
func (p *NATSPublisher) Publish(ctx context.Context, event Event) error {
	data, err := Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to serialize event: %w", err)
	}

	subject := fmt.Sprintf("%s.%s", p.config.SubjectPrefix, event.EventType())
	if err := p.conn.Publish(subject, data); err != nil {
		return fmt.Errorf("failed to publish to %s: %w", subject, err)
	}

	// Flush с учетом дедлайна вызывающего
	return p.conn.FlushWithContext(ctx)
}

// Close закрывает соединение с NATS
func (p *NATSPublisher) Close() {
	if p.conn != nil {
		p.conn.Close()
	}
}
