package events

import (
	"context"
	"fmt"
)

// PublisherType тип внешнего публикатора событий
type PublisherType string

const (
	PublisherNone  PublisherType = "none"
	PublisherNATS  PublisherType = "nats"
	PublisherKafka PublisherType = "kafka"
	PublisherRedis PublisherType = "redis"
)

// PublisherFactoryConfig конфигурация фабрики публикаторов
type PublisherFactoryConfig struct {
	Type  PublisherType
	NATS  NATSPublisherConfig
	Kafka KafkaPublisherConfig
	Redis RedisPublisherConfig
}

// noopPublisher публикатор-заглушка: события живут только в локальной шине
type noopPublisher struct{}

func (noopPublisher) Publish(ctx context.Context, event Event) error { return nil }

// NewPublisher создает публикатор по типу из конфигурации
func NewPublisher(config PublisherFactoryConfig) (Publisher, error) {
	switch config.Type {
	case PublisherNone, "":
		return noopPublisher{}, nil
	case PublisherNATS:
		return NewNATSPublisher(config.NATS)
	case PublisherKafka:
		return NewKafkaPublisher(config.Kafka)
	case PublisherRedis:
		return NewRedisPublisher(config.Redis)
	default:
		return nil, fmt.Errorf("unknown publisher type: %s", config.Type)
	}
}
