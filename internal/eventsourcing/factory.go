package eventsourcing

import (
	"context"
	"fmt"
)

// StoreType тип хранилища событий
type StoreType string

const (
	StoreInMemory StoreType = "inmemory"
	StorePostgres StoreType = "postgres"
	StoreMongoDB  StoreType = "mongodb"
)

// StoreFactoryConfig конфигурация фабрики хранилищ
type StoreFactoryConfig struct {
	Type     StoreType
	Postgres PostgresEventStoreConfig
	MongoDB  MongoDBEventStoreConfig
}

// NewEventStore создает хранилище событий по типу из конфигурации
func NewEventStore(ctx context.Context, config StoreFactoryConfig, deserializer Deserializer) (EventStore, error) {
	switch config.Type {
	case StoreInMemory, "":
		return NewInMemoryEventStore(), nil
	case StorePostgres:
		return NewPostgresEventStore(ctx, config.Postgres, deserializer)
	case StoreMongoDB:
		return NewMongoDBEventStore(ctx, config.MongoDB, deserializer)
	default:
		return nil, fmt.Errorf("unknown event store type: %s", config.Type)
	}
}
