package eventsourcing

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/akriventsev/vouchers/internal/core"
	"github.com/akriventsev/vouchers/internal/events"
)

// MongoDBEventStoreConfig конфигурация MongoDB Event Store
type MongoDBEventStoreConfig struct {
	URI        string
	Database   string
	Collection string
}

// Validate проверяет корректность конфигурации
func (c *MongoDBEventStoreConfig) Validate() error {
	if c.URI == "" {
		return core.NewError(core.CodeInvalidConfig, "mongodb URI cannot be empty")
	}
	if c.Database == "" {
		c.Database = "vouchers"
	}
	if c.Collection == "" {
		c.Collection = "event_store"
	}
	return nil
}

// MongoDBEventStore реализация EventStore поверх MongoDB.
// Уникальный составной индекс (aggregate_id, version) закрывает гонку
// параллельных append: проигравшая транзакция получает duplicate key.
// Глобальные позиции выделяются атомарным инкрементом документа-счетчика,
// поэтому append'ы в разные агрегаты не выдают дубликатов позиций.
type MongoDBEventStore struct {
	config       MongoDBEventStoreConfig
	client       *mongo.Client
	collection   *mongo.Collection
	counters     *mongo.Collection
	deserializer Deserializer
}

type mongoCounterDoc struct {
	ID    string `bson:"_id"`
	Value int64  `bson:"value"`
}

type mongoEventDoc struct {
	EventID     string    `bson:"event_id"`
	AggregateID string    `bson:"aggregate_id"`
	EventType   string    `bson:"event_type"`
	EventData   []byte    `bson:"event_data"`
	Version     int64     `bson:"version"`
	Position    int64     `bson:"position"`
	OccurredAt  time.Time `bson:"occurred_at"`
	CreatedAt   time.Time `bson:"created_at"`
}

// NewMongoDBEventStore создает новый MongoDB Event Store
func NewMongoDBEventStore(ctx context.Context, config MongoDBEventStoreConfig, deserializer Deserializer) (*MongoDBEventStore, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(config.URI))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to MongoDB: %w", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		return nil, fmt.Errorf("failed to ping MongoDB: %w", err)
	}

	collection := client.Database(config.Database).Collection(config.Collection)

	indexes := []mongo.IndexModel{
		{
			Keys: bson.D{
				{Key: "aggregate_id", Value: 1},
				{Key: "version", Value: 1},
			},
			Options: options.Index().SetUnique(true),
		},
		{
			Keys:    bson.D{{Key: "position", Value: 1}},
			Options: options.Index().SetUnique(true),
		},
		{Keys: bson.D{{Key: "event_type", Value: 1}}},
	}
	if _, err := collection.Indexes().CreateMany(ctx, indexes); err != nil {
		return nil, fmt.Errorf("failed to create indexes: %w", err)
	}

	return &MongoDBEventStore{
		config:       config,
		client:       client,
		collection:   collection,
		counters:     client.Database(config.Database).Collection(config.Collection + "_counters"),
		deserializer: deserializer,
	}, nil
}

// Close закрывает соединение с MongoDB
func (s *MongoDBEventStore) Close(ctx context.Context) error {
	return s.client.Disconnect(ctx)
}

// AppendEvents добавляет события в поток агрегата
func (s *MongoDBEventStore) AppendEvents(ctx context.Context, aggregateID string, expectedVersion int64, evts []events.Event) error {
	currentVersion, err := s.streamVersion(ctx, aggregateID)
	if err != nil {
		return err
	}
	if expectedVersion != currentVersion {
		return fmt.Errorf("%w: expected %d, got %d", ErrConcurrencyConflict, expectedVersion, currentVersion)
	}

	position, err := s.allocatePositions(ctx, len(evts))
	if err != nil {
		return err
	}

	docs := make([]interface{}, len(evts))
	now := time.Now()
	for i, event := range evts {
		eventData, err := json.Marshal(event)
		if err != nil {
			return fmt.Errorf("failed to marshal event: %w", err)
		}
		position++
		docs[i] = mongoEventDoc{
			EventID:     event.EventID(),
			AggregateID: aggregateID,
			EventType:   event.EventType(),
			EventData:   eventData,
			Version:     expectedVersion + int64(i) + 1,
			Position:    position,
			OccurredAt:  event.OccurredAt(),
			CreatedAt:   now,
		}
	}

	if _, err := s.collection.InsertMany(ctx, docs); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return fmt.Errorf("%w: concurrent append detected", ErrConcurrencyConflict)
		}
		return fmt.Errorf("%w: insert events: %v", ErrStoreUnavailable, err)
	}

	return nil
}

func (s *MongoDBEventStore) streamVersion(ctx context.Context, aggregateID string) (int64, error) {
	opts := options.FindOne().SetSort(bson.D{{Key: "version", Value: -1}})
	var doc mongoEventDoc
	err := s.collection.FindOne(ctx, bson.M{"aggregate_id": aggregateID}, opts).Decode(&doc)
	if err == mongo.ErrNoDocuments {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("%w: read stream version: %v", ErrStoreUnavailable, err)
	}
	return doc.Version, nil
}

// allocatePositions атомарно резервирует блок позиций и возвращает
// позицию перед ним. Отвергнутый по версии insert оставляет в нумерации
// дыру; GetAllEvents и чекпоинты фильтруют по $gte и дыр не замечают.
func (s *MongoDBEventStore) allocatePositions(ctx context.Context, count int) (int64, error) {
	opts := options.FindOneAndUpdate().SetUpsert(true).SetReturnDocument(options.After)
	var doc mongoCounterDoc
	err := s.counters.FindOneAndUpdate(ctx,
		bson.M{"_id": "event_position"},
		bson.M{"$inc": bson.M{"value": int64(count)}},
		opts).Decode(&doc)
	if err != nil {
		return 0, fmt.Errorf("%w: allocate positions: %v", ErrStoreUnavailable, err)
	}
	return doc.Value - int64(count), nil
}

// GetEvents возвращает события агрегата начиная с указанной версии
func (s *MongoDBEventStore) GetEvents(ctx context.Context, aggregateID string, fromVersion int64) ([]StoredEvent, error) {
	filter := bson.M{
		"aggregate_id": aggregateID,
		"version":      bson.M{"$gte": fromVersion},
	}
	opts := options.Find().SetSort(bson.D{{Key: "version", Value: 1}})

	cursor, err := s.collection.Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("%w: find events: %v", ErrStoreUnavailable, err)
	}
	defer cursor.Close(ctx)

	var result []StoredEvent
	for cursor.Next(ctx) {
		var doc mongoEventDoc
		if err := cursor.Decode(&doc); err != nil {
			return nil, fmt.Errorf("failed to decode event: %w", err)
		}
		stored, err := s.toStored(doc)
		if err != nil {
			return nil, err
		}
		result = append(result, stored)
	}
	if err := cursor.Err(); err != nil {
		return nil, fmt.Errorf("%w: read cursor: %v", ErrStoreUnavailable, err)
	}

	if len(result) == 0 {
		return nil, ErrStreamNotFound
	}
	return result, nil
}

// GetEventsByType возвращает события определенного типа начиная с указанного времени
func (s *MongoDBEventStore) GetEventsByType(ctx context.Context, eventType string, fromTimestamp time.Time) ([]StoredEvent, error) {
	filter := bson.M{
		"event_type":  eventType,
		"occurred_at": bson.M{"$gte": fromTimestamp},
	}
	opts := options.Find().SetSort(bson.D{{Key: "position", Value: 1}})

	cursor, err := s.collection.Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("%w: find events by type: %v", ErrStoreUnavailable, err)
	}
	defer cursor.Close(ctx)

	var result []StoredEvent
	for cursor.Next(ctx) {
		var doc mongoEventDoc
		if err := cursor.Decode(&doc); err != nil {
			return nil, fmt.Errorf("failed to decode event: %w", err)
		}
		stored, err := s.toStored(doc)
		if err != nil {
			return nil, err
		}
		result = append(result, stored)
	}
	if err := cursor.Err(); err != nil {
		return nil, fmt.Errorf("%w: read cursor: %v", ErrStoreUnavailable, err)
	}

	return result, nil
}

// GetAllEvents возвращает все события начиная с указанной позиции
func (s *MongoDBEventStore) GetAllEvents(ctx context.Context, fromPosition int64) (<-chan StoredEvent, error) {
	filter := bson.M{"position": bson.M{"$gte": fromPosition}}
	opts := options.Find().SetSort(bson.D{{Key: "position", Value: 1}})

	cursor, err := s.collection.Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("%w: find events: %v", ErrStoreUnavailable, err)
	}

	ch := make(chan StoredEvent, 100)
	go func() {
		defer close(ch)
		defer cursor.Close(ctx)

		for cursor.Next(ctx) {
			var doc mongoEventDoc
			if err := cursor.Decode(&doc); err != nil {
				return
			}
			stored, err := s.toStored(doc)
			if err != nil {
				return
			}
			select {
			case ch <- stored:
			case <-ctx.Done():
				return
			}
		}
	}()

	return ch, nil
}

func (s *MongoDBEventStore) toStored(doc mongoEventDoc) (StoredEvent, error) {
	stored := StoredEvent{
		ID:          doc.EventID,
		AggregateID: doc.AggregateID,
		EventType:   doc.EventType,
		Version:     doc.Version,
		Position:    doc.Position,
		OccurredAt:  doc.OccurredAt,
		CreatedAt:   doc.CreatedAt,
	}

	if s.deserializer != nil {
		event, err := s.deserializer.DeserializeEvent(doc.EventType, doc.EventData)
		if err != nil {
			return StoredEvent{}, fmt.Errorf("failed to deserialize event %s: %w", doc.EventID, err)
		}
		stored.EventData = event
	}

	return stored, nil
}
