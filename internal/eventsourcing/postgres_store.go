package eventsourcing

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/akriventsev/vouchers/internal/core"
	"github.com/akriventsev/vouchers/internal/events"
)

// PostgresEventStoreConfig конфигурация PostgreSQL Event Store
type PostgresEventStoreConfig struct {
	DSN        string
	SchemaName string
	TableName  string
}

// Validate проверяет корректность конфигурации
func (c *PostgresEventStoreConfig) Validate() error {
	if c.DSN == "" {
		return core.NewError(core.CodeInvalidConfig, "postgres DSN cannot be empty")
	}
	if c.SchemaName == "" {
		c.SchemaName = "public"
	}
	if c.TableName == "" {
		c.TableName = "event_store"
	}
	return nil
}

// PostgresEventStore реализация EventStore поверх PostgreSQL.
// Append выполняется в транзакции: проверка MAX(version) по потоку и
// вставка выполняются атомарно, уникальный индекс (aggregate_id, version)
// страхует от гонки параллельных транзакций.
type PostgresEventStore struct {
	config       PostgresEventStoreConfig
	pool         *pgxpool.Pool
	deserializer Deserializer
}

// NewPostgresEventStore создает новый PostgreSQL Event Store
func NewPostgresEventStore(ctx context.Context, config PostgresEventStoreConfig, deserializer Deserializer) (*PostgresEventStore, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	pool, err := pgxpool.New(ctx, config.DSN)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to PostgreSQL: %w", err)
	}

	return &PostgresEventStore{
		config:       config,
		pool:         pool,
		deserializer: deserializer,
	}, nil
}

// Close закрывает пул соединений
func (s *PostgresEventStore) Close() {
	s.pool.Close()
}

func (s *PostgresEventStore) tableName() string {
	return fmt.Sprintf("%s.%s", s.config.SchemaName, s.config.TableName)
}

// AppendEvents добавляет события в поток агрегата
func (s *PostgresEventStore) AppendEvents(ctx context.Context, aggregateID string, expectedVersion int64, evts []events.Event) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("%w: begin transaction: %v", ErrStoreUnavailable, err)
	}
	defer tx.Rollback(ctx)

	var currentVersion *int64
	checkQuery := fmt.Sprintf("SELECT MAX(version) FROM %s WHERE aggregate_id = $1", s.tableName())
	if err := tx.QueryRow(ctx, checkQuery, aggregateID).Scan(&currentVersion); err != nil {
		return fmt.Errorf("%w: check version: %v", ErrStoreUnavailable, err)
	}

	actualVersion := int64(0)
	if currentVersion != nil {
		actualVersion = *currentVersion
	}

	if expectedVersion != actualVersion {
		return fmt.Errorf("%w: expected %d, got %d", ErrConcurrencyConflict, expectedVersion, actualVersion)
	}

	insertQuery := fmt.Sprintf(`
		INSERT INTO %s (event_id, aggregate_id, event_type, event_data, version, occurred_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, s.tableName())

	for i, event := range evts {
		eventData, err := json.Marshal(event)
		if err != nil {
			return fmt.Errorf("failed to marshal event: %w", err)
		}

		version := expectedVersion + int64(i) + 1
		if _, err := tx.Exec(ctx, insertQuery,
			event.EventID(),
			aggregateID,
			event.EventType(),
			eventData,
			version,
			event.OccurredAt(),
		); err != nil {
			// Конкурентная транзакция успела занять версию
			var pgErr *pgconn.PgError
			if errors.As(err, &pgErr) && pgErr.Code == "23505" {
				return fmt.Errorf("%w: version %d already appended", ErrConcurrencyConflict, version)
			}
			return fmt.Errorf("%w: insert event: %v", ErrStoreUnavailable, err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("%w: commit: %v", ErrStoreUnavailable, err)
	}
	return nil
}

// GetEvents возвращает события агрегата начиная с указанной версии
func (s *PostgresEventStore) GetEvents(ctx context.Context, aggregateID string, fromVersion int64) ([]StoredEvent, error) {
	query := fmt.Sprintf(`
		SELECT event_id, aggregate_id, event_type, event_data, version, position, occurred_at, created_at
		FROM %s
		WHERE aggregate_id = $1 AND version >= $2
		ORDER BY version ASC
	`, s.tableName())

	rows, err := s.pool.Query(ctx, query, aggregateID, fromVersion)
	if err != nil {
		return nil, fmt.Errorf("%w: query events: %v", ErrStoreUnavailable, err)
	}
	defer rows.Close()

	result, err := s.scanEvents(rows)
	if err != nil {
		return nil, err
	}

	if len(result) == 0 {
		return nil, ErrStreamNotFound
	}
	return result, nil
}

// GetEventsByType возвращает события определенного типа начиная с указанного времени
func (s *PostgresEventStore) GetEventsByType(ctx context.Context, eventType string, fromTimestamp time.Time) ([]StoredEvent, error) {
	query := fmt.Sprintf(`
		SELECT event_id, aggregate_id, event_type, event_data, version, position, occurred_at, created_at
		FROM %s
		WHERE event_type = $1 AND occurred_at >= $2
		ORDER BY position ASC
	`, s.tableName())

	rows, err := s.pool.Query(ctx, query, eventType, fromTimestamp)
	if err != nil {
		return nil, fmt.Errorf("%w: query events by type: %v", ErrStoreUnavailable, err)
	}
	defer rows.Close()

	return s.scanEvents(rows)
}

// GetAllEvents возвращает все события начиная с указанной позиции
func (s *PostgresEventStore) GetAllEvents(ctx context.Context, fromPosition int64) (<-chan StoredEvent, error) {
	query := fmt.Sprintf(`
		SELECT event_id, aggregate_id, event_type, event_data, version, position, occurred_at, created_at
		FROM %s
		WHERE position >= $1
		ORDER BY position ASC
	`, s.tableName())

	rows, err := s.pool.Query(ctx, query, fromPosition)
	if err != nil {
		return nil, fmt.Errorf("%w: query events: %v", ErrStoreUnavailable, err)
	}

	ch := make(chan StoredEvent, 100)
	go func() {
		defer close(ch)
		defer rows.Close()

		for rows.Next() {
			stored, err := s.scanEvent(rows)
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

func (s *PostgresEventStore) scanEvents(rows pgx.Rows) ([]StoredEvent, error) {
	var result []StoredEvent
	for rows.Next() {
		stored, err := s.scanEvent(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, stored)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: read rows: %v", ErrStoreUnavailable, err)
	}
	return result, nil
}

func (s *PostgresEventStore) scanEvent(rows pgx.Rows) (StoredEvent, error) {
	var stored StoredEvent
	var eventData []byte

	if err := rows.Scan(
		&stored.ID,
		&stored.AggregateID,
		&stored.EventType,
		&eventData,
		&stored.Version,
		&stored.Position,
		&stored.OccurredAt,
		&stored.CreatedAt,
	); err != nil {
		return StoredEvent{}, fmt.Errorf("failed to scan event: %w", err)
	}

	if s.deserializer != nil {
		event, err := s.deserializer.DeserializeEvent(stored.EventType, eventData)
		if err != nil {
			return StoredEvent{}, fmt.Errorf("failed to deserialize event %s: %w", stored.ID, err)
		}
		stored.EventData = event
	}

	return stored, nil
}
