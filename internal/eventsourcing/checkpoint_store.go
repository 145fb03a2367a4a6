package eventsourcing

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// CheckpointStore хранит последнюю обработанную позицию проекции
type CheckpointStore interface {
	SaveCheckpoint(ctx context.Context, projectionName string, position int64) error
	GetCheckpoint(ctx context.Context, projectionName string) (int64, error)
	DeleteCheckpoint(ctx context.Context, projectionName string) error
}

// InMemoryCheckpointStore реализация CheckpointStore в памяти
type InMemoryCheckpointStore struct {
	mu          sync.RWMutex
	checkpoints map[string]int64
}

// NewInMemoryCheckpointStore создает новый InMemory Checkpoint Store
func NewInMemoryCheckpointStore() *InMemoryCheckpointStore {
	return &InMemoryCheckpointStore{checkpoints: make(map[string]int64)}
}

// SaveCheckpoint сохраняет позицию проекции
func (s *InMemoryCheckpointStore) SaveCheckpoint(ctx context.Context, projectionName string, position int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.checkpoints[projectionName] = position
	return nil
}

// GetCheckpoint возвращает позицию проекции; 0 если позиции нет
func (s *InMemoryCheckpointStore) GetCheckpoint(ctx context.Context, projectionName string) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.checkpoints[projectionName], nil
}

// DeleteCheckpoint удаляет позицию проекции
func (s *InMemoryCheckpointStore) DeleteCheckpoint(ctx context.Context, projectionName string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.checkpoints, projectionName)
	return nil
}

// PostgresCheckpointStore реализация CheckpointStore поверх PostgreSQL
type PostgresCheckpointStore struct {
	pool *pgxpool.Pool
}

// NewPostgresCheckpointStore создает новый PostgreSQL Checkpoint Store
func NewPostgresCheckpointStore(ctx context.Context, dsn string) (*PostgresCheckpointStore, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to PostgreSQL: %w", err)
	}
	return &PostgresCheckpointStore{pool: pool}, nil
}

// SaveCheckpoint сохраняет позицию проекции
func (s *PostgresCheckpointStore) SaveCheckpoint(ctx context.Context, projectionName string, position int64) error {
	query := `
		INSERT INTO projection_checkpoints (projection_name, position, updated_at)
		VALUES ($1, $2, NOW())
		ON CONFLICT (projection_name)
		DO UPDATE SET position = $2, updated_at = NOW()
	`
	if _, err := s.pool.Exec(ctx, query, projectionName, position); err != nil {
		return fmt.Errorf("%w: save checkpoint: %v", ErrStoreUnavailable, err)
	}
	return nil
}

// GetCheckpoint возвращает позицию проекции; 0 если позиции нет
func (s *PostgresCheckpointStore) GetCheckpoint(ctx context.Context, projectionName string) (int64, error) {
	var position int64
	err := s.pool.QueryRow(ctx,
		"SELECT position FROM projection_checkpoints WHERE projection_name = $1",
		projectionName).Scan(&position)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, nil
		}
		return 0, fmt.Errorf("%w: get checkpoint: %v", ErrStoreUnavailable, err)
	}
	return position, nil
}

// DeleteCheckpoint удаляет позицию проекции
func (s *PostgresCheckpointStore) DeleteCheckpoint(ctx context.Context, projectionName string) error {
	if _, err := s.pool.Exec(ctx,
		"DELETE FROM projection_checkpoints WHERE projection_name = $1", projectionName); err != nil {
		return fmt.Errorf("%w: delete checkpoint: %v", ErrStoreUnavailable, err)
	}
	return nil
}

// Close закрывает пул соединений
func (s *PostgresCheckpointStore) Close() {
	s.pool.Close()
}
