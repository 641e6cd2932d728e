package postgres

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/kestrelpm/invoice-ingest/internal/core"
)

const logSchema = `
	CREATE TABLE IF NOT EXISTS function_logs (
		id BIGSERIAL PRIMARY KEY,
		request_id TEXT NOT NULL,
		function_name TEXT NOT NULL,
		timestamp TIMESTAMPTZ NOT NULL DEFAULT now(),
		level TEXT NOT NULL,
		message TEXT NOT NULL,
		metadata JSONB
	);
	CREATE INDEX IF NOT EXISTS idx_function_logs_request_id ON function_logs (request_id)
`

// LogStore is a Postgres implementation of the durable LogStore interface.
// Entries are append-only; nothing in this subsystem mutates or deletes them.
type LogStore struct {
	pool   *pgxpool.Pool
	logger *zap.Logger
}

// NewLogStore creates the function_logs table if needed and returns the store.
func NewLogStore(ctx context.Context, pool *pgxpool.Pool, logger *zap.Logger) (*LogStore, error) {
	if _, err := pool.Exec(ctx, logSchema); err != nil {
		return nil, fmt.Errorf("create function_logs table: %w", err)
	}
	return &LogStore{pool: pool, logger: logger}, nil
}

// Append writes a log entry.
func (s *LogStore) Append(ctx context.Context, entry *core.LogEntry) error {
	var metadata []byte
	if entry.Metadata != nil {
		var err error
		metadata, err = json.Marshal(entry.Metadata)
		if err != nil {
			s.logger.Warn("Failed to marshal log metadata", zap.Error(err))
			metadata = nil
		}
	}

	_, err := s.pool.Exec(ctx, `
		INSERT INTO function_logs (request_id, function_name, timestamp, level, message, metadata)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, entry.RequestID, entry.FunctionName, entry.Timestamp, entry.Level, entry.Message, metadata)
	if err != nil {
		return fmt.Errorf("insert log entry: %w", err)
	}
	return nil
}

// Connect opens a pgx pool against the configured DSN.
func Connect(ctx context.Context, dsn string) (*pgxpool.Pool, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("open postgres pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	return pool, nil
}
