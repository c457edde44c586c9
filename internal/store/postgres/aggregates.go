package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"
)

// aggregatesDDL creates the aggregate table. One JSONB row per aggregate,
// addressed by (kind, id, partition_key); saves overwrite in place and
// record who wrote last.
const aggregatesDDL = `
CREATE TABLE IF NOT EXISTS aggregates (
    kind          TEXT        NOT NULL,
    id            UUID        NOT NULL,
    partition_key TEXT        NOT NULL,
    payload       JSONB       NOT NULL,
    updated_by    TEXT        NOT NULL,
    updated_at    TIMESTAMPTZ NOT NULL DEFAULT now(),
    PRIMARY KEY (kind, id, partition_key)
)`

// AggregateStore is the PostgreSQL store.AggregateStore
type AggregateStore struct {
	db *sql.DB
}

// NewAggregateStore wraps an open database handle. Callers own the handle's
// lifecycle.
func NewAggregateStore(db *sql.DB) *AggregateStore {
	return &AggregateStore{db: db}
}

// Migrate creates the aggregate table when it does not exist
func (s *AggregateStore) Migrate(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, aggregatesDDL); err != nil {
		return fmt.Errorf("migrate aggregates: %w", convertError(err))
	}
	return nil
}

// LoadAggregate implements store.AggregateStore
func (s *AggregateStore) LoadAggregate(ctx context.Context, kind string, id uuid.UUID, partitionKey string) ([]byte, error) {
	const query = `SELECT payload FROM aggregates WHERE kind = $1 AND id = $2 AND partition_key = $3`

	var payload []byte
	err := s.db.QueryRowContext(ctx, query, kind, id, partitionKey).Scan(&payload)
	if err != nil {
		return nil, fmt.Errorf("load %s %s: %w", kind, id, convertError(err))
	}
	return payload, nil
}

// SaveAggregate implements store.AggregateStore
func (s *AggregateStore) SaveAggregate(ctx context.Context, actor, kind string, id uuid.UUID, partitionKey string, payload []byte) error {
	const query = `
INSERT INTO aggregates (kind, id, partition_key, payload, updated_by, updated_at)
VALUES ($1, $2, $3, $4, $5, now())
ON CONFLICT (kind, id, partition_key)
DO UPDATE SET payload = EXCLUDED.payload, updated_by = EXCLUDED.updated_by, updated_at = now()`

	if _, err := s.db.ExecContext(ctx, query, kind, id, partitionKey, payload, actor); err != nil {
		return fmt.Errorf("save %s %s: %w", kind, id, convertError(err))
	}
	return nil
}
