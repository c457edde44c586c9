package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
)

// itemsDDL creates the key-value table backing counters when no redis is
// configured.
const itemsDDL = `
CREATE TABLE IF NOT EXISTS items (
    partition TEXT  NOT NULL,
    key       TEXT  NOT NULL,
    value     JSONB NOT NULL,
    PRIMARY KEY (partition, key)
)`

// ItemStore is the PostgreSQL store.ItemStore
type ItemStore struct {
	db *sql.DB
}

// NewItemStore wraps an open database handle. Callers own the handle's
// lifecycle.
func NewItemStore(db *sql.DB) *ItemStore {
	return &ItemStore{db: db}
}

// Migrate creates the items table when it does not exist
func (s *ItemStore) Migrate(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, itemsDDL); err != nil {
		return fmt.Errorf("migrate items: %w", convertError(err))
	}
	return nil
}

// UpsertItem implements store.ItemStore
func (s *ItemStore) UpsertItem(ctx context.Context, key, partition string, value interface{}) error {
	payload, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("marshal item %s: %w", key, err)
	}

	const query = `
INSERT INTO items (partition, key, value) VALUES ($1, $2, $3)
ON CONFLICT (partition, key) DO UPDATE SET value = EXCLUDED.value`

	if _, err := s.db.ExecContext(ctx, query, partition, key, payload); err != nil {
		return fmt.Errorf("upsert item %s: %w", key, convertError(err))
	}
	return nil
}

// LoadItem implements store.ItemStore
func (s *ItemStore) LoadItem(ctx context.Context, key, partition string, out interface{}) error {
	const query = `SELECT value FROM items WHERE partition = $1 AND key = $2`

	var payload []byte
	if err := s.db.QueryRowContext(ctx, query, partition, key).Scan(&payload); err != nil {
		return fmt.Errorf("load item %s: %w", key, convertError(err))
	}
	return json.Unmarshal(payload, out)
}
