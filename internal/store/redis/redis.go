// Package redis implements the item store on Redis, plus a small TTL cache
// for synthesized document schemas. Counter state is plain JSON under a
// namespaced key; the optimistic token lives inside the counter itself, so
// no WATCH/MULTI is needed.
package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/facet-db/facet/internal/projection"
	"github.com/facet-db/facet/internal/store"
)

// Config holds the Redis connection settings
type Config struct {
	Addr     string
	Password string
	DB       int

	// Prefix namespaces every key this process writes.
	Prefix string
}

// DefaultConfig returns the default connection settings
func DefaultConfig() Config {
	return Config{
		Addr:   "localhost:6379",
		Prefix: "facet:",
	}
}

// ItemStore is the Redis store.ItemStore
type ItemStore struct {
	client *redis.Client
	prefix string
}

// NewItemStore connects to Redis and verifies the connection
func NewItemStore(cfg Config) (*ItemStore, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("redis: %w", err)
	}

	return NewItemStoreWithClient(client, cfg.Prefix), nil
}

// NewItemStoreWithClient wraps an existing client
func NewItemStoreWithClient(client *redis.Client, prefix string) *ItemStore {
	return &ItemStore{client: client, prefix: prefix}
}

func (s *ItemStore) itemKey(key, partition string) string {
	return s.prefix + partition + ":" + key
}

// UpsertItem implements store.ItemStore
func (s *ItemStore) UpsertItem(ctx context.Context, key, partition string, value interface{}) error {
	payload, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("marshal item %s: %w", key, err)
	}
	if err := s.client.Set(ctx, s.itemKey(key, partition), payload, 0).Err(); err != nil {
		return fmt.Errorf("upsert item %s: %w", key, err)
	}
	return nil
}

// LoadItem implements store.ItemStore
func (s *ItemStore) LoadItem(ctx context.Context, key, partition string, out interface{}) error {
	payload, err := s.client.Get(ctx, s.itemKey(key, partition)).Bytes()
	if errors.Is(err, redis.Nil) {
		return fmt.Errorf("item %s: %w", key, store.ErrNotFound)
	}
	if err != nil {
		return fmt.Errorf("load item %s: %w", key, err)
	}
	if err := json.Unmarshal(payload, out); err != nil {
		return fmt.Errorf("unmarshal item %s: %w", key, err)
	}
	return nil
}

// Close closes the underlying client
func (s *ItemStore) Close() error {
	return s.client.Close()
}

// SchemaCache caches synthesized document schemas with a TTL, saving the
// read path a configuration-aggregate walk per request.
type SchemaCache struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
}

// NewSchemaCache wraps an existing client. A non-positive TTL disables
// expiry.
func NewSchemaCache(client *redis.Client, prefix string, ttl time.Duration) *SchemaCache {
	return &SchemaCache{client: client, prefix: prefix, ttl: ttl}
}

func (c *SchemaCache) schemaKey(name string) string {
	return c.prefix + "schema:" + name
}

// Put stores a schema under its name
func (c *SchemaCache) Put(ctx context.Context, schema *projection.DocumentSchema) error {
	payload, err := json.Marshal(schema)
	if err != nil {
		return fmt.Errorf("marshal schema %s: %w", schema.Name, err)
	}
	ttl := c.ttl
	if ttl < 0 {
		ttl = 0
	}
	if err := c.client.Set(ctx, c.schemaKey(schema.Name), payload, ttl).Err(); err != nil {
		return fmt.Errorf("cache schema %s: %w", schema.Name, err)
	}
	return nil
}

// Get loads a cached schema; a miss returns store.ErrNotFound
func (c *SchemaCache) Get(ctx context.Context, name string) (*projection.DocumentSchema, error) {
	payload, err := c.client.Get(ctx, c.schemaKey(name)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("schema %s: %w", name, store.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("load schema %s: %w", name, err)
	}

	var schema projection.DocumentSchema
	if err := json.Unmarshal(payload, &schema); err != nil {
		return nil, fmt.Errorf("unmarshal schema %s: %w", name, err)
	}
	return &schema, nil
}

// Invalidate drops a cached schema
func (c *SchemaCache) Invalidate(ctx context.Context, name string) error {
	return c.client.Del(ctx, c.schemaKey(name)).Err()
}
