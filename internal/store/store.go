// Package store defines the persistence boundary: the aggregate store the
// engine writes configuration and instance state through, the document
// store holding the projections, and the key-value item store used for
// counters. Concrete implementations live in the postgres and redis
// sub-packages.
package store

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/facet-db/facet/internal/projection"
)

// ErrNotFound is returned when an aggregate, document, or item does not
// exist. Callers distinguish it from validation failures.
var ErrNotFound = errors.New("not found")

// Aggregate kinds persisted through the AggregateStore.
const (
	AggregateShape     = "shape"
	AggregateAttribute = "attribute"
	AggregateInstance  = "instance"
	AggregateCategory  = "category"
	AggregateTree      = "tree"
)

// AggregateStore persists aggregates addressed by (kind, id, partition
// key). The partition key is deterministic from the aggregate's logical
// owner (the shape id for instances). Payloads are opaque JSON; typed
// helpers in this package handle the marshalling.
type AggregateStore interface {
	// LoadAggregate returns ErrNotFound when the aggregate does not exist.
	LoadAggregate(ctx context.Context, kind string, id uuid.UUID, partitionKey string) ([]byte, error)

	// SaveAggregate persists the payload. A save failure propagates as a
	// hard failure of the enclosing operation; it is never swallowed.
	SaveAggregate(ctx context.Context, actor, kind string, id uuid.UUID, partitionKey string, payload []byte) error
}

// Filter is the filter expression the document store executes. Zero fields
// are ignored.
type Filter struct {
	// Equals matches documents whose field equals the given value.
	Equals map[string]interface{}

	// PathPrefix matches hierarchical documents strictly below the prefix.
	PathPrefix string

	OrderBy    string
	Descending bool
	Limit      int
	Offset     int
}

// Page is one page of query results
type Page struct {
	Items  []map[string]interface{} `json:"items"`
	Total  int                      `json:"total"`
	Limit  int                      `json:"limit"`
	Offset int                      `json:"offset"`
}

// DocumentStore persists and queries projection documents, addressed by the
// synthesized schema name plus the document id.
type DocumentStore interface {
	// EnsureIndex makes the backend ready to store documents of the schema.
	EnsureIndex(ctx context.Context, schema *projection.DocumentSchema) error

	// Upsert writes a document under (schema name, document id).
	Upsert(ctx context.Context, schema *projection.DocumentSchema, doc map[string]interface{}, partitionKey string, updatedAt time.Time) error

	// Load returns ErrNotFound when the document does not exist.
	Load(ctx context.Context, schema *projection.DocumentSchema, id string, partitionKey string) (map[string]interface{}, error)

	// Query returns the documents matching the filter, paged.
	Query(ctx context.Context, schema *projection.DocumentSchema, filter Filter) (*Page, error)

	// Delete removes a document; deleting a missing document is not an error.
	Delete(ctx context.Context, schema *projection.DocumentSchema, id string, partitionKey string) error
}

// ItemStore is a small key-value store, used for counter state
type ItemStore interface {
	UpsertItem(ctx context.Context, key, partition string, value interface{}) error

	// LoadItem unmarshals the stored value into out and returns ErrNotFound
	// when the key does not exist.
	LoadItem(ctx context.Context, key, partition string, out interface{}) error
}
