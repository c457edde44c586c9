// Package memory provides in-memory implementations of the store
// interfaces. They back tests and the dev-mode server; values round-trip
// through JSON so behavior matches the serializing backends.
package memory

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/facet-db/facet/internal/catalog"
	"github.com/facet-db/facet/internal/projection"
	"github.com/facet-db/facet/internal/store"
)

// AggregateStore is an in-memory store.AggregateStore
type AggregateStore struct {
	mu         sync.RWMutex
	aggregates map[string][]byte
}

// NewAggregateStore creates an empty aggregate store
func NewAggregateStore() *AggregateStore {
	return &AggregateStore{aggregates: make(map[string][]byte)}
}

func aggregateKey(kind string, id uuid.UUID, partitionKey string) string {
	return kind + "/" + partitionKey + "/" + id.String()
}

// LoadAggregate implements store.AggregateStore
func (s *AggregateStore) LoadAggregate(ctx context.Context, kind string, id uuid.UUID, partitionKey string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	payload, ok := s.aggregates[aggregateKey(kind, id, partitionKey)]
	if !ok {
		return nil, fmt.Errorf("%s %s: %w", kind, id, store.ErrNotFound)
	}
	return payload, nil
}

// SaveAggregate implements store.AggregateStore
func (s *AggregateStore) SaveAggregate(_ context.Context, _, kind string, id uuid.UUID, partitionKey string, payload []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.aggregates[aggregateKey(kind, id, partitionKey)] = append([]byte(nil), payload...)
	return nil
}

// DocumentStore is an in-memory store.DocumentStore
type DocumentStore struct {
	mu      sync.RWMutex
	indexes map[string]bool
	docs    map[string]map[string]map[string]interface{} // schema -> id -> document
}

// NewDocumentStore creates an empty document store
func NewDocumentStore() *DocumentStore {
	return &DocumentStore{
		indexes: make(map[string]bool),
		docs:    make(map[string]map[string]map[string]interface{}),
	}
}

// EnsureIndex implements store.DocumentStore
func (s *DocumentStore) EnsureIndex(_ context.Context, schema *projection.DocumentSchema) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.indexes[schema.Name] = true
	if s.docs[schema.Name] == nil {
		s.docs[schema.Name] = make(map[string]map[string]interface{})
	}
	return nil
}

// HasIndex reports whether EnsureIndex ran for the schema
func (s *DocumentStore) HasIndex(name string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.indexes[name]
}

// Upsert implements store.DocumentStore
func (s *DocumentStore) Upsert(_ context.Context, schema *projection.DocumentSchema, doc map[string]interface{}, _ string, _ time.Time) error {
	id, ok := doc[projection.KeyFieldID].(string)
	if !ok || id == "" {
		return fmt.Errorf("document has no id field")
	}

	payload, err := json.Marshal(doc)
	if err != nil {
		return err
	}
	var copied map[string]interface{}
	if err := json.Unmarshal(payload, &copied); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.docs[schema.Name] == nil {
		s.docs[schema.Name] = make(map[string]map[string]interface{})
	}
	s.docs[schema.Name][id] = copied
	return nil
}

// Load implements store.DocumentStore
func (s *DocumentStore) Load(_ context.Context, schema *projection.DocumentSchema, id string, _ string) (map[string]interface{}, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	doc, ok := s.docs[schema.Name][id]
	if !ok {
		return nil, fmt.Errorf("document %s/%s: %w", schema.Name, id, store.ErrNotFound)
	}
	return doc, nil
}

// Query implements store.DocumentStore
func (s *DocumentStore) Query(ctx context.Context, schema *projection.DocumentSchema, filter store.Filter) (*store.Page, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	var matched []map[string]interface{}
	for _, doc := range s.docs[schema.Name] {
		if matches(doc, filter) {
			matched = append(matched, doc)
		}
	}

	orderBy := filter.OrderBy
	if orderBy == "" {
		orderBy = projection.KeyFieldID
	}
	sort.Slice(matched, func(i, j int) bool {
		a := fmt.Sprint(matched[i][orderBy])
		b := fmt.Sprint(matched[j][orderBy])
		if filter.Descending {
			return a > b
		}
		return a < b
	})

	page := &store.Page{Total: len(matched), Limit: filter.Limit, Offset: filter.Offset}
	start := filter.Offset
	if start > len(matched) {
		start = len(matched)
	}
	end := len(matched)
	if filter.Limit > 0 && start+filter.Limit < end {
		end = start + filter.Limit
	}
	page.Items = matched[start:end]
	return page, nil
}

// Delete implements store.DocumentStore
func (s *DocumentStore) Delete(_ context.Context, schema *projection.DocumentSchema, id string, _ string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.docs[schema.Name], id)
	return nil
}

func matches(doc map[string]interface{}, filter store.Filter) bool {
	for field, expected := range filter.Equals {
		if fmt.Sprint(doc[field]) != fmt.Sprint(expected) {
			return false
		}
	}
	if filter.PathPrefix != "" {
		path, _ := doc[projection.KeyFieldPath].(string)
		if !strings.HasPrefix(path, filter.PathPrefix+catalog.PathSeparator) {
			return false
		}
	}
	return true
}

// ItemStore is an in-memory store.ItemStore
type ItemStore struct {
	mu    sync.RWMutex
	items map[string][]byte
}

// NewItemStore creates an empty item store
func NewItemStore() *ItemStore {
	return &ItemStore{items: make(map[string][]byte)}
}

// UpsertItem implements store.ItemStore
func (s *ItemStore) UpsertItem(_ context.Context, key, partition string, value interface{}) error {
	payload, err := json.Marshal(value)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.items[partition+"/"+key] = payload
	return nil
}

// LoadItem implements store.ItemStore
func (s *ItemStore) LoadItem(_ context.Context, key, partition string, out interface{}) error {
	s.mu.RLock()
	defer s.mu.RUnlock()

	payload, ok := s.items[partition+"/"+key]
	if !ok {
		return fmt.Errorf("item %s: %w", key, store.ErrNotFound)
	}
	return json.Unmarshal(payload, out)
}
