// Package sqlite is the embedded single-node backend: one database file
// serving aggregates, projection documents, and counter items. It trades
// the per-schema indexes of the postgres backend for zero operational
// overhead; filters run through the json1 extension.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"

	"github.com/facet-db/facet/internal/catalog"
	"github.com/facet-db/facet/internal/projection"
	"github.com/facet-db/facet/internal/store"
)

const ddl = `
CREATE TABLE IF NOT EXISTS aggregates (
    kind          TEXT NOT NULL,
    id            TEXT NOT NULL,
    partition_key TEXT NOT NULL,
    payload       TEXT NOT NULL,
    updated_by    TEXT NOT NULL,
    updated_at    TIMESTAMP NOT NULL,
    PRIMARY KEY (kind, id, partition_key)
);
CREATE TABLE IF NOT EXISTS documents (
    schema_name   TEXT NOT NULL,
    id            TEXT NOT NULL,
    partition_key TEXT NOT NULL,
    doc           TEXT NOT NULL,
    updated_at    TIMESTAMP NOT NULL,
    PRIMARY KEY (schema_name, id)
);
CREATE TABLE IF NOT EXISTS items (
    partition TEXT NOT NULL,
    key       TEXT NOT NULL,
    value     TEXT NOT NULL,
    PRIMARY KEY (partition, key)
);`

var fieldNamePattern = regexp.MustCompile(`^[A-Za-z][A-Za-z0-9_]*$`)

// Store implements store.AggregateStore, store.DocumentStore, and
// store.ItemStore over one sqlite database.
type Store struct {
	db *sql.DB
}

// Open opens or creates the database file and prepares the tables. Use
// ":memory:" for an ephemeral store.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite3", path+"?_busy_timeout=5000&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}
	// One writer at a time keeps sqlite's locking out of the picture.
	db.SetMaxOpenConns(1)

	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// NewStoreWithDB wraps an existing database handle, for tests
func NewStoreWithDB(db *sql.DB) (*Store, error) {
	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *Store) migrate() error {
	if _, err := s.db.Exec(ddl); err != nil {
		return fmt.Errorf("create sqlite tables: %w", err)
	}
	return nil
}

// Close closes the underlying database
func (s *Store) Close() error {
	return s.db.Close()
}

// LoadAggregate implements store.AggregateStore
func (s *Store) LoadAggregate(ctx context.Context, kind string, id uuid.UUID, partitionKey string) ([]byte, error) {
	const query = `SELECT payload FROM aggregates WHERE kind = ? AND id = ? AND partition_key = ?`

	var payload []byte
	err := s.db.QueryRowContext(ctx, query, kind, id.String(), partitionKey).Scan(&payload)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%s %s: %w", kind, id, store.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("load aggregate %s/%s: %w", kind, id, err)
	}
	return payload, nil
}

// SaveAggregate implements store.AggregateStore
func (s *Store) SaveAggregate(ctx context.Context, actor, kind string, id uuid.UUID, partitionKey string, payload []byte) error {
	const query = `
INSERT INTO aggregates (kind, id, partition_key, payload, updated_by, updated_at)
VALUES (?, ?, ?, ?, ?, ?)
ON CONFLICT (kind, id, partition_key)
DO UPDATE SET payload = excluded.payload, updated_by = excluded.updated_by, updated_at = excluded.updated_at`

	if _, err := s.db.ExecContext(ctx, query, kind, id.String(), partitionKey, payload, actor, time.Now().UTC()); err != nil {
		return fmt.Errorf("save aggregate %s/%s: %w", kind, id, err)
	}
	return nil
}

// EnsureIndex implements store.DocumentStore. The tables already exist;
// this validates the schema name and adds a covering index per schema.
func (s *Store) EnsureIndex(ctx context.Context, schema *projection.DocumentSchema) error {
	if !fieldNamePattern.MatchString(schema.Name) {
		return fmt.Errorf("invalid schema name %q", schema.Name)
	}

	index := fmt.Sprintf(
		`CREATE INDEX IF NOT EXISTS documents_%s_idx ON documents (schema_name, id) WHERE schema_name = '%s'`,
		schema.Name, schema.Name)
	if _, err := s.db.ExecContext(ctx, index); err != nil {
		return fmt.Errorf("ensure index %s: %w", schema.Name, err)
	}
	return nil
}

// Upsert implements store.DocumentStore
func (s *Store) Upsert(ctx context.Context, schema *projection.DocumentSchema, doc map[string]interface{}, partitionKey string, updatedAt time.Time) error {
	id, ok := doc[projection.KeyFieldID].(string)
	if !ok || id == "" {
		return fmt.Errorf("document for schema %s has no id field", schema.Name)
	}

	payload, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("marshal document %s/%s: %w", schema.Name, id, err)
	}

	const query = `
INSERT INTO documents (schema_name, id, partition_key, doc, updated_at)
VALUES (?, ?, ?, ?, ?)
ON CONFLICT (schema_name, id)
DO UPDATE SET doc = excluded.doc, partition_key = excluded.partition_key, updated_at = excluded.updated_at`

	if _, err := s.db.ExecContext(ctx, query, schema.Name, id, partitionKey, payload, updatedAt); err != nil {
		return fmt.Errorf("upsert document %s/%s: %w", schema.Name, id, err)
	}
	return nil
}

// Load implements store.DocumentStore
func (s *Store) Load(ctx context.Context, schema *projection.DocumentSchema, id string, _ string) (map[string]interface{}, error) {
	const query = `SELECT doc FROM documents WHERE schema_name = ? AND id = ?`

	var payload []byte
	err := s.db.QueryRowContext(ctx, query, schema.Name, id).Scan(&payload)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("document %s/%s: %w", schema.Name, id, store.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("load document %s/%s: %w", schema.Name, id, err)
	}

	var doc map[string]interface{}
	if err := json.Unmarshal(payload, &doc); err != nil {
		return nil, fmt.Errorf("unmarshal document %s/%s: %w", schema.Name, id, err)
	}
	return doc, nil
}

// Query implements store.DocumentStore. Filter expressions compile to
// json_extract calls over the doc column.
func (s *Store) Query(ctx context.Context, schema *projection.DocumentSchema, filter store.Filter) (*store.Page, error) {
	query, args, err := buildQuery(schema.Name, filter)
	if err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query documents %s: %w", schema.Name, err)
	}
	defer rows.Close()

	page := &store.Page{Limit: filter.Limit, Offset: filter.Offset}
	for rows.Next() {
		var payload []byte
		var total int
		if err := rows.Scan(&payload, &total); err != nil {
			return nil, fmt.Errorf("scan document row: %w", err)
		}
		var doc map[string]interface{}
		if err := json.Unmarshal(payload, &doc); err != nil {
			return nil, fmt.Errorf("unmarshal document: %w", err)
		}
		page.Items = append(page.Items, doc)
		page.Total = total
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("query documents %s: %w", schema.Name, err)
	}
	return page, nil
}

// Delete implements store.DocumentStore
func (s *Store) Delete(ctx context.Context, schema *projection.DocumentSchema, id string, _ string) error {
	const query = `DELETE FROM documents WHERE schema_name = ? AND id = ?`
	if _, err := s.db.ExecContext(ctx, query, schema.Name, id); err != nil {
		return fmt.Errorf("delete document %s/%s: %w", schema.Name, id, err)
	}
	return nil
}

// UpsertItem implements store.ItemStore
func (s *Store) UpsertItem(ctx context.Context, key, partition string, value interface{}) error {
	payload, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("marshal item %s: %w", key, err)
	}

	const query = `
INSERT INTO items (partition, key, value) VALUES (?, ?, ?)
ON CONFLICT (partition, key) DO UPDATE SET value = excluded.value`

	if _, err := s.db.ExecContext(ctx, query, partition, key, payload); err != nil {
		return fmt.Errorf("upsert item %s: %w", key, err)
	}
	return nil
}

// LoadItem implements store.ItemStore
func (s *Store) LoadItem(ctx context.Context, key, partition string, out interface{}) error {
	const query = `SELECT value FROM items WHERE partition = ? AND key = ?`

	var payload []byte
	err := s.db.QueryRowContext(ctx, query, partition, key).Scan(&payload)
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("item %s: %w", key, store.ErrNotFound)
	}
	if err != nil {
		return fmt.Errorf("load item %s: %w", key, err)
	}
	return json.Unmarshal(payload, out)
}

// buildQuery compiles a filter into SQL over the documents table. Values
// compare as text so numeric JSON values match their string form, the same
// contract the other backends follow.
func buildQuery(schemaName string, filter store.Filter) (string, []interface{}, error) {
	var sb strings.Builder
	sb.WriteString(`SELECT doc, COUNT(*) OVER() AS total FROM documents WHERE schema_name = ?`)
	args := []interface{}{schemaName}

	fields := make([]string, 0, len(filter.Equals))
	for field := range filter.Equals {
		fields = append(fields, field)
	}
	sort.Strings(fields)

	for _, field := range fields {
		if !fieldNamePattern.MatchString(field) {
			return "", nil, fmt.Errorf("invalid filter field %q", field)
		}
		args = append(args, fmt.Sprint(filter.Equals[field]))
		fmt.Fprintf(&sb, " AND CAST(json_extract(doc, '$.%s') AS TEXT) = ?", field)
	}

	if filter.PathPrefix != "" {
		args = append(args, filter.PathPrefix+catalog.PathSeparator+"%")
		fmt.Fprintf(&sb, " AND json_extract(doc, '$.%s') LIKE ?", projection.KeyFieldPath)
	}

	orderBy := filter.OrderBy
	if orderBy == "" {
		orderBy = projection.KeyFieldID
	}
	if !fieldNamePattern.MatchString(orderBy) {
		return "", nil, fmt.Errorf("invalid order field %q", orderBy)
	}
	fmt.Fprintf(&sb, " ORDER BY json_extract(doc, '$.%s')", orderBy)
	if filter.Descending {
		sb.WriteString(" DESC")
	}

	if filter.Limit > 0 {
		args = append(args, filter.Limit)
		sb.WriteString(" LIMIT ?")
	} else if filter.Offset > 0 {
		// sqlite requires a LIMIT clause before OFFSET; -1 means unbounded.
		sb.WriteString(" LIMIT -1")
	}
	if filter.Offset > 0 {
		args = append(args, filter.Offset)
		sb.WriteString(" OFFSET ?")
	}

	return sb.String(), args, nil
}
