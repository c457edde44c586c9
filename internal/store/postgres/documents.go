package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/facet-db/facet/internal/catalog"
	"github.com/facet-db/facet/internal/projection"
	"github.com/facet-db/facet/internal/store"
)

// documentsDDL creates the document table. Documents live as JSONB rows
// addressed by (schema_name, id); filters run over the doc column.
const documentsDDL = `
CREATE TABLE IF NOT EXISTS documents (
    schema_name   TEXT        NOT NULL,
    id            TEXT        NOT NULL,
    partition_key TEXT        NOT NULL,
    doc           JSONB       NOT NULL,
    updated_at    TIMESTAMPTZ NOT NULL,
    PRIMARY KEY (schema_name, id)
)`

// fieldNamePattern guards field names interpolated into JSONB accessors.
// Machine names and key fields both satisfy it.
var fieldNamePattern = regexp.MustCompile(`^[A-Za-z][A-Za-z0-9_]*$`)

// Pool is the subset of pgxpool.Pool the document store uses
type Pool interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// DocumentStore is the PostgreSQL store.DocumentStore
type DocumentStore struct {
	pool Pool
}

// NewDocumentStore wraps a pgx pool. Callers own the pool's lifecycle.
func NewDocumentStore(pool Pool) *DocumentStore {
	return &DocumentStore{pool: pool}
}

// EnsureIndex creates the document table and a per-schema GIN index so the
// filter expressions stay index-backed as documents accumulate.
func (s *DocumentStore) EnsureIndex(ctx context.Context, schema *projection.DocumentSchema) error {
	if !fieldNamePattern.MatchString(schema.Name) {
		return fmt.Errorf("invalid schema name %q", schema.Name)
	}

	if _, err := s.pool.Exec(ctx, documentsDDL); err != nil {
		return fmt.Errorf("ensure index %s: %w", schema.Name, convertError(err))
	}

	index := fmt.Sprintf(
		`CREATE INDEX IF NOT EXISTS documents_%s_gin ON documents USING GIN (doc jsonb_path_ops) WHERE schema_name = '%s'`,
		schema.Name, schema.Name)
	if _, err := s.pool.Exec(ctx, index); err != nil {
		return fmt.Errorf("ensure index %s: %w", schema.Name, convertError(err))
	}
	return nil
}

// Upsert implements store.DocumentStore
func (s *DocumentStore) Upsert(ctx context.Context, schema *projection.DocumentSchema, doc map[string]interface{}, partitionKey string, updatedAt time.Time) error {
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
VALUES ($1, $2, $3, $4, $5)
ON CONFLICT (schema_name, id)
DO UPDATE SET doc = EXCLUDED.doc, partition_key = EXCLUDED.partition_key, updated_at = EXCLUDED.updated_at`

	if _, err := s.pool.Exec(ctx, query, schema.Name, id, partitionKey, payload, updatedAt); err != nil {
		return fmt.Errorf("upsert document %s/%s: %w", schema.Name, id, convertError(err))
	}
	return nil
}

// Load implements store.DocumentStore
func (s *DocumentStore) Load(ctx context.Context, schema *projection.DocumentSchema, id string, _ string) (map[string]interface{}, error) {
	const query = `SELECT doc FROM documents WHERE schema_name = $1 AND id = $2`

	var payload []byte
	if err := s.pool.QueryRow(ctx, query, schema.Name, id).Scan(&payload); err != nil {
		return nil, fmt.Errorf("load document %s/%s: %w", schema.Name, id, convertError(err))
	}

	var doc map[string]interface{}
	if err := json.Unmarshal(payload, &doc); err != nil {
		return nil, fmt.Errorf("unmarshal document %s/%s: %w", schema.Name, id, err)
	}
	return doc, nil
}

// Query implements store.DocumentStore. Filter expressions compile to
// JSONB operators over the doc column.
func (s *DocumentStore) Query(ctx context.Context, schema *projection.DocumentSchema, filter store.Filter) (*store.Page, error) {
	query, args, err := buildQuery(schema.Name, filter)
	if err != nil {
		return nil, err
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query documents %s: %w", schema.Name, convertError(err))
	}
	defer rows.Close()

	page := &store.Page{Limit: filter.Limit, Offset: filter.Offset}
	for rows.Next() {
		var payload []byte
		var total int
		if err := rows.Scan(&payload, &total); err != nil {
			return nil, fmt.Errorf("scan document row: %w", convertError(err))
		}
		var doc map[string]interface{}
		if err := json.Unmarshal(payload, &doc); err != nil {
			return nil, fmt.Errorf("unmarshal document: %w", err)
		}
		page.Items = append(page.Items, doc)
		page.Total = total
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("query documents %s: %w", schema.Name, convertError(err))
	}
	return page, nil
}

// Delete implements store.DocumentStore
func (s *DocumentStore) Delete(ctx context.Context, schema *projection.DocumentSchema, id string, _ string) error {
	const query = `DELETE FROM documents WHERE schema_name = $1 AND id = $2`
	if _, err := s.pool.Exec(ctx, query, schema.Name, id); err != nil {
		return fmt.Errorf("delete document %s/%s: %w", schema.Name, id, convertError(err))
	}
	return nil
}

// buildQuery compiles a filter into SQL over the documents table. The row
// count is carried on every row via a window function so one round trip
// serves both the page and its total.
func buildQuery(schemaName string, filter store.Filter) (string, []interface{}, error) {
	var sb strings.Builder
	sb.WriteString(`SELECT doc, COUNT(*) OVER() AS total FROM documents WHERE schema_name = $1`)
	args := []interface{}{schemaName}

	fields := make([]string, 0, len(filter.Equals))
	for field := range filter.Equals {
		fields = append(fields, field)
	}
	// Deterministic placeholder order regardless of map iteration.
	sort.Strings(fields)

	for _, field := range fields {
		if !fieldNamePattern.MatchString(field) {
			return "", nil, fmt.Errorf("invalid filter field %q", field)
		}
		args = append(args, fmt.Sprint(filter.Equals[field]))
		fmt.Fprintf(&sb, " AND doc->>'%s' = $%d", field, len(args))
	}

	if filter.PathPrefix != "" {
		args = append(args, filter.PathPrefix+catalog.PathSeparator+"%")
		fmt.Fprintf(&sb, " AND doc->>'%s' LIKE $%d", projection.KeyFieldPath, len(args))
	}

	orderBy := filter.OrderBy
	if orderBy == "" {
		orderBy = projection.KeyFieldID
	}
	if !fieldNamePattern.MatchString(orderBy) {
		return "", nil, fmt.Errorf("invalid order field %q", orderBy)
	}
	fmt.Fprintf(&sb, " ORDER BY doc->>'%s'", orderBy)
	if filter.Descending {
		sb.WriteString(" DESC")
	}

	if filter.Limit > 0 {
		args = append(args, filter.Limit)
		fmt.Fprintf(&sb, " LIMIT $%d", len(args))
	}
	if filter.Offset > 0 {
		args = append(args, filter.Offset)
		fmt.Fprintf(&sb, " OFFSET $%d", len(args))
	}

	return sb.String(), args, nil
}
