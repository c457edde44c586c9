package sqlite

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/facet-db/facet/internal/projection"
	"github.com/facet-db/facet/internal/serial"
	"github.com/facet-db/facet/internal/store"
)

func newStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestAggregateRoundTrip(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()
	id := uuid.New()

	require.NoError(t, s.SaveAggregate(ctx, "tester", store.AggregateShape, id, "default", []byte(`{"machineName":"book"}`)))

	payload, err := s.LoadAggregate(ctx, store.AggregateShape, id, "default")
	require.NoError(t, err)
	assert.JSONEq(t, `{"machineName":"book"}`, string(payload))

	// Overwrite wins.
	require.NoError(t, s.SaveAggregate(ctx, "tester", store.AggregateShape, id, "default", []byte(`{"machineName":"novel"}`)))
	payload, err = s.LoadAggregate(ctx, store.AggregateShape, id, "default")
	require.NoError(t, err)
	assert.JSONEq(t, `{"machineName":"novel"}`, string(payload))
}

func TestAggregateNotFound(t *testing.T) {
	s := newStore(t)

	_, err := s.LoadAggregate(context.Background(), store.AggregateShape, uuid.New(), "default")
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestAggregatePartitionIsolation(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()
	id := uuid.New()

	require.NoError(t, s.SaveAggregate(ctx, "tester", store.AggregateShape, id, "tenant-a", []byte(`{}`)))

	_, err := s.LoadAggregate(ctx, store.AggregateShape, id, "tenant-b")
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func bookSchema() *projection.DocumentSchema {
	return &projection.DocumentSchema{Name: "book"}
}

func upsertDoc(t *testing.T, s *Store, doc map[string]interface{}) {
	t.Helper()
	require.NoError(t, s.Upsert(context.Background(), bookSchema(), doc, "p", time.Now()))
}

func TestDocumentRoundTrip(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()
	require.NoError(t, s.EnsureIndex(ctx, bookSchema()))

	upsertDoc(t, s, map[string]interface{}{"id": "d1", "title": "Dune", "pages": 412})

	doc, err := s.Load(ctx, bookSchema(), "d1", "p")
	require.NoError(t, err)
	assert.Equal(t, "Dune", doc["title"])
	assert.EqualValues(t, 412, doc["pages"])

	_, err = s.Load(ctx, bookSchema(), "missing", "p")
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestUpsertRequiresID(t *testing.T) {
	s := newStore(t)
	err := s.Upsert(context.Background(), bookSchema(), map[string]interface{}{"title": "Dune"}, "p", time.Now())
	assert.ErrorContains(t, err, "no id field")
}

func TestEnsureIndexRejectsUnsafeSchemaName(t *testing.T) {
	s := newStore(t)
	err := s.EnsureIndex(context.Background(), &projection.DocumentSchema{Name: "bad; DROP TABLE documents"})
	assert.ErrorContains(t, err, "invalid schema name")
}

func TestQueryFiltersAndPages(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()

	upsertDoc(t, s, map[string]interface{}{"id": "d1", "title": "Dune", "pages": 412})
	upsertDoc(t, s, map[string]interface{}{"id": "d2", "title": "Dune", "pages": 896})
	upsertDoc(t, s, map[string]interface{}{"id": "d3", "title": "Hyperion", "pages": 482})

	page, err := s.Query(ctx, bookSchema(), store.Filter{
		Equals:  map[string]interface{}{"title": "Dune"},
		OrderBy: "pages",
	})
	require.NoError(t, err)
	assert.Equal(t, 2, page.Total)
	require.Len(t, page.Items, 2)
	assert.Equal(t, "d1", page.Items[0]["id"])
	assert.Equal(t, "d2", page.Items[1]["id"])

	// Numeric equality matches through the text form.
	page, err = s.Query(ctx, bookSchema(), store.Filter{
		Equals: map[string]interface{}{"pages": 896},
	})
	require.NoError(t, err)
	require.Len(t, page.Items, 1)
	assert.Equal(t, "d2", page.Items[0]["id"])

	// Offset without limit.
	page, err = s.Query(ctx, bookSchema(), store.Filter{OrderBy: "id", Offset: 1})
	require.NoError(t, err)
	assert.Equal(t, 3, page.Total)
	require.Len(t, page.Items, 2)
	assert.Equal(t, "d2", page.Items[0]["id"])

	// Limit with descending order.
	page, err = s.Query(ctx, bookSchema(), store.Filter{OrderBy: "id", Descending: true, Limit: 1})
	require.NoError(t, err)
	require.Len(t, page.Items, 1)
	assert.Equal(t, "d3", page.Items[0]["id"])
}

func TestQueryPathPrefix(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()

	upsertDoc(t, s, map[string]interface{}{"id": "root", "path": "/root"})
	upsertDoc(t, s, map[string]interface{}{"id": "child", "path": "/root/child"})
	upsertDoc(t, s, map[string]interface{}{"id": "grandchild", "path": "/root/child/grandchild"})
	upsertDoc(t, s, map[string]interface{}{"id": "other", "path": "/rooted"})

	page, err := s.Query(ctx, bookSchema(), store.Filter{PathPrefix: "/root", OrderBy: "path"})
	require.NoError(t, err)
	assert.Equal(t, 2, page.Total)
	require.Len(t, page.Items, 2)
	assert.Equal(t, "child", page.Items[0]["id"])
	assert.Equal(t, "grandchild", page.Items[1]["id"])
}

func TestQueryRejectsUnsafeFields(t *testing.T) {
	s := newStore(t)

	_, err := s.Query(context.Background(), bookSchema(), store.Filter{
		Equals: map[string]interface{}{"title' --": "x"},
	})
	assert.ErrorContains(t, err, "invalid filter field")

	_, err = s.Query(context.Background(), bookSchema(), store.Filter{OrderBy: "1; DROP TABLE documents"})
	assert.ErrorContains(t, err, "invalid order field")
}

func TestDeleteIsIdempotent(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()

	upsertDoc(t, s, map[string]interface{}{"id": "d1"})
	require.NoError(t, s.Delete(ctx, bookSchema(), "d1", "p"))
	require.NoError(t, s.Delete(ctx, bookSchema(), "d1", "p"))

	_, err := s.Load(ctx, bookSchema(), "d1", "p")
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestItemStoreBacksSerialCounters(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()

	counter := serial.Counter{ShapeID: uuid.New(), AttributeID: uuid.New(), Next: 100}
	require.NoError(t, s.UpsertItem(ctx, counter.Key(), "counters", counter))

	var loaded serial.Counter
	require.NoError(t, s.LoadItem(ctx, counter.Key(), "counters", &loaded))
	assert.Equal(t, counter.Next, loaded.Next)
	assert.Equal(t, counter.ShapeID, loaded.ShapeID)

	var missing serial.Counter
	err := s.LoadItem(ctx, "counter:unknown", "counters", &missing)
	assert.ErrorIs(t, err, store.ErrNotFound)
}
