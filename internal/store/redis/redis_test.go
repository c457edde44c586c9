package redis

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/facet-db/facet/internal/projection"
	"github.com/facet-db/facet/internal/serial"
	"github.com/facet-db/facet/internal/store"
)

func newTestClient(t *testing.T) (*goredis.Client, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return client, mr
}

func TestItemStoreRoundTrip(t *testing.T) {
	client, _ := newTestClient(t)
	s := NewItemStoreWithClient(client, "facet:")
	ctx := context.Background()

	in := serial.Counter{Next: 100, LastIncrement: 5, Token: 42}
	require.NoError(t, s.UpsertItem(ctx, "counter:a:b", "shape-1", &in))

	var out serial.Counter
	require.NoError(t, s.LoadItem(ctx, "counter:a:b", "shape-1", &out))
	assert.Equal(t, in, out)
}

func TestItemStoreMissingKey(t *testing.T) {
	client, _ := newTestClient(t)
	s := NewItemStoreWithClient(client, "facet:")

	var out serial.Counter
	err := s.LoadItem(context.Background(), "counter:a:b", "shape-1", &out)
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestItemStorePartitionsKeys(t *testing.T) {
	client, _ := newTestClient(t)
	s := NewItemStoreWithClient(client, "facet:")
	ctx := context.Background()

	require.NoError(t, s.UpsertItem(ctx, "k", "p1", map[string]int{"v": 1}))
	require.NoError(t, s.UpsertItem(ctx, "k", "p2", map[string]int{"v": 2}))

	var out map[string]int
	require.NoError(t, s.LoadItem(ctx, "k", "p1", &out))
	assert.Equal(t, 1, out["v"])
	require.NoError(t, s.LoadItem(ctx, "k", "p2", &out))
	assert.Equal(t, 2, out["v"])
}

func TestSchemaCache(t *testing.T) {
	client, mr := newTestClient(t)
	cache := NewSchemaCache(client, "facet:", time.Minute)
	ctx := context.Background()

	schema := &projection.DocumentSchema{
		Name: "board_game",
		Fields: []projection.Field{
			{Name: "title", Type: projection.TypeString, Searchable: true},
		},
	}
	require.NoError(t, cache.Put(ctx, schema))

	got, err := cache.Get(ctx, "board_game")
	require.NoError(t, err)
	assert.Equal(t, schema, got)

	// Expiry turns into a miss.
	mr.FastForward(2 * time.Minute)
	_, err = cache.Get(ctx, "board_game")
	assert.ErrorIs(t, err, store.ErrNotFound)

	require.NoError(t, cache.Put(ctx, schema))
	require.NoError(t, cache.Invalidate(ctx, "board_game"))
	_, err = cache.Get(ctx, "board_game")
	assert.ErrorIs(t, err, store.ErrNotFound)
}
