package web

import (
	"encoding/json"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/facet-db/facet/internal/engine"
)

func dialFeed(t *testing.T, feed *Feed) *websocket.Conn {
	t.Helper()
	server := httptest.NewServer(feed)
	t.Cleanup(server.Close)

	url := "ws" + strings.TrimPrefix(server.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func TestFeedDeliversEvents(t *testing.T) {
	feed := NewFeed(zap.NewNop())
	conn := dialFeed(t, feed)

	require.Eventually(t, func() bool { return feed.Subscribers() == 1 }, time.Second, 10*time.Millisecond)

	feed.Publish(engine.ChangeEvent{Kind: "instance", Action: "created", ID: "42"})

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, payload, err := conn.ReadMessage()
	require.NoError(t, err)

	var event engine.ChangeEvent
	require.NoError(t, json.Unmarshal(payload, &event))
	assert.Equal(t, "instance", event.Kind)
	assert.Equal(t, "created", event.Action)
	assert.Equal(t, "42", event.ID)
}

func TestFeedDropsDisconnectedClients(t *testing.T) {
	feed := NewFeed(zap.NewNop())
	conn := dialFeed(t, feed)

	require.Eventually(t, func() bool { return feed.Subscribers() == 1 }, time.Second, 10*time.Millisecond)

	conn.Close()
	require.Eventually(t, func() bool { return feed.Subscribers() == 0 }, time.Second, 10*time.Millisecond)

	// Publishing to an empty feed is a no-op.
	feed.Publish(engine.ChangeEvent{Kind: "instance", Action: "created"})
}

func TestFeedPublishWithoutSubscribers(t *testing.T) {
	feed := NewFeed(zap.NewNop())
	feed.Publish(engine.ChangeEvent{Kind: "shape", Action: "updated"})
	assert.Zero(t, feed.Subscribers())
}
