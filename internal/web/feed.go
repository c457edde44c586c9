package web

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/facet-db/facet/internal/engine"
)

const (
	feedWriteWait  = 10 * time.Second
	feedPingPeriod = 30 * time.Second

	// feedBuffer bounds each subscriber's queue. A subscriber that cannot
	// keep up is dropped rather than backpressuring the write path.
	feedBuffer = 64
)

// Feed broadcasts engine change events to websocket subscribers. It
// implements engine.Publisher.
type Feed struct {
	logger   *zap.Logger
	upgrader websocket.Upgrader

	mu      sync.RWMutex
	clients map[*feedClient]bool
}

type feedClient struct {
	conn *websocket.Conn
	send chan []byte
}

// NewFeed creates an empty change feed
func NewFeed(logger *zap.Logger) *Feed {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Feed{
		logger: logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
		},
		clients: make(map[*feedClient]bool),
	}
}

// Publish implements engine.Publisher. Slow subscribers are disconnected
// instead of blocking the caller.
func (f *Feed) Publish(event engine.ChangeEvent) {
	payload, err := json.Marshal(event)
	if err != nil {
		f.logger.Error("marshal change event", zap.Error(err))
		return
	}

	f.mu.RLock()
	defer f.mu.RUnlock()
	for client := range f.clients {
		select {
		case client.send <- payload:
		default:
			go f.drop(client)
		}
	}
}

// ServeHTTP upgrades the connection and streams change events until the
// client disconnects
func (f *Feed) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := f.upgrader.Upgrade(w, r, nil)
	if err != nil {
		f.logger.Debug("websocket upgrade failed", zap.Error(err))
		return
	}

	client := &feedClient{conn: conn, send: make(chan []byte, feedBuffer)}
	f.mu.Lock()
	f.clients[client] = true
	f.mu.Unlock()

	go f.writePump(client)
	f.readPump(client)
}

// Subscribers reports the current subscriber count
func (f *Feed) Subscribers() int {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return len(f.clients)
}

func (f *Feed) drop(client *feedClient) {
	f.mu.Lock()
	if !f.clients[client] {
		f.mu.Unlock()
		return
	}
	delete(f.clients, client)
	f.mu.Unlock()

	close(client.send)
	client.conn.Close()
}

// readPump discards inbound frames; the feed is one-way. It returns when
// the client goes away, which also drops the subscription.
func (f *Feed) readPump(client *feedClient) {
	defer f.drop(client)
	for {
		if _, _, err := client.conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (f *Feed) writePump(client *feedClient) {
	ticker := time.NewTicker(feedPingPeriod)
	defer ticker.Stop()

	for {
		select {
		case payload, ok := <-client.send:
			if !ok {
				client.conn.WriteControl(websocket.CloseMessage, nil, time.Now().Add(feedWriteWait))
				return
			}
			client.conn.SetWriteDeadline(time.Now().Add(feedWriteWait))
			if err := client.conn.WriteMessage(websocket.TextMessage, payload); err != nil {
				go f.drop(client)
				return
			}

		case <-ticker.C:
			client.conn.SetWriteDeadline(time.Now().Add(feedWriteWait))
			if err := client.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				go f.drop(client)
				return
			}
		}
	}
}
