package aggregator

import (
	"context"
	"log/slog"
	"sync"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/mediamatic/ikdisplay/internal/notification"
	"github.com/mediamatic/ikdisplay/internal/store"
)

// maxHistory bounds the live-page ring buffer (spec.md §4.7/P10).
const maxHistory = 13

// LiveClient is an attached live-page endpoint. Writes are serialized
// by its own mutex since *websocket.Conn forbids concurrent writers,
// the same discipline internal/homeassistant.WSClient.sendAndWait
// applies to its own connection. id distinguishes one attached
// endpoint from another in logs when a feed has several open at once.
type LiveClient struct {
	id   uuid.UUID
	conn *websocket.Conn
	mu   sync.Mutex
}

func (c *LiveClient) send(v any) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conn.WriteJSON(v)
}

// Close closes the underlying connection.
func (c *LiveClient) Close() error {
	return c.conn.Close()
}

type livePageFeed struct {
	history []notification.Notification
	clients map[*LiveClient]struct{}
}

// LivePageAggregator pushes each feed's notifications to its attached
// live-page endpoints and keeps a ring buffer of the last maxHistory
// notifications so a freshly attached endpoint can catch up (spec.md
// §4.7/§5's "live-page endpoint ... first sends the ring buffer in
// order, then streams each new notification").
//
// Attach/detach and ProcessNotifications are all serialized by mu,
// matching spec.md §5's "concurrent attach/detach is serialized by the
// reactor."
type LivePageAggregator struct {
	mu     sync.Mutex
	feeds  map[int64]*livePageFeed
	logger *slog.Logger
}

func NewLivePageAggregator(logger *slog.Logger) *LivePageAggregator {
	if logger == nil {
		logger = slog.Default()
	}
	return &LivePageAggregator{feeds: make(map[int64]*livePageFeed), logger: logger}
}

func (a *LivePageAggregator) feedState(feedID int64) *livePageFeed {
	f, ok := a.feeds[feedID]
	if !ok {
		f = &livePageFeed{clients: make(map[*LiveClient]struct{})}
		a.feeds[feedID] = f
	}
	return f
}

// Attach registers a new live-page endpoint for feedID, sends it the
// current ring buffer (oldest first), and returns the LiveClient handle
// used to Detach later.
func (a *LivePageAggregator) Attach(feedID int64, conn *websocket.Conn) *LiveClient {
	a.mu.Lock()
	defer a.mu.Unlock()

	client := &LiveClient{id: uuid.New(), conn: conn}
	f := a.feedState(feedID)
	f.clients[client] = struct{}{}

	a.logger.Info("live page: attach", "feed", feedID, "client", client.id)
	for _, n := range f.history {
		if err := client.send(n); err != nil {
			a.logger.Warn("live page: send history", "feed", feedID, "client", client.id, "error", err)
			break
		}
	}
	return client
}

// Detach removes a live-page endpoint from feedID's client set.
func (a *LivePageAggregator) Detach(feedID int64, client *LiveClient) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if f, ok := a.feeds[feedID]; ok {
		delete(f.clients, client)
	}
	a.logger.Info("live page: detach", "feed", feedID, "client", client.id)
}

// ProcessNotifications appends to the feed's ring buffer and pushes
// each notification to every attached client.
func (a *LivePageAggregator) ProcessNotifications(_ context.Context, feed *store.Feed, notifications []notification.Notification) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	f := a.feedState(feed.ID)
	for _, n := range notifications {
		f.history = append(f.history, n)
		if len(f.history) > maxHistory {
			f.history = f.history[len(f.history)-maxHistory:]
		}
		for client := range f.clients {
			if err := client.send(n); err != nil {
				a.logger.Warn("live page: push", "feed", feed.ID, "client", client.id, "error", err)
			}
		}
	}
	return nil
}
