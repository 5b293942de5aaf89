// Package liveweb implements the live-page peripheral endpoint (C13,
// spec.md §5): "when a client connects, the aggregator first sends the
// ring buffer in order, then streams each new notification as a
// record; disconnect removes the client from the set. One connection
// per page." Per spec.md's Non-goals, this is a thin websocket push,
// not a client UI.
package liveweb

import (
	"log/slog"
	"net/http"

	"github.com/gorilla/websocket"

	"github.com/mediamatic/ikdisplay/internal/aggregator"
	"github.com/mediamatic/ikdisplay/internal/store"
)

// FeedLookup resolves a feed handle from the request path to its id.
type FeedLookup interface {
	GetFeedByHandle(handle string) (*store.Feed, error)
}

// LivePages is the subset of *aggregator.LivePageAggregator the Server
// needs to attach/detach a connecting client.
type LivePages interface {
	Attach(feedID int64, conn *websocket.Conn) *aggregator.LiveClient
	Detach(feedID int64, client *aggregator.LiveClient)
}

// Server upgrades a GET /live/{handle} request to a websocket and
// attaches it to the named feed's live-page set.
type Server struct {
	feeds    FeedLookup
	live     LivePages
	upgrader websocket.Upgrader
	logger   *slog.Logger
}

func NewServer(feeds FeedLookup, live LivePages, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{
		feeds:  feeds,
		live:   live,
		logger: logger,
		// Origin checking is left to a front-door reverse proxy, the same
		// boundary the teacher's internal/homeassistant session assumes
		// for its own outbound websocket connection.
		upgrader: websocket.Upgrader{CheckOrigin: func(r *http.Request) bool { return true }},
	}
}

func (s *Server) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /live/{handle}", s.handleLive)
}

func (s *Server) handleLive(w http.ResponseWriter, r *http.Request) {
	handle := r.PathValue("handle")
	f, err := s.feeds.GetFeedByHandle(handle)
	if err != nil {
		s.logger.Error("liveweb: lookup feed", "handle", handle, "error", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	if f == nil {
		http.NotFound(w, r)
		return
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("liveweb: upgrade failed", "handle", handle, "error", err)
		return
	}

	client := s.live.Attach(f.ID, conn)
	defer func() {
		s.live.Detach(f.ID, client)
		client.Close()
	}()

	// One connection per page (spec.md §5): block reading (and
	// discarding) control frames until the client disconnects, since
	// live pages never send application messages upstream.
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}
