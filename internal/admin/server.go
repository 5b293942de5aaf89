// Package admin implements the peripheral CRUD JSON surface (C13) over
// feeds and sources, following the teacher's internal/api server shape:
// an http.ServeMux with method-tagged patterns, a writeJSON helper, and
// slog request logging (internal/api/server.go).
package admin

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/mediamatic/ikdisplay/internal/feed"
	"github.com/mediamatic/ikdisplay/internal/store"
)

// writeJSON encodes v as JSON to w, logging any encode errors at debug
// level (mirrors internal/api.writeJSON: a disconnected client mid-
// response is not actionable but worth tracking).
func writeJSON(w http.ResponseWriter, v any, logger *slog.Logger) {
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.Debug("admin: failed to write JSON response", "error", err)
	}
}

// Feeds is the subset of *store.Store the Server needs for Feed CRUD.
type Feeds interface {
	ListFeeds() ([]*store.Feed, error)
	GetFeed(id int64) (*store.Feed, error)
	CreateFeed(f *store.Feed) error
	UpdateFeed(f *store.Feed) error
	DeleteFeed(id int64) error
	ListSourcesByFeed(feedID int64) ([]*store.SourceRecord, error)
}

// SourceManager is the subset of feed.Manager the Server drives for
// Source CRUD, so that add/remove/update correctly resubscribe or
// refresh microblog filters as a side effect (spec.md §6).
type SourceManager interface {
	AddSource(rec *store.SourceRecord) error
	UpdateSource(rec *store.SourceRecord) error
	RemoveSource(id int64) error
}

// Server is the admin HTTP API server.
type Server struct {
	feeds   Feeds
	sources SourceManager
	logger  *slog.Logger
	server  *http.Server
}

func NewServer(feeds Feeds, sources SourceManager, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{feeds: feeds, sources: sources, logger: logger}
}

// Handler builds the routed, logging-wrapped mux, split out from Start
// so tests can drive it directly with httptest instead of binding a
// real listener.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /feeds", s.handleFeedList)
	mux.HandleFunc("POST /feeds", s.handleFeedCreate)
	mux.HandleFunc("GET /feeds/{id}", s.handleFeedGet)
	mux.HandleFunc("PUT /feeds/{id}", s.handleFeedUpdate)
	mux.HandleFunc("DELETE /feeds/{id}", s.handleFeedDelete)
	mux.HandleFunc("GET /feeds/{id}/sources", s.handleFeedSources)

	mux.HandleFunc("POST /sources", s.handleSourceCreate)
	mux.HandleFunc("PUT /sources/{id}", s.handleSourceUpdate)
	mux.HandleFunc("DELETE /sources/{id}", s.handleSourceDelete)

	mux.HandleFunc("GET /health", s.handleHealth)

	return s.withLogging(mux)
}

// Start serves the admin API on addr until Shutdown is called.
func (s *Server) Start(addr string) error {
	s.server = &http.Server{
		Addr:         addr,
		Handler:      s.Handler(),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
	}
	s.logger.Info("starting admin server", "addr", addr)
	return s.server.ListenAndServe()
}

// Shutdown gracefully stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.server == nil {
		return nil
	}
	return s.server.Shutdown(ctx)
}

func (s *Server) withLogging(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		s.logger.Info("request", "method", r.Method, "path", r.URL.Path, "duration", time.Since(start))
	})
}

func (s *Server) errorResponse(w http.ResponseWriter, code int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	writeJSON(w, map[string]any{
		"error": map[string]any{
			"message": message,
			"type":    "invalid_request_error",
			"code":    code,
		},
	}, s.logger)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	writeJSON(w, map[string]string{"status": "ok"}, s.logger)
}

func pathInt64(r *http.Request, name string) (int64, error) {
	var id int64
	_, err := fmt.Sscanf(r.PathValue(name), "%d", &id)
	if err != nil {
		return 0, fmt.Errorf("invalid %s", name)
	}
	return id, nil
}
