package admin

import (
	"encoding/json"
	"net/http"

	"github.com/mediamatic/ikdisplay/internal/store"
)

func (s *Server) handleFeedList(w http.ResponseWriter, r *http.Request) {
	feeds, err := s.feeds.ListFeeds()
	if err != nil {
		s.errorResponse(w, http.StatusInternalServerError, "failed to list feeds")
		return
	}
	w.Header().Set("Content-Type", "application/json")
	writeJSON(w, feeds, s.logger)
}

type feedRequest struct {
	Handle        string `json:"handle"`
	Title         string `json:"title"`
	Language      string `json:"language"`
	AggregatorRef string `json:"aggregator_ref"`
}

func (s *Server) handleFeedCreate(w http.ResponseWriter, r *http.Request) {
	var req feedRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.errorResponse(w, http.StatusBadRequest, "invalid request body")
		return
	}

	f := &store.Feed{Handle: req.Handle, Title: req.Title, Language: req.Language, AggregatorRef: req.AggregatorRef}
	if err := s.feeds.CreateFeed(f); err != nil {
		s.logger.Error("admin: create feed", "error", err)
		s.errorResponse(w, http.StatusInternalServerError, "failed to create feed")
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	writeJSON(w, f, s.logger)
}

func (s *Server) handleFeedGet(w http.ResponseWriter, r *http.Request) {
	id, err := pathInt64(r, "id")
	if err != nil {
		s.errorResponse(w, http.StatusBadRequest, err.Error())
		return
	}

	f, err := s.feeds.GetFeed(id)
	if err != nil {
		s.logger.Error("admin: get feed", "error", err, "id", id)
		s.errorResponse(w, http.StatusInternalServerError, "failed to load feed")
		return
	}
	if f == nil {
		s.errorResponse(w, http.StatusNotFound, "feed not found")
		return
	}

	w.Header().Set("Content-Type", "application/json")
	writeJSON(w, f, s.logger)
}

func (s *Server) handleFeedUpdate(w http.ResponseWriter, r *http.Request) {
	id, err := pathInt64(r, "id")
	if err != nil {
		s.errorResponse(w, http.StatusBadRequest, err.Error())
		return
	}

	var req feedRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.errorResponse(w, http.StatusBadRequest, "invalid request body")
		return
	}

	f := &store.Feed{ID: id, Handle: req.Handle, Title: req.Title, Language: req.Language, AggregatorRef: req.AggregatorRef}
	if err := s.feeds.UpdateFeed(f); err != nil {
		s.logger.Error("admin: update feed", "error", err, "id", id)
		s.errorResponse(w, http.StatusInternalServerError, "failed to update feed")
		return
	}

	w.Header().Set("Content-Type", "application/json")
	writeJSON(w, f, s.logger)
}

func (s *Server) handleFeedDelete(w http.ResponseWriter, r *http.Request) {
	id, err := pathInt64(r, "id")
	if err != nil {
		s.errorResponse(w, http.StatusBadRequest, err.Error())
		return
	}

	if err := s.feeds.DeleteFeed(id); err != nil {
		s.logger.Error("admin: delete feed", "error", err, "id", id)
		s.errorResponse(w, http.StatusInternalServerError, "failed to delete feed")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleFeedSources(w http.ResponseWriter, r *http.Request) {
	id, err := pathInt64(r, "id")
	if err != nil {
		s.errorResponse(w, http.StatusBadRequest, err.Error())
		return
	}

	sources, err := s.feeds.ListSourcesByFeed(id)
	if err != nil {
		s.logger.Error("admin: list feed sources", "error", err, "id", id)
		s.errorResponse(w, http.StatusInternalServerError, "failed to list sources")
		return
	}

	w.Header().Set("Content-Type", "application/json")
	writeJSON(w, sources, s.logger)
}
