package admin

import (
	"encoding/json"
	"net/http"

	"github.com/mediamatic/ikdisplay/internal/store"
)

type sourceRequest struct {
	FeedID         int64             `json:"feed_id"`
	Kind           string            `json:"kind"`
	Enabled        bool              `json:"enabled"`
	Via            string            `json:"via"`
	SubscriptionID *int64            `json:"subscription_id,omitempty"`
	Attrs          map[string]string `json:"attrs"`
}

func (req sourceRequest) toRecord(id int64) *store.SourceRecord {
	return &store.SourceRecord{
		ID:             id,
		FeedID:         req.FeedID,
		Kind:           req.Kind,
		Enabled:        req.Enabled,
		Via:            req.Via,
		SubscriptionID: req.SubscriptionID,
		Attrs:          req.Attrs,
	}
}

// handleSourceCreate adds a source and drives its power-up side effect
// (subscribing its derived node, or refreshing microblog filters) via
// internal/feed.Manager rather than touching the store directly.
func (s *Server) handleSourceCreate(w http.ResponseWriter, r *http.Request) {
	var req sourceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.errorResponse(w, http.StatusBadRequest, "invalid request body")
		return
	}

	rec := req.toRecord(0)
	if err := s.sources.AddSource(rec); err != nil {
		s.logger.Error("admin: create source", "error", err)
		s.errorResponse(w, http.StatusInternalServerError, "failed to create source")
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	writeJSON(w, rec, s.logger)
}

func (s *Server) handleSourceUpdate(w http.ResponseWriter, r *http.Request) {
	id, err := pathInt64(r, "id")
	if err != nil {
		s.errorResponse(w, http.StatusBadRequest, err.Error())
		return
	}

	var req sourceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.errorResponse(w, http.StatusBadRequest, "invalid request body")
		return
	}

	rec := req.toRecord(id)
	if err := s.sources.UpdateSource(rec); err != nil {
		s.logger.Error("admin: update source", "error", err, "id", id)
		s.errorResponse(w, http.StatusInternalServerError, "failed to update source")
		return
	}

	w.Header().Set("Content-Type", "application/json")
	writeJSON(w, rec, s.logger)
}

func (s *Server) handleSourceDelete(w http.ResponseWriter, r *http.Request) {
	id, err := pathInt64(r, "id")
	if err != nil {
		s.errorResponse(w, http.StatusBadRequest, err.Error())
		return
	}

	if err := s.sources.RemoveSource(id); err != nil {
		s.logger.Error("admin: delete source", "error", err, "id", id)
		s.errorResponse(w, http.StatusInternalServerError, "failed to delete source")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
