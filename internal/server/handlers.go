package server

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/raptorflow/lead-engine/internal/model"
	"github.com/raptorflow/lead-engine/internal/store"
)

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleClassify(w http.ResponseWriter, r *http.Request) {
	var sig model.Signal
	if err := json.NewDecoder(r.Body).Decode(&sig); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if sig.Text == "" {
		writeError(w, http.StatusBadRequest, "text is required")
		return
	}

	result, err := s.pipeline.ClassifySignal(r.Context(), sig)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (s *Server) handleClassifyBatch(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Signals []model.Signal `json:"signals"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if len(req.Signals) == 0 {
		writeError(w, http.StatusBadRequest, "signals is required")
		return
	}

	result, err := s.pipeline.ClassifyBatch(r.Context(), req.Signals)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (s *Server) handleListLeads(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := store.LeadFilter{
		Status: model.LeadStatus(q.Get("status")),
		Bucket: model.ScoreBucket(q.Get("bucket")),
	}
	if raw := q.Get("min_score"); raw != "" {
		v, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid min_score")
			return
		}
		filter.MinScore = v
	}
	if raw := q.Get("limit"); raw != "" {
		v, err := strconv.Atoi(raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid limit")
			return
		}
		filter.Limit = v
	}
	if raw := q.Get("offset"); raw != "" {
		v, err := strconv.Atoi(raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid offset")
			return
		}
		filter.Offset = v
	}

	leads, err := s.store.ListLeads(r.Context(), filter)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"leads": leads, "count": len(leads)})
}

func (s *Server) handleGetLead(w http.ResponseWriter, r *http.Request) {
	found, err := s.store.GetLead(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, found)
}

func (s *Server) handleLeadStatus(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Status string `json:"status"`
		Notes  string `json:"notes"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	id := chi.URLParam(r, "id")
	if err := s.manager.TransitionStatus(r.Context(), id, model.LeadStatus(req.Status), req.Notes); err != nil {
		writeDomainError(w, err)
		return
	}

	updated, err := s.store.GetLead(r.Context(), id)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, updated)
}

func (s *Server) handleOverride(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Score  *float64 `json:"score"`
		Reason string   `json:"reason"`
		Actor  string   `json:"actor"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Score == nil {
		writeError(w, http.StatusBadRequest, "score is required")
		return
	}

	updated, err := s.manager.OverrideScore(r.Context(), chi.URLParam(r, "id"), *req.Score, req.Reason, req.Actor)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, updated)
}

func (s *Server) handleOverrideHistory(w http.ResponseWriter, r *http.Request) {
	history, err := s.manager.OverrideHistory(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"overrides": history, "count": len(history)})
}

func (s *Server) handleSweep(w http.ResponseWriter, r *http.Request) {
	dryRun := r.URL.Query().Get("dry_run") == "true"

	result, err := s.manager.AutoPark(r.Context(), dryRun)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (s *Server) handleCacheStats(w http.ResponseWriter, r *http.Request) {
	if s.cache == nil {
		writeError(w, http.StatusNotFound, "cache is disabled")
		return
	}
	writeJSON(w, http.StatusOK, s.cache.Stats())
}

func (s *Server) handleCacheClear(w http.ResponseWriter, r *http.Request) {
	if s.cache == nil {
		writeError(w, http.StatusNotFound, "cache is disabled")
		return
	}
	if err := s.cache.ClearAll(r.Context()); err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "cleared"})
}
