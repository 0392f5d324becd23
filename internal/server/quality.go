package server

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/harborgrid/c360/internal/model"
	"github.com/harborgrid/c360/internal/store"
)

func (s *Server) qualityOverview(w http.ResponseWriter, r *http.Request) {
	metrics, err := s.quality.ComputeAll(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, metrics)
}

func (s *Server) computeMetrics(w http.ResponseWriter, r *http.Request) {
	metrics, err := s.quality.ComputeMetrics(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, metrics)
}

func (s *Server) metricsHistory(w http.ResponseWriter, r *http.Request) {
	since := time.Time{}
	if raw := r.URL.Query().Get("since"); raw != "" {
		parsed, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			writeError(w, model.NewValidationError("since", "expected RFC 3339 timestamp"))
			return
		}
		since = parsed
	}
	history, err := s.quality.History(r.Context(), chi.URLParam(r, "id"), since)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, history)
}

func (s *Server) detectIssues(w http.ResponseWriter, r *http.Request) {
	issues, err := s.quality.DetectIssues(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, issues)
}

func (s *Server) listIssues(w http.ResponseWriter, r *http.Request) {
	filter := store.IssueFilter{
		TargetAttributeID: r.URL.Query().Get("target_attribute_id"),
		Severity:          model.IssueSeverity(r.URL.Query().Get("severity")),
		UnresolvedOnly:    r.URL.Query().Get("unresolved") == "true",
	}
	issues, err := s.store.ListQualityIssues(r.Context(), filter)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, issues)
}

type fixRequest struct {
	FixType model.FixType     `json:"fix_type"`
	Params  map[string]string `json:"params,omitempty"`
}

func (s *Server) applyFix(w http.ResponseWriter, r *http.Request) {
	var req fixRequest
	if err := decode(r, &req); err != nil {
		writeError(w, err)
		return
	}
	result, err := s.quality.ApplyFix(r.Context(), chi.URLParam(r, "id"), req.FixType, req.Params)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}
