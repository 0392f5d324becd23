package server

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/harborgrid/c360/internal/model"
)

type createMappingRequest struct {
	SourceAttributeID   string  `json:"source_attribute_id"`
	TargetAttributeID   string  `json:"target_attribute_id"`
	TransformationLogic string  `json:"transformation_logic"`
	ConfidenceScore     float64 `json:"confidence_score"`
	CreatedBy           string  `json:"created_by"`
}

func (s *Server) createMapping(w http.ResponseWriter, r *http.Request) {
	var req createMappingRequest
	if err := decode(r, &req); err != nil {
		writeError(w, err)
		return
	}
	if req.SourceAttributeID == "" {
		writeError(w, model.NewValidationError("source_attribute_id", "required"))
		return
	}
	if req.TargetAttributeID == "" {
		writeError(w, model.NewValidationError("target_attribute_id", "required"))
		return
	}
	if req.ConfidenceScore < 0 || req.ConfidenceScore > 1 {
		writeError(w, model.NewValidationError("confidence_score", "must be between 0 and 1"))
		return
	}
	m := model.Mapping{
		SourceAttributeID:   req.SourceAttributeID,
		TargetAttributeID:   req.TargetAttributeID,
		TransformationLogic: req.TransformationLogic,
		Status:              model.MappingPending,
		ConfidenceScore:     req.ConfidenceScore,
		CreatedBy:           req.CreatedBy,
	}
	if err := s.store.CreateMapping(r.Context(), &m); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, m)
}

func (s *Server) listMappings(w http.ResponseWriter, r *http.Request) {
	mappings, err := s.store.ListMappings(r.Context(), mappingFilterFrom(r))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, mappings)
}

func (s *Server) getMapping(w http.ResponseWriter, r *http.Request) {
	m, err := s.store.GetMapping(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, m)
}

func (s *Server) mappingStats(w http.ResponseWriter, r *http.Request) {
	stats, err := s.store.MappingStats(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

func (s *Server) validateMapping(w http.ResponseWriter, r *http.Request) {
	adapter := r.URL.Query().Get("adapter")
	if adapter == "" {
		adapter = s.scanAdapter
	}
	run, err := s.validator.Validate(r.Context(), chi.URLParam(r, "id"), adapter)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, run)
}

func (s *Server) validateAllMappings(w http.ResponseWriter, r *http.Request) {
	adapter := r.URL.Query().Get("adapter")
	if adapter == "" {
		adapter = s.scanAdapter
	}
	runs, err := s.validator.ValidateAll(r.Context(), r.URL.Query().Get("source_system_id"), adapter)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, runs)
}

func (s *Server) listValidationRuns(w http.ResponseWriter, r *http.Request) {
	runs, err := s.store.ListValidationRuns(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, runs)
}

func (s *Server) assembleLineage(w http.ResponseWriter, r *http.Request) {
	graph, err := s.lineage.Assemble(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, graph)
}
