package server

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/harborgrid/c360/internal/model"
	"github.com/harborgrid/c360/internal/store"
)

func (s *Server) createSource(w http.ResponseWriter, r *http.Request) {
	var src model.SourceSystem
	if err := decode(r, &src); err != nil {
		writeError(w, err)
		return
	}
	if err := s.registry.Register(r.Context(), &src); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, src)
}

func (s *Server) listSources(w http.ResponseWriter, r *http.Request) {
	sources, err := s.store.ListSourceSystems(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, sources)
}

func (s *Server) getSource(w http.ResponseWriter, r *http.Request) {
	src, err := s.store.GetSourceSystem(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, src)
}

func (s *Server) deactivateSource(w http.ResponseWriter, r *http.Request) {
	if err := s.registry.Deactivate(r.Context(), chi.URLParam(r, "id")); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "deactivated"})
}

func (s *Server) scanSource(w http.ResponseWriter, r *http.Request) {
	adapter := r.URL.Query().Get("adapter")
	if adapter == "" {
		adapter = s.scanAdapter
	}
	attrs, err := s.registry.Scan(r.Context(), chi.URLParam(r, "id"), adapter)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, attrs)
}

func (s *Server) listSourceAttributes(w http.ResponseWriter, r *http.Request) {
	attrs, err := s.store.ListSourceAttributes(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, attrs)
}

func (s *Server) suggestMappings(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	var (
		suggestions []model.Suggestion
		err         error
	)
	if r.URL.Query().Get("use_ml") == "false" {
		suggestions, err = s.suggester.SuggestHeuristic(r.Context(), id)
	} else {
		suggestions, err = s.suggester.Suggest(r.Context(), id)
	}
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, suggestions)
}

func (s *Server) sampleSourceAttribute(w http.ResponseWriter, r *http.Request) {
	attrID := r.URL.Query().Get("attribute")
	if attrID == "" {
		writeError(w, model.NewValidationError("attribute", "required"))
		return
	}
	adapter := r.URL.Query().Get("adapter")
	if adapter == "" {
		adapter = s.scanAdapter
	}
	limit := queryInt(r, "limit")
	if limit <= 0 {
		limit = 20
	}
	values, err := s.registry.Samples(r.Context(), attrID, adapter, limit)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"attribute_id": attrID, "values": values})
}

func (s *Server) createTargetAttribute(w http.ResponseWriter, r *http.Request) {
	var attr model.TargetAttribute
	if err := decode(r, &attr); err != nil {
		writeError(w, err)
		return
	}
	if attr.Name == "" {
		writeError(w, model.NewValidationError("name", "required"))
		return
	}
	if err := s.store.CreateTargetAttribute(r.Context(), &attr); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, attr)
}

func (s *Server) listTargetAttributes(w http.ResponseWriter, r *http.Request) {
	attrs, err := s.store.ListTargetAttributes(r.Context(), r.URL.Query().Get("category"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, attrs)
}

func (s *Server) getTargetAttribute(w http.ResponseWriter, r *http.Request) {
	attr, err := s.store.GetTargetAttribute(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, attr)
}

func queryInt(r *http.Request, key string) int {
	n, err := strconv.Atoi(r.URL.Query().Get(key))
	if err != nil {
		return 0
	}
	return n
}

func mappingFilterFrom(r *http.Request) store.MappingFilter {
	return store.MappingFilter{
		SourceSystemID:    r.URL.Query().Get("source_system_id"),
		TargetAttributeID: r.URL.Query().Get("target_attribute_id"),
		Status:            model.MappingStatus(r.URL.Query().Get("status")),
		Limit:             queryInt(r, "limit"),
	}
}
