package server

import (
	"net/http"

	"github.com/harborgrid/c360/internal/model"
	"github.com/harborgrid/c360/internal/store"
)

type systemSummary struct {
	SourceSystems    int                 `json:"source_systems"`
	ActiveSources    int                 `json:"active_sources"`
	DegradedSources  int                 `json:"degraded_sources"`
	TargetAttributes int                 `json:"target_attributes"`
	Mappings         *model.MappingStats `json:"mappings"`
	Jobs             *model.JobStats     `json:"jobs"`
	OpenIssues       int                 `json:"open_issues"`
}

func (s *Server) summary(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	sources, err := s.store.ListSourceSystems(ctx)
	if err != nil {
		writeError(w, err)
		return
	}
	targets, err := s.store.ListTargetAttributes(ctx, "")
	if err != nil {
		writeError(w, err)
		return
	}
	mappingStats, err := s.store.MappingStats(ctx)
	if err != nil {
		writeError(w, err)
		return
	}
	jobStats, err := s.store.JobStats(ctx)
	if err != nil {
		writeError(w, err)
		return
	}
	issues, err := s.store.ListQualityIssues(ctx, store.IssueFilter{UnresolvedOnly: true})
	if err != nil {
		writeError(w, err)
		return
	}

	out := systemSummary{
		SourceSystems:    len(sources),
		TargetAttributes: len(targets),
		Mappings:         mappingStats,
		Jobs:             jobStats,
		OpenIssues:       len(issues),
	}
	for _, src := range sources {
		if src.Active {
			out.ActiveSources++
		}
		if src.Degraded {
			out.DegradedSources++
		}
	}
	writeJSON(w, http.StatusOK, out)
}
