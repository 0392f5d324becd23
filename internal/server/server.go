// Package server exposes the engine over a JSON REST API.
package server

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/harborgrid/c360/internal/jobs"
	"github.com/harborgrid/c360/internal/lineage"
	"github.com/harborgrid/c360/internal/mapping"
	"github.com/harborgrid/c360/internal/quality"
	"github.com/harborgrid/c360/internal/registry"
	"github.com/harborgrid/c360/internal/store"
	"github.com/harborgrid/c360/internal/suggest"
)

// Server wires the engine's services behind HTTP handlers.
type Server struct {
	store       store.Store
	registry    *registry.Service
	suggester   *suggest.Engine
	validator   *mapping.Validator
	lineage     *lineage.Assembler
	quality     *quality.Engine
	orch        *jobs.Orchestrator
	scanAdapter string
}

// Deps carries everything the server needs.
type Deps struct {
	Store        store.Store
	Registry     *registry.Service
	Suggester    *suggest.Engine
	Validator    *mapping.Validator
	Lineage      *lineage.Assembler
	Quality      *quality.Engine
	Orchestrator *jobs.Orchestrator
	// ScanAdapter is the adapter name used when a request does not name one.
	ScanAdapter string
}

// New builds a Server.
func New(d Deps) *Server {
	if d.ScanAdapter == "" {
		d.ScanAdapter = "static"
	}
	return &Server{
		store:       d.Store,
		registry:    d.Registry,
		suggester:   d.Suggester,
		validator:   d.Validator,
		lineage:     d.Lineage,
		quality:     d.Quality,
		orch:        d.Orchestrator,
		scanAdapter: d.ScanAdapter,
	}
}

// Router assembles the full route tree.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type"},
	}))

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Route("/api", func(r chi.Router) {
		r.Route("/sources", func(r chi.Router) {
			r.Post("/", s.createSource)
			r.Get("/", s.listSources)
			r.Get("/{id}", s.getSource)
			r.Delete("/{id}", s.deactivateSource)
			r.Post("/{id}/scan", s.scanSource)
			r.Get("/{id}/attributes", s.listSourceAttributes)
			r.Get("/{id}/sample", s.sampleSourceAttribute)
			r.Get("/{id}/suggestions", s.suggestMappings)
		})

		r.Route("/attributes", func(r chi.Router) {
			r.Post("/", s.createTargetAttribute)
			r.Get("/", s.listTargetAttributes)
			r.Get("/{id}", s.getTargetAttribute)
		})

		r.Route("/mappings", func(r chi.Router) {
			r.Post("/", s.createMapping)
			r.Get("/", s.listMappings)
			r.Get("/stats", s.mappingStats)
			r.Post("/validate-all", s.validateAllMappings)
			r.Get("/{id}", s.getMapping)
			r.Post("/{id}/validate", s.validateMapping)
			r.Get("/{id}/runs", s.listValidationRuns)
		})

		r.Get("/lineage/{id}", s.assembleLineage)
		r.Get("/summary", s.summary)

		r.Route("/data-quality", func(r chi.Router) {
			r.Get("/overview", s.qualityOverview)
			r.Get("/metrics/{id}", s.computeMetrics)
			r.Get("/history/{id}", s.metricsHistory)
			r.Post("/detect/{id}", s.detectIssues)
			r.Get("/issues", s.listIssues)
			r.Post("/issues/{id}/fix", s.applyFix)
		})

		r.Route("/jobs", func(r chi.Router) {
			r.Post("/", s.submitJob)
			r.Get("/", s.listJobs)
			r.Get("/stats", s.jobStats)
			r.Get("/{id}", s.getJob)
			r.Post("/{id}/cancel", s.cancelJob)
			r.Get("/{id}/logs", s.jobLogs)
		})

		r.Route("/schedules", func(r chi.Router) {
			r.Post("/", s.createSchedule)
			r.Get("/", s.listSchedules)
			r.Delete("/{id}", s.deleteSchedule)
		})
	})
	return r
}
