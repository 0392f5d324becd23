package server

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/harborgrid/c360/internal/model"
	"github.com/harborgrid/c360/internal/store"
)

func (s *Server) submitJob(w http.ResponseWriter, r *http.Request) {
	var job model.Job
	if err := decode(r, &job); err != nil {
		writeError(w, err)
		return
	}
	if err := s.orch.Submit(r.Context(), &job); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusAccepted, job)
}

func (s *Server) listJobs(w http.ResponseWriter, r *http.Request) {
	filter := store.JobFilter{
		Status:         model.JobStatus(r.URL.Query().Get("status")),
		SourceSystemID: r.URL.Query().Get("source_system_id"),
		Active:         r.URL.Query().Get("active") == "true",
		Limit:          queryInt(r, "limit"),
	}
	listed, err := s.store.ListJobs(r.Context(), filter)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, listed)
}

func (s *Server) getJob(w http.ResponseWriter, r *http.Request) {
	job, err := s.store.GetJob(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, job)
}

func (s *Server) cancelJob(w http.ResponseWriter, r *http.Request) {
	if err := s.orch.Cancel(r.Context(), chi.URLParam(r, "id")); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "cancellation requested"})
}

func (s *Server) jobStats(w http.ResponseWriter, r *http.Request) {
	stats, err := s.orch.Stats(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

func (s *Server) jobLogs(w http.ResponseWriter, r *http.Request) {
	logs, err := s.store.ListJobLogs(r.Context(), chi.URLParam(r, "id"), queryInt(r, "limit"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, logs)
}

func (s *Server) createSchedule(w http.ResponseWriter, r *http.Request) {
	var sched model.ScheduledJob
	if err := decode(r, &sched); err != nil {
		writeError(w, err)
		return
	}
	if sched.Name == "" {
		writeError(w, model.NewValidationError("name", "required"))
		return
	}
	if !sched.Type.Valid() {
		writeError(w, model.NewValidationError("type", "unknown job type "+string(sched.Type)))
		return
	}
	if !sched.Interval.Valid() {
		writeError(w, model.NewValidationError("interval", "unknown interval "+string(sched.Interval)))
		return
	}
	if _, err := s.store.GetSourceSystem(r.Context(), sched.SourceSystemID); err != nil {
		writeError(w, err)
		return
	}
	if err := s.store.CreateScheduledJob(r.Context(), &sched); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, sched)
}

func (s *Server) listSchedules(w http.ResponseWriter, r *http.Request) {
	schedules, err := s.store.ListScheduledJobs(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, schedules)
}

func (s *Server) deleteSchedule(w http.ResponseWriter, r *http.Request) {
	if err := s.store.DeleteScheduledJob(r.Context(), chi.URLParam(r, "id")); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}
