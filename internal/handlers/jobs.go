package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/otcheredev/dicom-ingest/internal/ingest"
	"github.com/otcheredev/dicom-ingest/internal/middleware"
)

// JobsHandler exposes the thin study-job admin API (SPEC_FULL.md ambient
// stack) fronting the processing pipeline orchestrator (spec.md §4.2). It
// replaces the teacher's QIDO-RS/WADO-RS DICOMweb surface, which assumed a
// multi-tenant on-demand retrieval broker this system is not.
type JobsHandler struct {
	service *ingest.Service
}

func NewJobsHandler(service *ingest.Service) *JobsHandler {
	return &JobsHandler{service: service}
}

type createJobRequest struct {
	Accession string `json:"accession"`
}

// Create submits a new study ingestion job. The pipeline runs on a
// background goroutine; the handler returns immediately with the queued
// job record.
func (h *JobsHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req createJobRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if req.Accession == "" {
		http.Error(w, "accession is required", http.StatusBadRequest)
		return
	}

	callerID := middleware.GetCallerID(r.Context())
	job, err := h.service.Submit(r.Context(), req.Accession, callerID)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusAccepted)
	json.NewEncoder(w).Encode(job)
}

// Get returns a single job's current status.
func (h *JobsHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		http.Error(w, "invalid job id", http.StatusBadRequest)
		return
	}
	job, err := h.service.Get(r.Context(), id)
	if err != nil {
		http.Error(w, "job not found", http.StatusNotFound)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(job)
}

// List returns recent jobs.
func (h *JobsHandler) List(w http.ResponseWriter, r *http.Request) {
	jobs, err := h.service.List(r.Context(), 100, 0)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(jobs)
}

// Series lists the per-series outcomes recorded for a job.
func (h *JobsHandler) Series(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		http.Error(w, "invalid job id", http.StatusBadRequest)
		return
	}
	records, err := h.service.Series(r.Context(), id)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(records)
}
