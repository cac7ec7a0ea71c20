package api

import (
	"net/http"

	"github.com/gorilla/mux"
	"github.com/listing-trust/internal/models"
	"github.com/listing-trust/internal/service"
)

// CompleteJobRequest is the body of POST /api/v1/jobs/{id}/complete
type CompleteJobRequest struct {
	Success *bool `json:"success"`
}

// handleAnalyzeListing handles POST /api/v1/analyses
func (s *Server) handleAnalyzeListing(w http.ResponseWriter, r *http.Request) {
	var listing models.ListingRecord
	if err := parseJSONBody(r, &listing); err != nil {
		respondError(w, http.StatusBadRequest, ErrCodeInvalidInput, "Invalid request body", map[string]interface{}{
			"error": err.Error(),
		})
		return
	}

	result, err := s.trust.AnalyzeListing(r.Context(), &listing)
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, result)
}

// handleSubmitPrices handles POST /api/v1/prices
func (s *Server) handleSubmitPrices(w http.ResponseWriter, r *http.Request) {
	var sub models.SampleSubmission
	if err := parseJSONBody(r, &sub); err != nil {
		respondError(w, http.StatusBadRequest, ErrCodeInvalidInput, "Invalid request body", map[string]interface{}{
			"error": err.Error(),
		})
		return
	}

	ref, err := s.prices.SubmitPriceSamples(r.Context(), &sub)
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusCreated, ref)
}

// handleNextJob handles POST /api/v1/jobs/next
func (s *Server) handleNextJob(w http.ResponseWriter, r *http.Request) {
	var req service.JobRequest
	if err := parseJSONBody(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, ErrCodeInvalidInput, "Invalid request body", map[string]interface{}{
			"error": err.Error(),
		})
		return
	}

	next, err := s.jobs.NextCollectionJob(r.Context(), req)
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, next)
}

// handleGetJob handles GET /api/v1/jobs/{id}
func (s *Server) handleGetJob(w http.ResponseWriter, r *http.Request) {
	job, err := s.jobs.Job(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, job)
}

// handleCompleteJob handles POST /api/v1/jobs/{id}/complete
func (s *Server) handleCompleteJob(w http.ResponseWriter, r *http.Request) {
	var req CompleteJobRequest
	if err := parseJSONBody(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, ErrCodeInvalidInput, "Invalid request body", map[string]interface{}{
			"error": err.Error(),
		})
		return
	}
	if req.Success == nil {
		respondError(w, http.StatusBadRequest, ErrCodeInvalidInput, "success is required", nil)
		return
	}

	job, err := s.jobs.MarkJobComplete(r.Context(), mux.Vars(r)["id"], *req.Success)
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, job)
}

// handleJobStats handles GET /api/v1/jobs/stats
func (s *Server) handleJobStats(w http.ResponseWriter, r *http.Request) {
	stats, err := s.jobs.Stats(r.Context())
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, stats)
}
