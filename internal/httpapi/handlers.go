package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"docingest/internal/persistence"
	"docingest/internal/pipeline"
	"docingest/internal/worker"
)

type processRequest struct {
	RunID       string `json:"run_id"`
	DocID       string `json:"doc_id"`
	TenantID    string `json:"tenant_id"`
	UploadURI   string `json:"upload_uri"`
	Title       string `json:"title"`
	SourceType  string `json:"source_type"`
	SourceURI   string `json:"source_uri"`
	ContentHash string `json:"content_hash"`
	Activate    *bool  `json:"activate"`
}

func (s *Server) handleProcess(w http.ResponseWriter, r *http.Request) {
	if !s.authorized(r) {
		respondError(w, http.StatusUnauthorized, errors.New("unauthorized"))
		return
	}

	var req processRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, err)
		return
	}
	if req.RunID == "" {
		respondError(w, http.StatusBadRequest, errors.New("run_id is required"))
		return
	}

	activate := true
	if req.Activate != nil {
		activate = *req.Activate
	}
	job := pipeline.Job{
		RunID:       req.RunID,
		DocID:       req.DocID,
		Tenant:      req.TenantID,
		UploadURI:   req.UploadURI,
		Title:       req.Title,
		SourceType:  persistence.SourceType(req.SourceType),
		SourceURI:   req.SourceURI,
		ContentHash: req.ContentHash,
		Activate:    activate,
	}

	if err := s.runtime.Submit(job); err != nil {
		if errors.Is(err, worker.ErrBusy) {
			respondJSON(w, http.StatusServiceUnavailable, map[string]string{"error": "worker busy"})
			return
		}
		respondError(w, http.StatusInternalServerError, err)
		return
	}

	respondJSON(w, http.StatusAccepted, map[string]any{"status": "accepted", "run_id": req.RunID})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]any{
		"status":         "ok",
		"active_jobs":    s.runtime.ActiveJobs(),
		"max_concurrent": s.runtime.MaxConcurrent(),
	})
}

func (s *Server) authorized(r *http.Request) bool {
	if s.authToken == "" {
		return true
	}
	auth := r.Header.Get("Authorization")
	const prefix = "Bearer "
	if !strings.HasPrefix(auth, prefix) {
		return false
	}
	return strings.TrimPrefix(auth, prefix) == s.authToken
}

func respondJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func respondError(w http.ResponseWriter, status int, err error) {
	respondJSON(w, status, map[string]string{"error": err.Error()})
}
