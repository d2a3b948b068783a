package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/sells-group/leadimport/internal/importjob"
	"github.com/sells-group/leadimport/internal/ingest"
	"github.com/sells-group/leadimport/internal/model"
)

var errBadBody = errors.New("api: invalid request body")

type previewResponse struct {
	Decisions []model.DedupDecision `json:"decisions"`
}

func (s *Server) handlePreview(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Rows []model.ImportRow `json:"rows"`
	}
	if err := s.decode(w, r, &body); err != nil {
		writeError(w, r, err, nil)
		return
	}

	decisions, err := s.svc.Preview(r.Context(), importjob.PreviewRequest{
		TenantID: chi.URLParam(r, "tenantID"),
		Rows:     body.Rows,
	})
	if err != nil {
		writeError(w, r, err, nil)
		return
	}
	writeJSON(w, http.StatusOK, previewResponse{Decisions: decisions})
}

func (s *Server) handleExecute(w http.ResponseWriter, r *http.Request) {
	var req importjob.ExecuteRequest
	if err := s.decode(w, r, &req); err != nil {
		writeError(w, r, err, nil)
		return
	}
	req.TenantID = chi.URLParam(r, "tenantID")
	s.execute(w, r, req)
}

// handleExtensionLeads imports leads captured by the browser extension.
// The strategy defaults to skip; owner_id and strategy may be passed as
// query parameters.
func (s *Server) handleExtensionLeads(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, s.cfg.MaxBodyBytes)
	rows, err := ingest.DecodeExtensionLeads(r.Body)
	if err != nil {
		writeError(w, r, fmt.Errorf("%w: %v", errBadBody, err), nil)
		return
	}

	strategy := model.Strategy(r.URL.Query().Get("strategy"))
	if strategy == "" {
		strategy = model.StrategySkip
	}
	s.execute(w, r, importjob.ExecuteRequest{
		TenantID: chi.URLParam(r, "tenantID"),
		OwnerID:  r.URL.Query().Get("owner_id"),
		Source:   model.SourceExtension,
		Strategy: strategy,
		Rows:     rows,
	})
}

func (s *Server) execute(w http.ResponseWriter, r *http.Request, req importjob.ExecuteRequest) {
	job, err := s.svc.Execute(r.Context(), req)
	if err != nil {
		writeError(w, r, err, job)
		return
	}
	writeJSON(w, http.StatusCreated, job)
}

func (s *Server) handleGetJob(w http.ResponseWriter, r *http.Request) {
	job, err := s.svc.Job(r.Context(), chi.URLParam(r, "tenantID"), chi.URLParam(r, "jobID"))
	if err != nil {
		writeError(w, r, err, nil)
		return
	}
	writeJSON(w, http.StatusOK, job)
}

type rowsResponse struct {
	Rows []model.DedupRow `json:"rows"`
}

func (s *Server) handleJobRows(w http.ResponseWriter, r *http.Request) {
	rows, err := s.svc.JobRows(r.Context(), chi.URLParam(r, "tenantID"), chi.URLParam(r, "jobID"))
	if err != nil {
		writeError(w, r, err, nil)
		return
	}
	writeJSON(w, http.StatusOK, rowsResponse{Rows: rows})
}

func (s *Server) decode(w http.ResponseWriter, r *http.Request, v any) error {
	r.Body = http.MaxBytesReader(w, r.Body, s.cfg.MaxBodyBytes)
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("%w: %v", errBadBody, err)
	}
	return nil
}
