package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/mirajehossain/tenantmigrator/internal/job"
	"github.com/mirajehossain/tenantmigrator/internal/orcherr"
	"github.com/mirajehossain/tenantmigrator/internal/orchestrator"
	"github.com/mirajehossain/tenantmigrator/internal/scriptset"
	"github.com/mirajehossain/tenantmigrator/internal/tenantdb"
)

func (s *Server) writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func (s *Server) writeError(w http.ResponseWriter, status int, err error) {
	s.writeJSON(w, status, ErrorResponse{
		Error:     http.StatusText(status),
		Detail:    err.Error(),
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	})
}

func (s *Server) handleValidate(w http.ResponseWriter, r *http.Request) {
	var req ValidateMigrationsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, err)
		return
	}
	if err := s.validate.Struct(req); err != nil {
		s.writeError(w, http.StatusBadRequest, err)
		return
	}

	result, err := scriptset.Load(req.MigrationsDir)
	if err != nil {
		s.writeJSON(w, http.StatusOK, ValidationResponse{
			Valid:  false,
			Errors: []string{err.Error()},
			Report: report(nil, []string{err.Error()}),
		})
		return
	}

	s.writeJSON(w, http.StatusOK, ValidationResponse{
		Valid:        result.Usable(),
		Errors:       result.Errors,
		Warnings:     result.Warnings,
		ScriptsFound: result.Set.Len(),
		Report:       report(result.Warnings, result.Errors),
	})
}

func report(warnings, errs []string) string {
	var b strings.Builder
	bar := strings.Repeat("=", 60)
	b.WriteString(bar + "\nMIGRATION VALIDATION REPORT\n" + bar)
	if len(errs) > 0 {
		b.WriteString("\n\nERRORS (" + strconv.Itoa(len(errs)) + "):")
		for _, e := range errs {
			b.WriteString("\n  - " + e)
		}
	}
	if len(warnings) > 0 {
		b.WriteString("\n\nWARNINGS (" + strconv.Itoa(len(warnings)) + "):")
		for _, warn := range warnings {
			b.WriteString("\n  - " + warn)
		}
	}
	if len(errs) == 0 && len(warnings) == 0 {
		b.WriteString("\n\nAll validations passed.")
	}
	b.WriteString("\n" + bar)
	return b.String()
}

func (s *Server) handleStart(w http.ResponseWriter, r *http.Request) {
	var req StartMigrationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, err)
		return
	}
	if err := s.validate.Struct(req); err != nil {
		s.writeError(w, http.StatusBadRequest, err)
		return
	}

	tenants := make([]tenantdb.Spec, len(req.Tenants))
	for i, t := range req.Tenants {
		tenants[i] = tenantdb.Spec{
			TenantID:         t.TenantID,
			TenantName:       t.TenantName,
			Host:             t.Host,
			User:             t.User,
			Password:         t.Password,
			Database:         t.DatabaseName,
			ConnectionString: t.ConnectionString,
		}
	}

	result, err := s.Orchestrator.StartJob(r.Context(), orchestrator.StartRequest{
		Tenants:       tenants,
		MigrationsDir: req.MigrationsDir,
		Mode:          req.mode(),
		Parallel:      req.parallel(),
		JobName:       req.JobName,
	})
	if err != nil {
		var ve *orcherr.ValidationError
		if errors.As(err, &ve) {
			s.writeError(w, http.StatusBadRequest, err)
			return
		}
		s.writeError(w, http.StatusInternalServerError, err)
		return
	}

	if result.Mode == orchestrator.ModeValidateOnly {
		s.writeJSON(w, http.StatusOK, ValidationResponse{
			Valid:        true,
			Warnings:     result.Warnings,
			ScriptsFound: result.ScriptsFound,
			Report:       report(result.Warnings, nil),
		})
		return
	}

	s.writeJSON(w, http.StatusAccepted, StartMigrationResponse{
		JobID:       result.JobID,
		DispatchIDs: result.DispatchIDs,
		Mode:        string(result.Mode),
		TenantCount: result.TenantCount,
		Message:     "migration job started",
		StatusURL:   "/api/migrations/jobs/" + result.JobID,
	})
}

func (s *Server) handleGetJob(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	view, err := s.Query.GetJob(r.Context(), id)
	if err != nil {
		var nfe *orcherr.NotFoundError
		if errors.As(err, &nfe) {
			s.writeError(w, http.StatusNotFound, err)
			return
		}
		s.writeError(w, http.StatusInternalServerError, err)
		return
	}
	s.writeJSON(w, http.StatusOK, view)
}

func (s *Server) handleListJobs(w http.ResponseWriter, r *http.Request) {
	limit := 50
	if raw := r.URL.Query().Get("limit"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil && n > 0 {
			limit = n
		}
	}
	jobs, err := s.Query.ListJobs(r.Context(), limit)
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err)
		return
	}
	items := make([]JobListItem, len(jobs))
	for i, j := range jobs {
		items[i] = toListItem(j)
	}
	s.writeJSON(w, http.StatusOK, items)
}

func toListItem(j *job.Job) JobListItem {
	item := JobListItem{
		JobID:             j.JobID,
		JobName:           j.JobName,
		Status:            string(j.Status),
		TotalTenants:      j.Total,
		SuccessfulTenants: j.Successful,
		FailedTenants:     j.Failed,
		TenantNames:       j.TenantNames,
		StartedAt:         j.StartedAt.Format(time.RFC3339),
	}
	if j.CompletedAt != nil {
		formatted := j.CompletedAt.Format(time.RFC3339)
		item.CompletedAt = &formatted
	}
	return item
}

func (s *Server) handleDeleteJob(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := s.Query.DeleteJob(r.Context(), id); err != nil {
		var nfe *orcherr.NotFoundError
		if errors.As(err, &nfe) {
			s.writeError(w, http.StatusNotFound, err)
			return
		}
		s.writeError(w, http.StatusInternalServerError, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleWatch upgrades to a WebSocket and starts a progress monitor for
// the requested job, closing once the job reaches a terminal status or
// the client disconnects.
func (s *Server) handleWatch(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.Log.Error("websocket upgrade failed", map[string]any{"job_id": id, "error": err.Error()})
		return
	}
	s.Hub.Connect(id, conn)
	defer func() {
		s.Hub.Disconnect(id, conn)
		_ = conn.Close()
	}()
	s.Hub.MonitorJobProgress(r.Context(), s.Query, id, 2*time.Second)
}
