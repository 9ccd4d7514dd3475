package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"github.com/mirajehossain/tenantmigrator/internal/callback"
	"github.com/mirajehossain/tenantmigrator/internal/executor"
	"github.com/mirajehossain/tenantmigrator/internal/logger"
	"github.com/mirajehossain/tenantmigrator/internal/notify"
	"github.com/mirajehossain/tenantmigrator/internal/orchestrator"
	"github.com/mirajehossain/tenantmigrator/internal/query"
	"github.com/mirajehossain/tenantmigrator/internal/store"
	"github.com/mirajehossain/tenantmigrator/internal/tenantdb"
)

type noopExecutor struct{}

func (noopExecutor) Execute(ctx context.Context, spec tenantdb.Spec, content string) error {
	return nil
}

func newTestServer(t *testing.T) *Server {
	t.Helper()
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis.Run: %v", err)
	}
	t.Cleanup(mr.Close)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	st := store.NewRedis(client)
	orch := orchestrator.New(callback.NewRegistry(), st, func() executor.ScriptExecutor { return noopExecutor{} }, logger.New(false), time.Second, 2*time.Second)
	q := query.New(st)
	hub := notify.NewHub(logger.New(false))
	return NewServer(orch, q, hub, logger.New(false))
}

func TestHandleValidate_ReportsScriptsFound(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "V001__init.sql"), []byte("CREATE TABLE t (id INT);"), 0o644); err != nil {
		t.Fatalf("write script: %v", err)
	}
	srv := newTestServer(t)

	body, _ := json.Marshal(ValidateMigrationsRequest{MigrationsDir: dir})
	req := httptest.NewRequest(http.MethodPost, "/api/migrations/validate", bytes.NewReader(body))
	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var resp ValidationResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !resp.Valid || resp.ScriptsFound != 1 {
		t.Fatalf("unexpected response: %+v", resp)
	}
}

func TestHandleStart_RejectsMissingTenants(t *testing.T) {
	srv := newTestServer(t)
	body, _ := json.Marshal(StartMigrationRequest{MigrationsDir: t.TempDir()})
	req := httptest.NewRequest(http.MethodPost, "/api/migrations/start", bytes.NewReader(body))
	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d: %s", rec.Code, rec.Body.String())
	}
}

func TestHandleStart_AcceptsValidRequest(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "V001__init.sql"), []byte("CREATE TABLE t (id INT);"), 0o644); err != nil {
		t.Fatalf("write script: %v", err)
	}
	srv := newTestServer(t)

	reqBody := StartMigrationRequest{
		Tenants:       []TenantRequest{{TenantID: "a", ConnectionString: "u:p@tcp(h)/db"}},
		MigrationsDir: dir,
		Mode:          "dry_run",
	}
	body, _ := json.Marshal(reqBody)
	req := httptest.NewRequest(http.MethodPost, "/api/migrations/start", bytes.NewReader(body))
	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, req)

	if rec.Code != http.StatusAccepted {
		t.Fatalf("expected 202, got %d: %s", rec.Code, rec.Body.String())
	}
	var resp StartMigrationResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.JobID == "" {
		t.Fatal("expected a job id")
	}
}

func TestHandleStart_ValidateOnlyReturnsReportWithoutCreatingJob(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "V001__init.sql"), []byte("CREATE TABLE t (id INT);"), 0o644); err != nil {
		t.Fatalf("write script: %v", err)
	}
	srv := newTestServer(t)

	reqBody := StartMigrationRequest{
		Tenants:       []TenantRequest{{TenantID: "a", ConnectionString: "u:p@tcp(h)/db"}},
		MigrationsDir: dir,
		Mode:          "validate_only",
	}
	body, _ := json.Marshal(reqBody)
	req := httptest.NewRequest(http.MethodPost, "/api/migrations/start", bytes.NewReader(body))
	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var resp ValidationResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !resp.Valid || resp.ScriptsFound != 1 {
		t.Fatalf("unexpected response: %+v", resp)
	}

	listReq := httptest.NewRequest(http.MethodGet, "/api/migrations/jobs", nil)
	listRec := httptest.NewRecorder()
	srv.Router().ServeHTTP(listRec, listReq)
	var items []JobListItem
	if err := json.Unmarshal(listRec.Body.Bytes(), &items); err != nil {
		t.Fatalf("decode jobs list: %v", err)
	}
	if len(items) != 0 {
		t.Fatalf("validate_only must not create a job, found %d", len(items))
	}
}

func TestHandleGetJob_NotFoundReturns404(t *testing.T) {
	srv := newTestServer(t)
	req := httptest.NewRequest(http.MethodGet, "/api/migrations/jobs/missing", nil)
	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
}

func TestHandleHealth_ReportsOK(t *testing.T) {
	srv := newTestServer(t)
	req := httptest.NewRequest(http.MethodGet, "/app/health/", nil)
	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
}

func TestHandleListJobs_DefaultLimit(t *testing.T) {
	srv := newTestServer(t)
	req := httptest.NewRequest(http.MethodGet, "/api/migrations/jobs", nil)
	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var items []JobListItem
	if err := json.Unmarshal(rec.Body.Bytes(), &items); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if items == nil {
		t.Fatal("expected a (possibly empty) json array, got null")
	}
}
