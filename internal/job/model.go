// Package job holds the data model persisted by the state store: Job,
// TenantResult, and the Status enum shared between them.
package job

import (
	"encoding/json"
	"fmt"
	"time"
)

// Status is the lifecycle state of a Job or a TenantResult. PARTIAL only
// applies at job scope.
type Status string

const (
	StatusPending    Status = "pending"
	StatusRunning    Status = "running"
	StatusSuccess    Status = "success"
	StatusFailed     Status = "failed"
	StatusRolledBack Status = "rolled_back"
	StatusPartial    Status = "partial"
)

func (s Status) valid() bool {
	switch s {
	case StatusPending, StatusRunning, StatusSuccess, StatusFailed, StatusRolledBack, StatusPartial:
		return true
	}
	return false
}

// MarshalJSON renders the status as its lowercase string value, matching
// the wire shape the Python implementation produced via Enum(str).
func (s Status) MarshalJSON() ([]byte, error) {
	return json.Marshal(string(s))
}

// UnmarshalJSON accepts the lowercase string value only.
func (s *Status) UnmarshalJSON(b []byte) error {
	var raw string
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}
	cand := Status(raw)
	if !cand.valid() {
		return fmt.Errorf("job: invalid status %q", raw)
	}
	*s = cand
	return nil
}

// Terminal reports whether s is a job- or tenant-scope terminal state.
func (s Status) Terminal() bool {
	switch s {
	case StatusSuccess, StatusFailed, StatusRolledBack, StatusPartial:
		return true
	}
	return false
}

// TenantResult is the per-tenant outcome of a migration job, reported by
// the Tenant Worker and persisted through the State Store Adapter.
type TenantResult struct {
	TenantID         string            `json:"tenant_id"`
	Status           Status            `json:"status"`
	ScriptsApplied   []string          `json:"scripts_applied"`
	ScriptsSkipped   []string          `json:"scripts_skipped"`
	CallbackMetadata map[string]any    `json:"callback_metadata"`
	ErrorMessage     string            `json:"error_message,omitempty"`
	StartedAt        time.Time         `json:"started_at"`
	CompletedAt      *time.Time        `json:"completed_at,omitempty"`
	DurationSeconds  *float64          `json:"duration_seconds,omitempty"`
}

// Job is the aggregate record for one orchestrator invocation across N
// tenants.
type Job struct {
	JobID   string   `json:"job_id"`
	JobName string   `json:"job_name,omitempty"`
	Status  Status   `json:"status"`
	Tenants []string `json:"tenants"`
	// TenantNames holds each tenant's optional human-readable name,
	// keyed by tenant_id, so GetJob can echo it back without changing
	// the meaning of Tenants (still the plain tenant_id list spec.md
	// §3 defines).
	TenantNames   map[string]string        `json:"tenant_names,omitempty"`
	Total         int                      `json:"total"`
	Completed     int                      `json:"completed"`
	Successful    int                      `json:"successful"`
	Failed        int                      `json:"failed"`
	TenantResults map[string]TenantResult  `json:"tenant_results"`
	StartedAt     time.Time                `json:"started_at"`
	CompletedAt   *time.Time               `json:"completed_at,omitempty"`
	ErrorMessage  string                   `json:"error_message,omitempty"`
}

// TerminalStatus resolves the job-scope status from successful/failed
// counters per the invariant: all-success -> SUCCESS, all-failed ->
// FAILED, mixed -> PARTIAL.
func TerminalStatus(successful, failed, total int) Status {
	switch {
	case failed == 0:
		return StatusSuccess
	case successful == 0:
		return StatusFailed
	default:
		return StatusPartial
	}
}

// Percent returns completed/total*100, or 0 when total is 0.
func Percent(completed, total int) float64 {
	if total == 0 {
		return 0
	}
	return float64(completed) / float64(total) * 100
}
