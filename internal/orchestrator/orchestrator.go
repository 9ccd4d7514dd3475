// Package orchestrator implements the Job Orchestrator (C5): it loads
// and validates a script set, creates the job record, fans out Tenant
// Workers through a Dispatcher, and finalizes the job once every
// tenant has reported.
package orchestrator

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/mirajehossain/tenantmigrator/internal/callback"
	"github.com/mirajehossain/tenantmigrator/internal/dispatch"
	"github.com/mirajehossain/tenantmigrator/internal/executor"
	"github.com/mirajehossain/tenantmigrator/internal/job"
	"github.com/mirajehossain/tenantmigrator/internal/logger"
	"github.com/mirajehossain/tenantmigrator/internal/orcherr"
	"github.com/mirajehossain/tenantmigrator/internal/scriptset"
	"github.com/mirajehossain/tenantmigrator/internal/store"
	"github.com/mirajehossain/tenantmigrator/internal/tenantdb"
	"github.com/mirajehossain/tenantmigrator/internal/worker"
)

// Mode selects how a job applies its scripts.
type Mode string

const (
	ModeDryRun       Mode = "dry_run"
	ModeApply        Mode = "apply"
	ModeValidateOnly Mode = "validate_only"
)

// StartRequest is the input to StartJob.
type StartRequest struct {
	Tenants        []tenantdb.Spec
	MigrationsDir  string
	Mode           Mode
	Parallel       bool
	JobName        string
	MaxConcurrency int
}

// StartResult is returned from StartJob on success. For ModeValidateOnly,
// only Mode, TenantCount, ScriptsFound, and Warnings are populated — no job is ever
// created and JobID is empty, per §9: "run C1, return the validation
// response, do not create a job."
type StartResult struct {
	JobID       string
	DispatchIDs []string
	Mode        Mode
	TenantCount int

	ScriptsFound int
	Warnings     []string
}

// Orchestrator wires the Loader, Registry, Store, Dispatcher, and
// Tenant Workers together to run StartJob/Finalize.
type Orchestrator struct {
	Registry    *callback.Registry
	Store       store.StateStore
	NewExecutor func() executor.ScriptExecutor
	Log         *logger.Logger
	SoftTimeout time.Duration
	HardTimeout time.Duration

	// nowFn and idSuffix are overridable by tests so job IDs are deterministic.
	nowFn    func() time.Time
	idSuffix func() string
}

func New(registry *callback.Registry, st store.StateStore, newExecutor func() executor.ScriptExecutor, log *logger.Logger, softTimeout, hardTimeout time.Duration) *Orchestrator {
	return &Orchestrator{
		Registry:    registry,
		Store:       st,
		NewExecutor: newExecutor,
		Log:         log,
		SoftTimeout: softTimeout,
		HardTimeout: hardTimeout,
		nowFn:       time.Now,
	}
}

// composeJobID builds "migration_<UTC YYYYMMDD_HHMMSS>_<N>_tenants".
func composeJobID(now time.Time, tenantCount int) string {
	return fmt.Sprintf("migration_%s_%d_tenants", now.UTC().Format("20060102_150405"), tenantCount)
}

// StartJob implements §4.5: validates the script set, runs before_job,
// creates the PENDING job record, and dispatches one Tenant Worker per
// tenant in parallel or sequential mode.
func (o *Orchestrator) StartJob(ctx context.Context, req StartRequest) (*StartResult, error) {
	loaded, err := scriptset.Load(req.MigrationsDir)
	if err != nil {
		return nil, orcherr.NewValidationError(fmt.Sprintf("loading migrations dir %s: %v", req.MigrationsDir, err))
	}
	if !loaded.Usable() {
		return nil, orcherr.NewValidationError(fmt.Sprintf("script set for %s has errors: %v", req.MigrationsDir, loaded.Errors))
	}
	if loaded.Set.Len() == 0 {
		return nil, orcherr.NewValidationError(fmt.Sprintf("no scripts found in %s", req.MigrationsDir))
	}

	if req.Mode == ModeValidateOnly {
		return &StartResult{
			Mode:         ModeValidateOnly,
			TenantCount:  len(req.Tenants),
			ScriptsFound: loaded.Set.Len(),
			Warnings:     loaded.Warnings,
		}, nil
	}

	now := o.nowFn()
	jobID := composeJobID(now, len(req.Tenants))

	tenantIDs := make([]string, len(req.Tenants))
	tenantNames := make(map[string]string, len(req.Tenants))
	for i, t := range req.Tenants {
		tenantIDs[i] = t.TenantID
		if t.TenantName != "" {
			tenantNames[t.TenantID] = t.TenantName
		}
	}

	beforeJobCtx := &callback.Context{
		JobID:    jobID,
		TenantID: "",
		Scripts:  scriptMaps(loaded.Set),
		Metadata: map[string]any{"tenants": tenantIDs},
	}
	if out := o.Registry.RunHook(callback.BeforeJob, beforeJobCtx); out.Failed() {
		return nil, orcherr.NewHookError(string(callback.BeforeJob), "", out.Message)
	}

	j := &job.Job{
		JobID:         jobID,
		JobName:       req.JobName,
		Status:        job.StatusPending,
		Tenants:       tenantIDs,
		TenantNames:   tenantNames,
		Total:         len(req.Tenants),
		TenantResults: map[string]job.TenantResult{},
		StartedAt:     now.UTC(),
	}
	if err := o.Store.CreateJob(ctx, j); err != nil {
		return nil, err
	}

	// Rollback (R-prefixed) scripts are loaded and validated, but a job
	// never applies them.
	runSet := scriptset.ScriptSet{}
	for _, s := range loaded.Set.Scripts {
		if s.Kind != scriptset.KindRollback {
			runSet.Scripts = append(runSet.Scripts, s)
		}
	}

	dryRun := req.Mode == ModeDryRun
	dispatcher := dispatch.New(req.MaxConcurrency, o.SoftTimeout, o.HardTimeout)

	tasks := make([]dispatch.Task, len(req.Tenants))
	dispatchIDs := make([]string, len(req.Tenants))
	for i, spec := range req.Tenants {
		spec := spec
		dispatchIDs[i] = uuid.NewString()
		tasks[i] = func(taskCtx context.Context) error {
			tw := worker.New(o.Registry, o.Store, o.NewExecutor(), o.Log)
			tw.Run(taskCtx, jobID, spec, runSet, dryRun, func(completed, total int) {
				dispatcher.Emit(dispatch.Progress{TenantID: spec.TenantID, ScriptsComplete: completed, TotalScripts: total})
			})
			return nil
		}
	}

	run := func() {
		if req.Parallel {
			dispatcher.RunParallel(ctx, tasks)
		} else {
			dispatcher.RunSequential(ctx, tasks)
		}
		o.Finalize(context.Background(), jobID)
	}
	go run()

	return &StartResult{JobID: jobID, DispatchIDs: dispatchIDs, Mode: req.Mode, TenantCount: len(req.Tenants)}, nil
}

// Finalize runs after_job hooks with aggregate metadata once every
// tenant has reported. It never changes job status: the last
// UpdateTenantResult call already resolved the terminal state.
func (o *Orchestrator) Finalize(ctx context.Context, jobID string) {
	j, err := o.Store.GetJob(ctx, jobID)
	if err != nil {
		o.Log.Error("finalize: failed to load job", map[string]any{"job_id": jobID, "error": err.Error()})
		return
	}
	afterCtx := &callback.Context{
		JobID: jobID,
		Metadata: map[string]any{
			"total_tenants":      j.Total,
			"successful_tenants": j.Successful,
			"failed_tenants":     j.Failed,
		},
	}
	o.Registry.RunHook(callback.AfterJob, afterCtx) // failure swallowed per spec
}

func scriptMaps(set scriptset.ScriptSet) []map[string]any {
	out := make([]map[string]any, len(set.Scripts))
	for i, s := range set.Scripts {
		out[i] = map[string]any{
			"filename":    s.Filename,
			"version":     s.Version,
			"description": s.Description,
			"kind":        string(s.Kind),
			"checksum":    s.Checksum,
		}
	}
	return out
}
